//go:build unix

package shm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// DefaultDir holds the shared memory files. Wine/Proton based producers
// expose their mapping there.
const DefaultDir = "/dev/shm"

type fileRegion struct {
	fd   int
	path string
}

func (r *fileRegion) ReadAt(p []byte, off int64) (int, error) {
	return unix.Pread(r.fd, p, off)
}

func (r *fileRegion) WriteAt(p []byte, off int64) (int, error) {
	return unix.Pwrite(r.fd, p, off)
}

func (r *fileRegion) Close() error {
	if r.fd < 0 {
		return nil
	}
	err := unix.Close(r.fd)
	r.fd = -1
	return err
}

func regionPath(dir, name string) string {
	if dir == "" {
		dir = DefaultDir
	}
	return filepath.Join(dir, baseName(name))
}

// OpenInDir returns an OpenFunc looking up regions as files in dir.
func OpenInDir(dir string) OpenFunc {
	return func(name string, size int) (Region, error) {
		path := regionPath(dir, name)
		fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrRegionUnavailable, path)
			}
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		return &fileRegion{fd: fd, path: path}, nil
	}
}

// Open opens a region located in DefaultDir.
func Open(name string, size int) (Region, error) {
	return OpenInDir(DefaultDir)(name, size)
}

// CreateInDir creates (or truncates) a region of the given size in dir.
func CreateInDir(dir, name string, size int) (WritableRegion, error) {
	path := regionPath(dir, name)
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_CLOEXEC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("resize %s: %w", path, err)
	}
	return &fileRegion{fd: fd, path: path}, nil
}

// Create creates a region in DefaultDir.
func Create(name string, size int) (WritableRegion, error) {
	return CreateInDir(DefaultDir, name, size)
}

// Remove deletes the region file. The windows counterpart is a no-op since
// mappings vanish with their last handle.
func Remove(dir, name string) error {
	return os.Remove(regionPath(dir, name))
}
