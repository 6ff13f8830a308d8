//go:build windows

package shm

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// DefaultDir is unused on windows, mappings are looked up by name.
const DefaultDir = ""

var procOpenFileMappingW = windows.NewLazySystemDLL("kernel32.dll").NewProc("OpenFileMappingW")

type mappedRegion struct {
	handle windows.Handle
	addr   uintptr
	data   []byte
}

func (r *mappedRegion) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(r.data)) {
		return 0, ErrTruncatedRead
	}
	n := copy(p, r.data[off:])
	if n < len(p) {
		return n, ErrTruncatedRead
	}
	return n, nil
}

func (r *mappedRegion) WriteAt(p []byte, off int64) (int, error) {
	if off+int64(len(p)) > int64(len(r.data)) {
		return 0, ErrTruncatedRead
	}
	return copy(r.data[off:], p), nil
}

func (r *mappedRegion) Close() error {
	if r.addr == 0 {
		return nil
	}
	err := windows.UnmapViewOfFile(r.addr)
	if cErr := windows.CloseHandle(r.handle); err == nil {
		err = cErr
	}
	r.addr = 0
	r.data = nil
	return err
}

func openMapping(name string) (windows.Handle, error) {
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return 0, err
	}
	h, _, callErr := procOpenFileMappingW.Call(
		uintptr(windows.FILE_MAP_READ),
		0,
		uintptr(unsafe.Pointer(namePtr)))
	if h == 0 {
		if errors.Is(callErr, windows.ERROR_FILE_NOT_FOUND) {
			return 0, fmt.Errorf("%w: %s", ErrRegionUnavailable, name)
		}
		return 0, fmt.Errorf("open mapping %s: %w", name, callErr)
	}
	return windows.Handle(h), nil
}

// mapView maps the whole mapping. The view may be shorter than size if the
// producer created a smaller mapping, reads then report ErrTruncatedRead.
func mapView(h windows.Handle, access uint32, size int) (*mappedRegion, error) {
	addr, err := windows.MapViewOfFile(h, access, 0, 0, 0)
	if err != nil {
		_ = windows.CloseHandle(h)
		return nil, fmt.Errorf("map view: %w", err)
	}
	var mbi windows.MemoryBasicInformation
	if err := windows.VirtualQuery(addr, &mbi, unsafe.Sizeof(mbi)); err != nil {
		_ = windows.UnmapViewOfFile(addr)
		_ = windows.CloseHandle(h)
		return nil, fmt.Errorf("query view: %w", err)
	}
	return newMappedRegion(h, addr, viewLength(mbi.RegionSize, size)), nil
}

// viewLength limits the accessible bytes to what was requested and what
// the mapping provides.
func viewLength(regionSize uintptr, size int) int {
	if regionSize < uintptr(size) {
		return int(regionSize)
	}
	return size
}

func newMappedRegion(h windows.Handle, addr uintptr, length int) *mappedRegion {
	return &mappedRegion{
		handle: h,
		addr:   addr,
		//nolint:govet // address is owned by the mapping
		data: unsafe.Slice((*byte)(unsafe.Pointer(addr)), length),
	}
}

// Open opens the named file mapping created by the producer.
func Open(name string, size int) (Region, error) {
	h, err := openMapping(name)
	if err != nil {
		return nil, err
	}
	return mapView(h, windows.FILE_MAP_READ, size)
}

// OpenInDir exists for parity with unix builds, dir is ignored.
func OpenInDir(_ string) OpenFunc {
	return Open
}

// Create creates a page file backed mapping with the given name.
func Create(name string, size int) (WritableRegion, error) {
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, err
	}
	h, err := windows.CreateFileMapping(windows.InvalidHandle, nil,
		windows.PAGE_READWRITE, 0, uint32(size), namePtr)
	if err != nil {
		return nil, fmt.Errorf("create mapping %s: %w", name, err)
	}
	return mapView(h, windows.FILE_MAP_WRITE|windows.FILE_MAP_READ, size)
}

// CreateInDir exists for parity with unix builds, dir is ignored.
func CreateInDir(_, name string, size int) (WritableRegion, error) {
	return Create(name, size)
}

func Remove(_, _ string) error {
	return nil
}
