package shm

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/mpapenbr/tm-telemetry-provider/log"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/model"
)

// Reader reads complete snapshots from a named region. The region handle is
// opened on first use and kept until Close or until a read fails.
//
// Reads are not synchronized with the producer, a record may be observed
// while it is being written.
type Reader struct {
	name   string
	open   OpenFunc
	l      *log.Logger
	mu     sync.Mutex
	region Region
	buf    []byte
}

type ReaderOption func(*Reader)

func WithOpenFunc(open OpenFunc) ReaderOption {
	return func(r *Reader) {
		r.open = open
	}
}

// WithDir looks up regions in dir (unix only).
func WithDir(dir string) ReaderOption {
	return func(r *Reader) {
		r.open = OpenInDir(dir)
	}
}

func WithLogger(l *log.Logger) ReaderOption {
	return func(r *Reader) {
		r.l = l
	}
}

func NewReader(name string, opts ...ReaderOption) *Reader {
	ret := &Reader{
		name: name,
		open: Open,
		l:    log.Default().Named("shm"),
		buf:  make([]byte, model.SnapshotSize),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (r *Reader) Name() string {
	return r.name
}

// Read returns the snapshot currently stored in the region.
func (r *Reader) Read() (*model.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.region == nil {
		region, err := r.open(r.name, len(r.buf))
		if err != nil {
			return nil, err
		}
		r.l.Debug("region opened", log.String("name", r.name))
		r.region = region
	}
	n, err := r.region.ReadAt(r.buf, 0)
	if n < len(r.buf) {
		r.release()
		return nil, fmt.Errorf("%w: read %d of %d bytes", ErrTruncatedRead, n, len(r.buf))
	}
	if err != nil && !errors.Is(err, io.EOF) {
		r.release()
		return nil, fmt.Errorf("read %s: %w", r.name, err)
	}
	return model.Decode(r.buf)
}

// Close releases the region handle. The next Read opens it again.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.release()
}

func (r *Reader) release() error {
	if r.region == nil {
		return nil
	}
	err := r.region.Close()
	r.region = nil
	if err != nil {
		r.l.Warn("error closing region", log.String("name", r.name), log.ErrorField(err))
		return err
	}
	r.l.Debug("region closed", log.String("name", r.name))
	return nil
}
