// Package shm provides read access to the shared memory region the game
// publishes its telemetry in.
package shm

import (
	"errors"
	"io"
	"strings"
)

var (
	ErrRegionUnavailable = errors.New("shared memory region not available")
	ErrTruncatedRead     = errors.New("shared memory region truncated")
)

// Region is an opened shared memory region.
type Region interface {
	io.ReaderAt
	io.Closer
}

// WritableRegion is a region opened for writing, used to simulate a producer.
type WritableRegion interface {
	Region
	io.WriterAt
}

// OpenFunc opens the region with the given name. size is the number of
// bytes the caller is going to read. Implementations return an error
// wrapping ErrRegionUnavailable if the region does not exist.
type OpenFunc func(name string, size int) (Region, error)

// baseName returns the part of a windows object name after the namespace
// prefix, e.g. "ManiaPlanet_Telemetry" for "Local\ManiaPlanet_Telemetry".
func baseName(name string) string {
	if idx := strings.LastIndex(name, `\`); idx >= 0 {
		return name[idx+1:]
	}
	return name
}
