//go:build windows

package shm

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/tm-telemetry-provider/pkg/model"
)

func TestViewLength(t *testing.T) {
	assert.Equal(t, model.SnapshotSize, viewLength(4096, model.SnapshotSize))
	assert.Equal(t, 1024, viewLength(1024, model.SnapshotSize))
}

func TestReadSmallMapping(t *testing.T) {
	small := &mappedRegion{data: make([]byte, 1024)}
	r := NewReader("small", WithOpenFunc(func(string, int) (Region, error) {
		return small, nil
	}))
	_, err := r.Read()
	assert.ErrorIs(t, err, ErrTruncatedRead)
}

func TestCreateOpenMapping(t *testing.T) {
	name := fmt.Sprintf(`Local\tmtp-test-%d`, os.Getpid())
	w, err := Create(name, model.SnapshotSize)
	require.NoError(t, err)
	defer w.Close()

	data, err := model.Encode(model.NewSnapshot(2))
	require.NoError(t, err)
	_, err = w.WriteAt(data, 0)
	require.NoError(t, err)

	r := NewReader(name)
	defer r.Close()
	s, err := r.Read()
	require.NoError(t, err)
	assert.NoError(t, s.Validate())

	_, err = Open(`Local\tmtp-missing`, model.SnapshotSize)
	assert.ErrorIs(t, err, ErrRegionUnavailable)
}
