package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/mpapenbr/tm-telemetry-provider/log"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/model"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/shm"
)

var ErrWaitTimeout = errors.New("timeout waiting for telemetry region")

// pollInterval is the pause between two attempts of WaitForRegion
var pollInterval = 200 * time.Millisecond

// WaitForRegion blocks until the region can be opened or timeout is reached.
// Errors other than shm.ErrRegionUnavailable end the wait immediately.
func WaitForRegion(open shm.OpenFunc, name string, timeout time.Duration) error {
	timeoutReached := time.Now().Add(timeout)
	start := time.Now()
	log.Debug("wait for telemetry region",
		log.String("name", name),
		log.String("timeout", timeout.String()))
	for {
		region, err := open(name, model.SnapshotSize)
		if err == nil {
			region.Close()
			log.Debug("telemetry region available",
				log.String("name", name),
				log.String("duration", time.Since(start).String()))
			return nil
		}
		if !errors.Is(err, shm.ErrRegionUnavailable) {
			return err
		}
		if !time.Now().Before(timeoutReached) {
			return fmt.Errorf("%w: %s not available after %v", ErrWaitTimeout, name, timeout)
		}
		time.Sleep(pollInterval)
	}
}
