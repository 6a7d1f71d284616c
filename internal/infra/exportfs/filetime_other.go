//go:build !darwin

package exportfs

import "time"

// Birth time is not settable here.
func setFileCreationTime(string, time.Time) error {
	return nil
}
