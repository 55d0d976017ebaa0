//go:build !linux && !darwin && !freebsd && !netbsd

package infrastructure

import (
	"os"
	"time"
)

// accessTime is not available on this platform.
func accessTime(os.FileInfo) *time.Time {
	return nil
}
