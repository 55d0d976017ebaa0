//go:build linux

package infrastructure

import (
	"os"
	"syscall"
	"time"
)

func accessTime(info os.FileInfo) *time.Time {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return nil
	}
	t := time.Unix(int64(st.Atim.Sec), int64(st.Atim.Nsec))
	return &t
}
