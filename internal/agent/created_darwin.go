package agent

import (
	"os"
	"syscall"
	"time"
)

func createdMillis(info os.FileInfo) int64 {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0
	}
	return time.Unix(st.Birthtimespec.Unix()).UnixMilli()
}
