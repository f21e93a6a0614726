package agent

import (
	"os"
	"syscall"
	"time"
)

func createdMillis(info os.FileInfo) int64 {
	attr, ok := info.Sys().(*syscall.Win32FileAttributeData)
	if !ok {
		return 0
	}
	return time.Unix(0, attr.CreationTime.Nanoseconds()).UnixMilli()
}
