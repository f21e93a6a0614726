//go:build !darwin && !windows

package agent

import "os"

// createdMillis is 0 where the platform does not expose a birth time.
func createdMillis(os.FileInfo) int64 { return 0 }
