//go:build unix

package fs

import (
	"io/fs"
	"syscall"
)

// sameDevice reports whether two stat results live on the same device, which
// os.Rename requires.
func sameDevice(a, b fs.FileInfo) bool {
	sa, ok := a.Sys().(*syscall.Stat_t)
	if !ok {
		return true
	}
	sb, ok := b.Sys().(*syscall.Stat_t)
	if !ok {
		return true
	}
	return sa.Dev == sb.Dev
}
