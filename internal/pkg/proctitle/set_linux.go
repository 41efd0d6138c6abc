//go:build linux

package proctitle

import (
	"errors"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Set applies the process title via PR_SET_NAME. The kernel keeps at most
// MaxLen bytes.
func Set(title string) error {
	title = Format(title)
	if title == "" {
		return errors.New("empty process title")
	}
	if len(os.Args) > 0 {
		os.Args[0] = title
	}

	b := make([]byte, MaxLen+1)
	copy(b, title)
	return unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(&b[0])), 0, 0, 0)
}
