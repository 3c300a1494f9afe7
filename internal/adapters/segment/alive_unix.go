//go:build unix

package segment

import (
	"errors"
	"syscall"
)

// processAlive sends signal 0 to pid; EPERM still means the process exists
func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
