package local

import (
	"errors"
	"os"
	"syscall"
)

// isTransient reports whether a filesystem error is worth retrying:
// the file is busy or the (network) filesystem is momentarily slow.
func isTransient(err error) bool {
	return errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, os.ErrDeadlineExceeded)
}
