package manager

import (
	"fmt"

	"github.com/srg/blegov/pkg/bluetooth"
)

// NotReadyError reports access to entity state while the owning governor
// holds no native handle. It is transient: the caller should retry after the
// next maintenance cycle.
type NotReadyError struct {
	Address bluetooth.Address
}

// Error implements the error interface
func (e *NotReadyError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Address.IsZero() {
		return "bluetooth object is not ready"
	}
	return fmt.Sprintf("bluetooth object is not ready: %s", e.Address)
}

// Is allows errors.Is to match any NotReadyError against ErrNotReady
// regardless of the address it carries.
func (e *NotReadyError) Is(target error) bool {
	if e == nil {
		return false
	}
	_, ok := target.(*NotReadyError)
	return ok
}

// ErrNotReady is the sentinel for errors.Is checks.
var ErrNotReady = &NotReadyError{}
