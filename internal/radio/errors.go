// Error normalization for the broadcast path. Platform BLE stacks fail
// with their own vocabulary; the rest of the system only ever sees the
// normalized codes below, with the original error preserved for
// diagnostics.
package radio

import (
	"errors"
	"fmt"
	"strings"
)

// Normalized broadcast errors.
var (
	ErrBusy        = errors.New("BUSY")
	ErrUnavailable = errors.New("UNAVAILABLE")
	ErrInternal    = errors.New("INTERNAL")
)

// StackMap defines the error token mapping for one BLE stack.
type StackMap struct {
	Busy        []string // Tokens that map to BUSY
	Unavailable []string // Tokens that map to UNAVAILABLE
}

// StackErrorMappings contains deterministic, table-driven token mappings
// per BLE stack. Unknown tokens map to INTERNAL. To extend: add a stack
// entry with its token arrays and test each token against its normalized
// code; never match heuristically.
var StackErrorMappings = map[string]StackMap{
	"bluez": {
		Busy: []string{
			"IN PROGRESS",
			"OPERATION ALREADY IN PROGRESS",
			"RESOURCE BUSY",
			"EAGAIN",
			"MAXIMUM ADVERTISEMENTS REACHED",
		},
		Unavailable: []string{
			"NO SUCH ADAPTER",
			"ADAPTER IS POWERED OFF",
			"NOT READY",
			"NOT POWERED",
			"ORG.BLUEZ.ERROR.NOTREADY",
		},
	},
	"generic": {
		Busy: []string{
			"BUSY",
			"IN PROGRESS",
			"RETRY",
			"RATE_LIMIT",
			"QUEUE FULL",
		},
		Unavailable: []string{
			"UNAVAILABLE",
			"POWERED OFF",
			"OFFLINE",
			"NOT READY",
			"NO ADAPTER",
		},
	},
}

// DriverError wraps a driver failure with its normalized code and the
// original error preserved for diagnostics.
type DriverError struct {
	Code     error       // Normalized code
	Original error       // Driver error
	Details  interface{} // Driver payload (opaque)
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("%v (driver: %v)", e.Code, e.Original)
}

func (e *DriverError) Unwrap() error {
	return e.Code
}

// NormalizeDriverError maps a driver error to a normalized code using
// the generic mapping table.
func NormalizeDriverError(driverErr error, payload interface{}) error {
	return NormalizeDriverErrorWithStack(driverErr, payload, "generic")
}

// NormalizeDriverErrorWithStack maps a driver error using a specific
// stack's mapping table, falling back to generic for unknown stacks.
func NormalizeDriverErrorWithStack(driverErr error, payload interface{}, stackID string) error {
	if driverErr == nil {
		return nil
	}

	return &DriverError{
		Code:     mapDriverErrorToCode(driverErr.Error(), stackID),
		Original: driverErr,
		Details:  payload,
	}
}

func mapDriverErrorToCode(msg string, stackID string) error {
	stackMap, exists := StackErrorMappings[stackID]
	if !exists {
		stackMap = StackErrorMappings["generic"]
	}

	upperMsg := strings.ToUpper(msg)

	for _, token := range stackMap.Busy {
		if strings.Contains(upperMsg, strings.ToUpper(token)) {
			return ErrBusy
		}
	}

	for _, token := range stackMap.Unavailable {
		if strings.Contains(upperMsg, strings.ToUpper(token)) {
			return ErrUnavailable
		}
	}

	return ErrInternal
}
