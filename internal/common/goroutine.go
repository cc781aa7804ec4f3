package common

import (
	"fmt"

	"github.com/ternarybob/arbor"
)

// PanicError is returned by SafeCall when fn panicked.
type PanicError struct {
	Name  string
	Value interface{}
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Name, e.Value)
}

// SafeCall runs fn and converts a panic into a *PanicError so one bad unit of
// work cannot take the whole run down.
//
// Example:
//
//	err := common.SafeCall(logger, "fetch 2330.TW", func() error {
//	    return fetchOne(ctx, ticker)
//	})
func SafeCall(logger arbor.ILogger, name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stackTrace := GetStackTrace()
			if logger != nil {
				logger.Error().
					Str("call", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", stackTrace).
					Msg("Recovered from panic - continuing run")
			}
			err = &PanicError{Name: name, Value: r, Stack: stackTrace}
		}
	}()

	return fn()
}
