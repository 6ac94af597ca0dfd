// Package errors provides standardized error handling for eidetic.
//
// # Error Classification
//
// Errors fall into three classes:
//
//   - Invalid: missing or malformed caller input, bad configuration (do not retry)
//   - Transient: temporary conditions such as a metrics listener that failed to bind
//   - Fatal: unrecoverable states, for example using a cache after Close
//
// The cache itself only ever returns Invalid errors from Put, plus Fatal
// errors once closed. Capacity rejection is not an error.
//
// # Error Wrapping Pattern
//
// All wrapping follows the format:
//
//	"component.method: action failed: %w"
//
// Three wrappers set the class:
//
//	errors.WrapInvalid(errors.ErrInvalidArgument, "cache", "Put", "key cannot be empty")
//	errors.WrapTransient(err, "metric", "Start", "listen")
//	errors.WrapFatal(errors.ErrClosed, "cache", "Put", "write after close")
//
// Classification survives further wrapping with fmt.Errorf("%w") and works
// with errors.Is and errors.As:
//
//	if _, err := c.Put("", v); err != nil {
//	    if errors.Is(err, errors.ErrInvalidArgument) {
//	        // caller bug
//	    }
//	}
package errors
