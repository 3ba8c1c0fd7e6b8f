package middleware

import (
	"fmt"
	"runtime"

	"github.com/loomhq/loom"
)

// RecoverConfig configures the Recover middleware.
type RecoverConfig struct {
	// StackSize is the size of the stack trace buffer.
	// Optional. Default value: 4 << 10 (4KB).
	StackSize int

	// DisableStackAll disables including other goroutines' stacks
	// alongside the current one.
	DisableStackAll bool

	// Logger receives the recovered panic and its stack trace. Optional;
	// when nil, the panic is turned into an error and returned without
	// being logged here.
	Logger loom.Logger
}

// DefaultRecoverConfig is the default Recover middleware config.
var DefaultRecoverConfig = RecoverConfig{
	StackSize: 4 << 10,
}

// Recover returns a middleware that recovers panics from inner handlers
// and turns them into an error for the connection's ExceptionHandler,
// grounded on the teacher's gases/recover.go.
func Recover() loom.Middleware {
	return RecoverWithConfig(DefaultRecoverConfig)
}

// RecoverWithConfig returns a Recover middleware from config. See Recover.
func RecoverWithConfig(config RecoverConfig) loom.Middleware {
	if config.StackSize == 0 {
		config.StackSize = DefaultRecoverConfig.StackSize
	}

	return func(next loom.Handler) loom.Handler {
		return func(req *loom.Request, res *loom.Response) (err error) {
			defer func() {
				if r := recover(); r != nil {
					if e, ok := r.(error); ok {
						err = e
					} else {
						err = fmt.Errorf("%v", r)
					}
					if config.Logger != nil {
						stack := make([]byte, config.StackSize)
						n := runtime.Stack(stack, !config.DisableStackAll)
						config.Logger.Error("loom/middleware: panic recovered", "error", err, "stack", string(stack[:n]))
					}
				}
			}()
			return next(req, res)
		}
	}
}
