package host

import (
	"go.uber.org/zap"

	"github.com/wippyai/engine-host/engine"
)

// fatalHook reports an unrecoverable contract violation. The default
// aborts the process through the package logger. Tests swap in a hook
// that panics so the violation can be observed and recovered.
var fatalHook = func(msg string, fields ...zap.Field) {
	engine.Logger().Fatal(msg, fields...)
}

// fatal never returns. The trailing panic is unreachable with the
// default hook and carries the message when a replaced hook returns.
func fatal(msg string, fields ...zap.Field) {
	fatalHook(msg, fields...)
	panic("host: " + msg)
}
