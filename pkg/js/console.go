package js

import (
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// registerConsole wires console.log/warn/error to the structured logger.
func registerConsole(vm *goja.Runtime, log *zap.Logger) {
	console := vm.NewObject()
	console.Set("log", func(call goja.FunctionCall) goja.Value {
		log.Info(formatArgs(call.Arguments))
		return goja.Undefined()
	})
	console.Set("warn", func(call goja.FunctionCall) goja.Value {
		log.Warn(formatArgs(call.Arguments))
		return goja.Undefined()
	})
	console.Set("error", func(call goja.FunctionCall) goja.Value {
		log.Error(formatArgs(call.Arguments))
		return goja.Undefined()
	})
	vm.Set("console", console)
}

func formatArgs(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.String()
	}
	return strings.Join(parts, " ")
}
