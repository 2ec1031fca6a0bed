package logger

import "portfolio_aggregator/internal/app/port"

// slogAdapter реализует интерфейс port.Logger через глобальные функции пакета logger.
type slogAdapter struct {
	component string
}

// NewSlogAdapter creates a port.Logger that tags every record with component.
func NewSlogAdapter(component string) port.Logger {
	return &slogAdapter{component: component}
}

func (a *slogAdapter) with(args []any) []any {
	if a.component == "" {
		return args
	}
	return append([]any{"component", a.component}, args...)
}

func (a *slogAdapter) Info(msg string, args ...any) {
	Info(msg, a.with(args)...)
}

func (a *slogAdapter) Debug(msg string, args ...any) {
	Debug(msg, a.with(args)...)
}

func (a *slogAdapter) Warn(msg string, args ...any) {
	Warn(msg, a.with(args)...)
}

func (a *slogAdapter) Error(msg string, args ...any) {
	Error(msg, a.with(args)...)
}
