package log

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger is a slog.Logger bound to one component. Every record it emits
// carries the component field first.
type Logger struct {
	*slog.Logger
	component string
}

type Config struct {
	Level     slog.Level
	Component string
	// Output is ignored when Handler is set. Defaults to stdout.
	Output  io.Writer
	Handler slog.Handler
}

func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Component: ComponentApp,
		Output:    os.Stdout,
	}
}

func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		out := config.Output
		if out == nil {
			out = os.Stdout
		}
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: config.Level})
	}

	component := config.Component
	if component == "" {
		component = ComponentApp
	}
	return &Logger{Logger: slog.New(handler), component: component}
}

// With returns a logger that adds args to every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), component: l.component}
}

// WithComponent returns a copy of the logger for another component.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger, component: component}
}

func (l *Logger) Component() string {
	return l.component
}

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, args []any) {
	if !l.Enabled(ctx, level) {
		return
	}
	l.Logger.Log(ctx, level, msg, append([]any{FieldComponent, l.component}, args...)...)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.log(context.Background(), slog.LevelDebug, msg, args)
}

func (l *Logger) Info(msg string, args ...any) {
	l.log(context.Background(), slog.LevelInfo, msg, args)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.log(context.Background(), slog.LevelWarn, msg, args)
}

func (l *Logger) Error(msg string, args ...any) {
	l.log(context.Background(), slog.LevelError, msg, args)
}

func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, msg, args)
}

func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelInfo, msg, args)
}

func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, msg, args)
}

func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelError, msg, args)
}

// SetDefault installs logger as the slog default. Records emitted through
// the package-level slog functions do not get the component field.
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}
