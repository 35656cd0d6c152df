package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level задаёт минимальный уровень сообщений, которые попадут в лог.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
)

var levelNames = map[string]Level{
	"debug": LevelDebug,
	"info":  LevelInfo,
	"error": LevelError,
}

// ParseLevel преобразует строковое значение из конфигурации в Level.
func ParseLevel(value string) Level {
	value = strings.TrimSpace(strings.ToLower(value))
	if lvl, ok := levelNames[value]; ok {
		return lvl
	}
	return LevelInfo
}

// sink разделяется между логгером и всеми его именованными потомками.
type sink struct {
	mu     sync.Mutex
	writer io.Writer
	closer io.Closer
}

// Logger представляет потокобезопасный логгер с уровнями и именем компонента.
type Logger struct {
	minLevel  Level
	component string
	out       *sink
}

// New создаёт логгер, пишущий в указанный файл. Пустой путь означает stderr.
func New(path string, level Level) (*Logger, error) {
	if path == "" {
		return NewWriter(os.Stderr, level), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory for %s: %w", path, err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return &Logger{minLevel: level, out: &sink{writer: file, closer: file}}, nil
}

// NewWriter создаёт логгер поверх произвольного writer. Close у такого логгера ничего не закрывает.
func NewWriter(w io.Writer, level Level) *Logger {
	if w == nil {
		w = io.Discard
	}
	return &Logger{minLevel: level, out: &sink{writer: w}}
}

// Discard возвращает логгер, который ничего не пишет.
func Discard() *Logger {
	return NewWriter(io.Discard, LevelError)
}

// Named возвращает логгер с тем же выводом и префиксом компонента.
func (l *Logger) Named(component string) *Logger {
	if l == nil {
		return nil
	}
	name := strings.TrimSpace(component)
	if l.component != "" && name != "" {
		name = l.component + "." + name
	} else if name == "" {
		name = l.component
	}
	return &Logger{minLevel: l.minLevel, component: name, out: l.out}
}

// Close освобождает ресурсы файлового логгера.
func (l *Logger) Close() error {
	if l == nil || l.out == nil || l.out.closer == nil {
		return nil
	}
	return l.out.closer.Close()
}

// Debugf пишет отладочное сообщение.
func (l *Logger) Debugf(format string, args ...any) {
	l.write(LevelDebug, format, args...)
}

// Infof пишет информационное сообщение.
func (l *Logger) Infof(format string, args ...any) {
	l.write(LevelInfo, format, args...)
}

// Errorf пишет сообщение об ошибке.
func (l *Logger) Errorf(format string, args ...any) {
	l.write(LevelError, format, args...)
}

func (l *Logger) write(level Level, format string, args ...any) {
	if l == nil || l.out == nil || level < l.minLevel {
		return
	}
	entry := fmt.Sprintf(format, args...)
	ts := time.Now().UTC().Format(time.RFC3339)
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	if l.component != "" {
		fmt.Fprintf(l.out.writer, "%s [%s] %s: %s\n", ts, level.String(), l.component, entry)
		return
	}
	fmt.Fprintf(l.out.writer, "%s [%s] %s\n", ts, level.String(), entry)
}

// Level возвращает минимальный уровень логгера.
func (l *Logger) Level() Level {
	if l == nil {
		return LevelInfo
	}
	return l.minLevel
}

// String возвращает текстовое представление уровня.
func (lvl Level) String() string {
	switch lvl {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

type loggerContextKey struct{}

// WithContext сохраняет логгер в контексте для дальнейшей передачи.
func WithContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

// FromContext извлекает логгер из контекста, если он там есть.
func FromContext(ctx context.Context) (*Logger, bool) {
	logger, ok := ctx.Value(loggerContextKey{}).(*Logger)
	return logger, ok
}
