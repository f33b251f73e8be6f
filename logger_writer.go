package libwsrx

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// writerLogger writes one line per entry to an io.Writer. Fields are printed sorted by key.
type writerLogger struct {
	mu     *sync.Mutex
	writer io.Writer
	level  int
	fields map[string]any
}

const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

// NewWriterLogger returns a logger writing to w entries of level "debug", "info", "warn" or
// "error" and above. Unknown levels default to "info".
func NewWriterLogger(w io.Writer, level string) logger {
	return &writerLogger{
		mu:     &sync.Mutex{},
		writer: w,
		level:  parseLevel(level),
		fields: make(map[string]any),
	}
}

func parseLevel(level string) int {
	switch strings.ToLower(level) {
	case "debug":
		return levelDebug
	case "warn", "warning":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (l *writerLogger) WithField(key string, value any) logger {
	fields := make(map[string]any, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	fields[key] = value

	return &writerLogger{
		mu:     l.mu,
		writer: l.writer,
		level:  l.level,
		fields: fields,
	}
}

func (l *writerLogger) formatFields() string {
	if len(l.fields) == 0 {
		return ""
	}

	keys := make([]string, 0, len(l.fields))
	for k := range l.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(" [")
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%v", k, l.fields[k])
	}
	sb.WriteString("]")
	return sb.String()
}

func (l *writerLogger) log(level int, msg string) {
	if level < l.level {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")

	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(l.writer, "[%s] %s%s: %s\n", timestamp, levelNames[level], l.formatFields(), strings.TrimRight(msg, "\n"))
}

func (l *writerLogger) Debug(args ...any) {
	l.log(levelDebug, fmt.Sprint(args...))
}

func (l *writerLogger) Debugf(format string, args ...any) {
	l.log(levelDebug, fmt.Sprintf(format, args...))
}

func (l *writerLogger) Debugln(args ...any) {
	l.log(levelDebug, fmt.Sprintln(args...))
}

func (l *writerLogger) Info(args ...any) {
	l.log(levelInfo, fmt.Sprint(args...))
}

func (l *writerLogger) Infof(format string, args ...any) {
	l.log(levelInfo, fmt.Sprintf(format, args...))
}

func (l *writerLogger) Infoln(args ...any) {
	l.log(levelInfo, fmt.Sprintln(args...))
}

func (l *writerLogger) Warn(args ...any) {
	l.log(levelWarn, fmt.Sprint(args...))
}

func (l *writerLogger) Warnf(format string, args ...any) {
	l.log(levelWarn, fmt.Sprintf(format, args...))
}

func (l *writerLogger) Warnln(args ...any) {
	l.log(levelWarn, fmt.Sprintln(args...))
}

func (l *writerLogger) Error(args ...any) {
	l.log(levelError, fmt.Sprint(args...))
}

func (l *writerLogger) Errorf(format string, args ...any) {
	l.log(levelError, fmt.Sprintf(format, args...))
}

func (l *writerLogger) Errorln(args ...any) {
	l.log(levelError, fmt.Sprintln(args...))
}
