package utils

import (
	"bytes"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// LogWriter forwards everything written to it into the logger, one
// event per non-empty line. Used for stderr of external processes.
type LogWriterCtx struct {
	logger zerolog.Logger
	level  zerolog.Level

	mu      sync.Mutex
	partial []byte
}

func LogWriter(l zerolog.Logger, level zerolog.Level) *LogWriterCtx {
	return &LogWriterCtx{
		logger: l,
		level:  level,
	}
}

// Write logs every complete line, an unterminated tail waits for the next
// write or Close.
func (l *LogWriterCtx) Write(p []byte) (n int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.partial = append(l.partial, p...)
	for {
		i := bytes.IndexByte(l.partial, '\n')
		if i < 0 {
			break
		}

		l.emit(l.partial[:i])
		l.partial = l.partial[i+1:]
	}

	return len(p), nil
}

// Close logs a pending unterminated line.
func (l *LogWriterCtx) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.emit(l.partial)
	l.partial = nil
	return nil
}

func (l *LogWriterCtx) emit(line []byte) {
	msg := strings.TrimSpace(string(line))
	if msg == "" {
		return
	}
	l.logger.WithLevel(l.level).Msg(msg)
}
