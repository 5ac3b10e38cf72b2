package serial

import (
	"context"
	"log/slog"
)

// LogOption is a bitmask for selecting which operations to log.
type LogOption uint8

const (
	LogNone  LogOption = 0
	LogRead  LogOption = 1 << iota
	LogWrite
	LogAll = LogRead | LogWrite
)

// NewLoggedPort wraps the given Port and logs selected operations at the
// given level. Errors are always logged at slog.LevelError.
func NewLoggedPort(inner Port, logger *slog.Logger, level slog.Level, opts LogOption) Port {
	if logger == nil {
		logger = slog.Default()
	}
	return &loggedPort{
		inner:  inner,
		logger: logger,
		level:  level,
		opts:   opts,
	}
}

type loggedPort struct {
	inner  Port
	logger *slog.Logger
	level  slog.Level
	opts   LogOption
}

// Read logs received bytes when read logging is enabled. Empty reads from a
// timeout are not logged.
func (l *loggedPort) Read(b []byte) (int, error) {
	n, err := l.inner.Read(b)
	if l.opts&LogRead != 0 {
		if err != nil {
			l.logger.Log(context.Background(), slog.LevelError, "serial read error",
				"error", err,
			)
		} else if n > 0 {
			l.logger.Log(context.Background(), l.level, "serial read",
				"len", n,
				"data", b[:n],
			)
		}
	}
	return n, err
}

// Write logs the outgoing bytes and the result when write logging is enabled.
func (l *loggedPort) Write(b []byte) (int, error) {
	if l.opts&LogWrite != 0 {
		l.logger.Log(context.Background(), l.level, "serial write",
			"len", len(b),
			"data", b,
		)
	}
	n, err := l.inner.Write(b)
	if l.opts&LogWrite != 0 && err != nil {
		l.logger.Log(context.Background(), slog.LevelError, "serial write error",
			"written", n,
			"error", err,
		)
	}
	return n, err
}

// Close forwards to the inner Port without logging.
func (l *loggedPort) Close() error {
	return l.inner.Close()
}

func (l *loggedPort) Flush() error {
	return l.inner.Flush()
}
