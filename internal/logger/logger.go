package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Leveled wraps a logrus logger at a fixed level so call sites keep the
// familiar Printf shape.
type Leveled struct {
	log   *logrus.Logger
	level logrus.Level
}

// Printf logs at the wrapper's level.
func (l *Leveled) Printf(format string, args ...interface{}) {
	l.log.Logf(l.level, format, args...)
}

var (
	Info    *Leveled
	Warn    *Leveled
	Debug   *Leveled
	Verbose *Leveled
	Error   *Leveled
	Always  *Leveled // Always logs regardless of log level

	base   *logrus.Logger
	always *logrus.Logger
)

func init() {
	// Usable before InitWithConfig: stderr at info level.
	base = newLogger(os.Stderr, logrus.InfoLevel)
	always = newLogger(os.Stderr, logrus.TraceLevel)
	bind()
}

func Init() error {
	return InitWithLevel("info")
}

func InitWithLevel(logLevel string) error {
	return InitWithConfig(logLevel, "strikemap.log")
}

// InitWithConfig sends all levels to logFilePath, errors additionally to stderr.
func InitWithConfig(logLevel, logFilePath string) error {
	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return err
	}

	base = newLogger(logFile, ParseLevel(logLevel))
	base.AddHook(&stderrHook{})
	always = newLogger(logFile, logrus.TraceLevel)
	bind()

	return nil
}

// SetOutput redirects every leveled logger, mostly for tests.
func SetOutput(w io.Writer, logLevel string) {
	base = newLogger(w, ParseLevel(logLevel))
	always = newLogger(w, logrus.TraceLevel)
	bind()
}

// ParseLevel maps the config names error|warn|info|debug|verbose onto logrus
// levels; unknown names fall back to info.
func ParseLevel(logLevel string) logrus.Level {
	switch logLevel {
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "debug":
		return logrus.DebugLevel
	case "verbose":
		return logrus.TraceLevel
	default:
		return logrus.InfoLevel
	}
}

func newLogger(w io.Writer, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	return l
}

func bind() {
	Info = &Leveled{log: base, level: logrus.InfoLevel}
	Warn = &Leveled{log: base, level: logrus.WarnLevel}
	Debug = &Leveled{log: base, level: logrus.DebugLevel}
	Verbose = &Leveled{log: base, level: logrus.TraceLevel}
	Error = &Leveled{log: base, level: logrus.ErrorLevel}
	Always = &Leveled{log: always, level: logrus.InfoLevel}
}

// stderrHook mirrors error entries to stderr when the main output is a file.
type stderrHook struct{}

func (h *stderrHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel}
}

func (h *stderrHook) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}
	_, err = os.Stderr.WriteString(line)
	return err
}
