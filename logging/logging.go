// Provide application-wide logging with pre-defined log levels.
// It is just concerned with putting strings into the designated
// buffers and thus hides stuff like Panic() or Fatal().
//
// By default logs of level WARNING and ERROR are printed to stderr.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

func init() {
	Initialize(LevelWarning, nil, nil)
}

type LogLevel int

const (
	LevelNone LogLevel = iota
	LevelError
	LevelWarning
	LevelInfo
	LevelDebug
)

var levelMap = map[LogLevel]logrus.Level{
	LevelError:   logrus.ErrorLevel,
	LevelWarning: logrus.WarnLevel,
	LevelInfo:    logrus.InfoLevel,
	LevelDebug:   logrus.DebugLevel,
}

// Warnings and errors keep their own logger so they can be directed
// to a different writer than informational output.
var (
	outLogger *logrus.Logger
	errLogger *logrus.Logger
)

func newLogger(l LogLevel, w io.Writer) *logrus.Logger {
	out := logrus.New()
	out.SetOutput(w)
	out.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})

	lv, ok := levelMap[l]
	if !ok {
		//LevelNone: drop everything
		out.SetOutput(io.Discard)
		lv = logrus.ErrorLevel
	}
	out.SetLevel(lv)

	return out
}

// Initialize the application wide logger to a specific log level.
// This should ideally be called once at the beginning of the application.
// Custom writers can be specified as well: errWriter will be used for
// log levels ERROR and WARNING, logWriter for everything else.
// These may be set to nil, in which case they default to stdout and stderr.
func Initialize(l LogLevel, logWriter io.Writer, errWriter io.Writer) {
	if logWriter == nil {
		logWriter = os.Stdout
	}

	if errWriter == nil {
		errWriter = os.Stderr
	}

	outLogger = newLogger(l, logWriter)
	errLogger = newLogger(l, errWriter)
}

func Error(s string) {
	errLogger.Error(s)
}

func Errorf(format string, v ...any) {
	errLogger.Errorf(format, v...)
}

func Warning(s string) {
	errLogger.Warn(s)
}

func Warningf(format string, v ...any) {
	errLogger.Warnf(format, v...)
}

func Info(s string) {
	outLogger.Info(s)
}

func Infof(format string, v ...any) {
	outLogger.Infof(format, v...)
}

func Debug(s string) {
	outLogger.Debug(s)
}

func Debugf(format string, v ...any) {
	outLogger.Debugf(format, v...)
}
