// Package logging provides the logger interface rkv depends on for ambient
// diagnostics; rkv logs one event through it, from Environment.Close. A
// *StandardLogger (backed by sirupsen/logrus) is the default
// logging.New() implementation; NewNoOpLogger discards everything and is
// what an Environment uses until a caller supplies its own via
// EnvironmentBuilder.SetLogger.
package logging

import "github.com/sirupsen/logrus"

// Level is a logging severity.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Logger is the logging interface rkv depends on. WithFields returns a new
// Logger carrying the merged fields; it never mutates the receiver.
type Logger interface {
	Debug(fmt string, a ...interface{})
	Info(fmt string, a ...interface{})
	Warn(fmt string, a ...interface{})
	Error(fmt string, a ...interface{})
	WithFields(fields map[string]interface{}) Logger
	GetFields() map[string]interface{}
	SetLevel(Level)
	GetLevel() Level
}

func toLogrusLevel(l Level) logrus.Level {
	switch l {
	case Debug:
		return logrus.DebugLevel
	case Warn:
		return logrus.WarnLevel
	case Error:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func fromLogrusLevel(l logrus.Level) Level {
	switch l {
	case logrus.DebugLevel, logrus.TraceLevel:
		return Debug
	case logrus.WarnLevel:
		return Warn
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return Error
	default:
		return Info
	}
}

// StandardLogger is the default rkv logger, backed by a logrus.Logger.
type StandardLogger struct {
	entry *logrus.Entry
}

// New returns a StandardLogger writing JSON-formatted entries to stderr at
// info level.
func New() *StandardLogger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	return &StandardLogger{entry: logrus.NewEntry(l)}
}

func (s *StandardLogger) Debug(f string, a ...interface{}) { s.entry.Debugf(f, a...) }
func (s *StandardLogger) Info(f string, a ...interface{})  { s.entry.Infof(f, a...) }
func (s *StandardLogger) Warn(f string, a ...interface{})  { s.entry.Warnf(f, a...) }
func (s *StandardLogger) Error(f string, a ...interface{}) { s.entry.Errorf(f, a...) }

func (s *StandardLogger) WithFields(fields map[string]interface{}) Logger {
	return &StandardLogger{entry: s.entry.WithFields(fields)}
}

func (s *StandardLogger) GetFields() map[string]interface{} {
	return s.entry.Data
}

func (s *StandardLogger) SetLevel(l Level) {
	s.entry.Logger.SetLevel(toLogrusLevel(l))
}

func (s *StandardLogger) GetLevel() Level {
	return fromLogrusLevel(s.entry.Logger.GetLevel())
}

// NoOpLogger discards every call. It is the zero-configuration default.
type NoOpLogger struct {
	level  Level
	fields map[string]interface{}
}

// NewNoOpLogger returns a Logger that discards everything it is given.
func NewNoOpLogger() *NoOpLogger { return &NoOpLogger{level: Info} }

func (n *NoOpLogger) Debug(string, ...interface{}) {}
func (n *NoOpLogger) Info(string, ...interface{})  {}
func (n *NoOpLogger) Warn(string, ...interface{})  {}
func (n *NoOpLogger) Error(string, ...interface{}) {}

func (n *NoOpLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(n.fields)+len(fields))
	for k, v := range n.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &NoOpLogger{level: n.level, fields: merged}
}

func (n *NoOpLogger) GetFields() map[string]interface{} { return n.fields }
func (n *NoOpLogger) SetLevel(l Level)                  { n.level = l }
func (n *NoOpLogger) GetLevel() Level                   { return n.level }
