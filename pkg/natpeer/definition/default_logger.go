// Package definition holds the default, concrete implementations that the
// rest of natpeer is constructed against: a Logger backed by logrus and the
// protocol constants from spec.md §6.
package definition

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/jabolina/natpeer/pkg/natpeer/types"
)

// DefaultLogger adapts a logrus.Logger to the types.Logger contract. It is
// the Logger cmd/natpeerd and the test helpers pass to core.NewPeer and the
// simulator.
type DefaultLogger struct {
	entry *logrus.Logger
}

// NewDefaultLogger builds a DefaultLogger writing to stderr at Info level.
func NewDefaultLogger() *DefaultLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	return &DefaultLogger{entry: l}
}

func (l *DefaultLogger) ToggleDebug(on bool) {
	if on {
		l.entry.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.SetLevel(logrus.InfoLevel)
	}
}

func (l *DefaultLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *DefaultLogger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *DefaultLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *DefaultLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
func (l *DefaultLogger) Fatalf(format string, args ...interface{}) { l.entry.Fatalf(format, args...) }

var _ types.Logger = (*DefaultLogger)(nil)
