// Package logging configures the single logrus logger used by the buffer
// pool and the demo driver. It is intentionally thin: the storage core
// logs at Debug for diagnostics, never as a substitute for returning an
// error.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger. Tests may swap its output or level;
// Reset restores the default.
var Log = newDefault()

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// Reset restores Log to its default configuration.
func Reset() {
	Log = newDefault()
}
