// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package endpoint

import (
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// DebugEnv names the environment variable that enables log output.
// Accepted values: debug, info, warn, error. Any other non-empty value means debug.
const DebugEnv = "ENDPOINT_DEBUG"

var logger atomic.Pointer[logrus.Logger]

func init() {
	logger.Store(newLogger(os.Getenv(DebugEnv)))
}

func newLogger(level string) *logrus.Logger {
	l := logrus.New()
	// Silent unless asked for.
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	if level == "" {
		return l
	}
	l.SetOutput(os.Stderr)
	switch strings.ToLower(level) {
	case "info":
		l.SetLevel(logrus.InfoLevel)
	case "warn":
		l.SetLevel(logrus.WarnLevel)
	case "error":
		l.SetLevel(logrus.ErrorLevel)
	default:
		l.SetLevel(logrus.DebugLevel)
	}
	l.WithField("level", l.GetLevel()).Debug("endpoint logging enabled")
	return l
}

// Logger returns the package logger used when Options.Logger is nil.
func Logger() *logrus.Logger { return logger.Load() }

// SetLogger replaces the package logger. A nil l restores the environment default.
func SetLogger(l *logrus.Logger) {
	if l == nil {
		l = newLogger(os.Getenv(DebugEnv))
	}
	logger.Store(l)
}
