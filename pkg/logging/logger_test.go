package logging

import "testing"

func TestNopLoggerDoesNotPanic(t *testing.T) {
	l := NopLogger()
	l.Error("x")
	l.Errorf("%d", 1)
	l.Warn("x")
	l.Warnf("%d", 1)
	l.Info("x")
	l.Infof("%d", 1)
	l.Debug("x")
	l.Debugf("%d", 1)
}

func TestDefaultLoggerImplementsLogger(t *testing.T) {
	var l Logger = NewDefaultLogger()
	l.Infof("module logging smoke test: %s", "ok")
}
