package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

// testAppender writes through tb.Log so that lines are attributed to the right test, which
// stdout cannot guarantee for parallel tests.
type testAppender struct {
	tb testing.TB
}

// NewTestAppender returns an appender that logs to tb. The Log call marks its stack frames as
// helpers, so the location Go prepends is the one of the test code, not of this appender.
func NewTestAppender(tb testing.TB) Appender {
	return &testAppender{tb}
}

func (tapp *testAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	tapp.tb.Helper()
	line, err := formatLine(entry, fields)
	tapp.tb.Log(line)
	return err
}

// Sync is a no-op.
func (tapp *testAppender) Sync() error {
	return nil
}
