package testutils

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
}

// NewTestHelper creates a test helper with a suppressed debug logger. Point
// the output at os.Stderr when chasing a failing flow.
func NewTestHelper(t *testing.T) *TestHelper {
	return &TestHelper{
		T:      t,
		Logger: NewTestLogger(),
	}
}

// NewTestLogger returns a suppressed debug logger for tests that do not need
// the full helper.
func NewTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	logger.SetOutput(io.Discard)
	return logger
}

func CreateTransport() *TransportBuilder {
	return NewTransportBuilder()
}

func CreateTransportFromJSON(jsonStrFmt string, args ...interface{}) *TransportBuilder {
	return NewTransportBuilder().FromJSON(jsonStrFmt, args...)
}
