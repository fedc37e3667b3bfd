// Package require offers convenience methods that log a test failure via
// t.Fatalf and stop the test immediately, wrapping the assertions package.
package require

import (
	"testing"

	"github.com/dualcheck/surveil/internal/testutil/assertions"
)

type testTB interface {
	Fatalf(format string, args ...interface{})
}

// Equal checks that expected and actual are equal, stopping the test if not.
func Equal(tb testTB, expected, actual interface{}, msg ...interface{}) {
	requireHelper(tb)
	assertions.Equal(tb.Fatalf, expected, actual, msg...)
}

// NotEqual checks that expected and actual are not equal.
func NotEqual(tb testTB, expected, actual interface{}, msg ...interface{}) {
	requireHelper(tb)
	assertions.NotEqual(tb.Fatalf, expected, actual, msg...)
}

// DeepEqual checks that expected and actual are deeply equal via reflection.
func DeepEqual(tb testTB, expected, actual interface{}, msg ...interface{}) {
	requireHelper(tb)
	assertions.DeepEqual(tb.Fatalf, expected, actual, msg...)
}

// NoError checks that err is nil.
func NoError(tb testTB, err error, msg ...interface{}) {
	requireHelper(tb)
	assertions.NoError(tb.Fatalf, err, msg...)
}

// ErrorContains checks that err is non-nil and its message contains want.
func ErrorContains(tb testTB, want string, err error, msg ...interface{}) {
	requireHelper(tb)
	assertions.ErrorContains(tb.Fatalf, want, err, msg...)
}

// NotNil checks that obj is a non-nil value.
func NotNil(tb testTB, obj interface{}, msg ...interface{}) {
	requireHelper(tb)
	assertions.NotNil(tb.Fatalf, obj, msg...)
}

func requireHelper(tb testTB) {
	if t, ok := tb.(*testing.T); ok {
		t.Helper()
	}
}
