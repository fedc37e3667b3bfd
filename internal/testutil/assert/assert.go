// Package assert offers convenience methods that log a test failure via
// t.Errorf without stopping the test, wrapping the assertions package.
package assert

import (
	"testing"

	"github.com/dualcheck/surveil/internal/testutil/assertions"
)

type testTB interface {
	Errorf(format string, args ...interface{})
}

// Equal checks that expected and actual are equal, failing the test if not.
func Equal(tb testTB, expected, actual interface{}, msg ...interface{}) {
	assertHelper(tb)
	assertions.Equal(tb.Errorf, expected, actual, msg...)
}

// NotEqual checks that expected and actual are not equal.
func NotEqual(tb testTB, expected, actual interface{}, msg ...interface{}) {
	assertHelper(tb)
	assertions.NotEqual(tb.Errorf, expected, actual, msg...)
}

// DeepEqual checks that expected and actual are deeply equal via reflection.
func DeepEqual(tb testTB, expected, actual interface{}, msg ...interface{}) {
	assertHelper(tb)
	assertions.DeepEqual(tb.Errorf, expected, actual, msg...)
}

// NoError checks that err is nil.
func NoError(tb testTB, err error, msg ...interface{}) {
	assertHelper(tb)
	assertions.NoError(tb.Errorf, err, msg...)
}

// ErrorContains checks that err is non-nil and its message contains want.
func ErrorContains(tb testTB, want string, err error, msg ...interface{}) {
	assertHelper(tb)
	assertions.ErrorContains(tb.Errorf, want, err, msg...)
}

// NotNil checks that obj is a non-nil value.
func NotNil(tb testTB, obj interface{}, msg ...interface{}) {
	assertHelper(tb)
	assertions.NotNil(tb.Errorf, obj, msg...)
}

func assertHelper(tb testTB) {
	if t, ok := tb.(*testing.T); ok {
		t.Helper()
	}
}
