// Package assertions implements the comparison logic shared by the assert
// and require packages. Each function takes a logger func so the same body
// can back both a soft (assert.Errorf) and a hard (require.Fatalf) check.
package assertions

import (
	"fmt"
	"reflect"
	"strings"
)

// TBMock captures the last Errorf/Fatalf call without failing the process,
// used by assertions' own tests to inspect what a check would have reported.
type TBMock struct {
	ErrorfMsg string
	FatalfMsg string
}

func (tb *TBMock) Errorf(format string, args ...interface{}) {
	tb.ErrorfMsg = fmt.Sprintf(format, args...)
}

func (tb *TBMock) Fatalf(format string, args ...interface{}) {
	tb.FatalfMsg = fmt.Sprintf(format, args...)
}

// assertionLoggerFn is satisfied by both testing.T's Errorf and Fatalf.
type assertionLoggerFn func(format string, args ...interface{})

func Equal(loggerFn assertionLoggerFn, expected, actual interface{}, msg ...interface{}) {
	if !valuesEqual(expected, actual) || reflect.TypeOf(expected) != reflect.TypeOf(actual) {
		lead := customLead("Values are not equal", msg...)
		loggerFn(lead+", want: %v (%T), got: %v (%T)", expected, expected, actual, actual)
	}
}

func NotEqual(loggerFn assertionLoggerFn, expected, actual interface{}, msg ...interface{}) {
	if valuesEqual(expected, actual) && reflect.TypeOf(expected) == reflect.TypeOf(actual) {
		lead := customLead("Values are equal", msg...)
		loggerFn(lead+", both values are equal: %v (%T)", expected, expected)
	}
}

func DeepEqual(loggerFn assertionLoggerFn, expected, actual interface{}, msg ...interface{}) {
	if !reflect.DeepEqual(expected, actual) {
		lead := customLead("Values are not equal", msg...)
		loggerFn(lead+", want: %#v, got: %#v", expected, actual)
	}
}

func NoError(loggerFn assertionLoggerFn, err error, msg ...interface{}) {
	if err != nil {
		lead := customLead("Unexpected error", msg...)
		loggerFn(lead+": %v", err)
	}
}

func ErrorContains(loggerFn assertionLoggerFn, want string, err error, msg ...interface{}) {
	if err == nil || !strings.Contains(err.Error(), want) {
		lead := customLead("Expected error not returned", msg...)
		loggerFn(lead+", got: %v, want: %s", err, want)
	}
}

func NotNil(loggerFn assertionLoggerFn, obj interface{}, msg ...interface{}) {
	if isNil(obj) {
		loggerFn(customLead("Unexpected nil value", msg...))
	}
}

// customLead returns the caller-supplied lead message (msg[0] used as a
// format string over msg[1:]) if given, otherwise the default.
func customLead(def string, msg ...interface{}) string {
	if len(msg) == 0 {
		return def
	}
	return fmt.Sprintf(fmt.Sprintf("%v", msg[0]), msg[1:]...)
}

func valuesEqual(expected, actual interface{}) bool {
	if expected == nil || actual == nil {
		return expected == actual
	}
	if reflect.DeepEqual(expected, actual) {
		return true
	}
	return fmt.Sprintf("%v", expected) == fmt.Sprintf("%v", actual)
}

func isNil(obj interface{}) bool {
	if obj == nil {
		return true
	}
	value := reflect.ValueOf(obj)
	switch value.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Ptr, reflect.Slice:
		return value.IsNil()
	default:
		return false
	}
}
