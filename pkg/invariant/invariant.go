// Package invariant provides assertions for internal consistency.
//
// A failed assertion is a bug in Quicksilver itself, never a problem with a
// template or its data, so every function here panics instead of returning
// an error.
package invariant

import (
	"fmt"
	"reflect"
	"runtime"
)

// Precondition checks an input contract at function entry.
func Precondition(condition bool, format string, args ...any) {
	if !condition {
		fail("PRECONDITION", format, args...)
	}
}

// Invariant checks internal state during a computation.
func Invariant(condition bool, format string, args ...any) {
	if !condition {
		fail("INVARIANT", format, args...)
	}
}

// NotNil panics if value is nil, including typed nils.
func NotNil(value any, name string) {
	if value == nil || isNilValue(value) {
		fail("PRECONDITION", "%s must not be nil", name)
	}
}

// Unreachable marks a branch the caller guarantees is never taken.
func Unreachable(format string, args ...any) {
	fail("UNREACHABLE", format, args...)
}

func isNilValue(value any) bool {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return v.IsNil()
	}
	return false
}

// fail panics with the violation and the file:line of the failed check.
func fail(kind, format string, args ...any) {
	msg := fmt.Sprintf("%s VIOLATION: "+format, append([]any{kind}, args...)...)
	if _, file, line, ok := runtime.Caller(2); ok {
		msg += fmt.Sprintf("\n  at %s:%d", file, line)
	}
	panic(msg)
}
