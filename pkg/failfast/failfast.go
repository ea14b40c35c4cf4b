// Package failfast asserts invariants that indicate a bug in the calling
// package itself, as opposed to a caller-facing error. A failed assertion
// panics with a captured stack rather than returning an error, because
// there is no status code that correctly describes "the core is broken."
package failfast

import (
	"fmt"
	"reflect"
	"runtime/debug"
)

// Err panics if err is non-nil.
func Err(err error) {
	if err != nil {
		panic(fmt.Errorf("fail-fast: %w\n%s", err, debug.Stack()))
	}
}

// If panics with the formatted message if condition is false.
func If(condition bool, message string, args ...interface{}) {
	if !condition {
		panic(fmt.Errorf("fail-fast: %s\n%s", fmt.Sprintf(message, args...), debug.Stack()))
	}
}

// NotNil panics if ptr is nil, including a typed nil pointer or nil func.
func NotNil(ptr interface{}, name string) {
	if ptr == nil {
		panic(fmt.Errorf("fail-fast: %s is nil\n%s", name, debug.Stack()))
	}
	v := reflect.ValueOf(ptr)
	switch v.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan:
		if v.IsNil() {
			panic(fmt.Errorf("fail-fast: %s is nil\n%s", name, debug.Stack()))
		}
	}
}
