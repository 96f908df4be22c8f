package sharedtest

import "reflect"

// AssertNotNil panics if the value is nil, either as a nil interface value or as a typed nil
// pointer wrapped in a non-nil interface.
func AssertNotNil(i interface{}) {
	if i == nil {
		panic("unexpected nil interface value")
	}
	if val := reflect.ValueOf(i); val.Kind() == reflect.Ptr && val.IsNil() {
		panic("unexpected nil pointer")
	}
}
