package assert

import (
	"fmt"
	"reflect"
)

func describe(name []string) string {
	if len(name) == 0 {
		return "value"
	}
	return name[0]
}

// NotNil panics if value is nil or a typed nil pointer, map, slice, func or chan.
func NotNil(value any, name ...string) {
	if value == nil {
		panic(fmt.Sprintf("expected %s to be not nil", describe(name)))
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		if v.IsNil() {
			panic(fmt.Sprintf("expected %s to be not nil", describe(name)))
		}
	}
}

func NotEmptyStr(str string, name ...string) {
	if str == "" {
		panic(fmt.Sprintf("expected %s to be non-empty", describe(name)))
	}
}
