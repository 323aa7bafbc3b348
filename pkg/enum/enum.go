package enum

import (
	"fmt"
	"reflect"
	"sync"
)

var (
	enumManager = map[reflect.Type]any{}
	mutex       sync.RWMutex
)

type enum[T comparable] struct {
	toEnum   map[string]T
	toString map[T]string
}

// New registers value under the given name and returns the value, so it can
// be used directly in a var block.
func New[T comparable](value T, name string) T {
	mutex.Lock()
	defer mutex.Unlock()

	t := reflect.TypeOf(value)
	if _, ok := enumManager[t]; !ok {
		enumManager[t] = enum[T]{toEnum: make(map[string]T), toString: make(map[T]string)}
	}

	e := enumManager[t].(enum[T])
	e.toEnum[name] = value
	e.toString[value] = name
	return value
}

func ToEnum[T comparable](s string) (T, error) {
	mutex.RLock()
	defer mutex.RUnlock()

	var defaultT T
	e, ok := enumManager[reflect.TypeOf(defaultT)]
	if !ok {
		return defaultT, fmt.Errorf("not found enum type %T", defaultT)
	}

	t, ok := e.(enum[T]).toEnum[s]
	if !ok {
		return defaultT, fmt.Errorf("not found value %s in enum %T", s, defaultT)
	}

	return t, nil
}

// ToString returns the registered name of value, or an empty string if the
// value was never registered.
func ToString[T comparable](value T) string {
	mutex.RLock()
	defer mutex.RUnlock()

	e, ok := enumManager[reflect.TypeOf(value)]
	if !ok {
		return ""
	}

	return e.(enum[T]).toString[value]
}
