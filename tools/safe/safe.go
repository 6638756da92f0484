package safe

import (
	"fmt"
	"reflect"

	"PLedger/logger"
	"PLedger/tools/errs"

	"go.uber.org/zap"
)

// MustNotNil panics if the given value is nil.
// Useful for enforcing required fields during struct initialization.
func MustNotNil(v any, name string) {
	if v == nil {
		panic(fmt.Sprintf("%s must not be nil", name))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			panic(fmt.Sprintf("%s must not be nil", name))
		}
	}
}

// Go starts a new goroutine that recovers from panic,
// so that panics don't crash the entire program.
// The recovered value is logged and handed to onPanic when it is non-nil.
func Go(name string, f func(), onPanic func(error)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				err := errs.ErrPanic(r)
				logger.Error("[SafeGo] panic recovered", zap.String("goroutine", name), zap.Error(err))
				if onPanic != nil {
					onPanic(err)
				}
			}
		}()
		f()
	}()
}
