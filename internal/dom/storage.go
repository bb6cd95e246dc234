//go:build js && wasm

package dom

import (
	"context"
	"fmt"
	"syscall/js"
)

// LocalStorage stores cache entries in window.localStorage. Private
// browsing modes may throw on access; that surfaces as an error.
type LocalStorage struct{}

func (LocalStorage) Load(_ context.Context, key string) (data []byte, err error) {
	defer recoverJS(&err)

	ls := js.Global().Get("localStorage")
	if !ls.Truthy() {
		return nil, fmt.Errorf("localStorage unavailable")
	}
	v := ls.Call("getItem", key)
	if v.IsNull() || v.IsUndefined() {
		return nil, nil
	}
	return []byte(v.String()), nil
}

func (LocalStorage) Save(_ context.Context, key string, data []byte) (err error) {
	defer recoverJS(&err)

	ls := js.Global().Get("localStorage")
	if !ls.Truthy() {
		return fmt.Errorf("localStorage unavailable")
	}
	ls.Call("setItem", key, string(data))
	return nil
}

func recoverJS(err *error) {
	if r := recover(); r != nil {
		if jsErr, ok := r.(js.Error); ok {
			*err = fmt.Errorf("localStorage: %w", jsErr)
			return
		}
		*err = fmt.Errorf("localStorage: %v", r)
	}
}
