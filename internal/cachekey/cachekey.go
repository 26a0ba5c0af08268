// Package cachekey builds the structured (method, args) keys the Hot Cache
// is keyed by (spec.md §4.3), so every caller constructs keys the same way
// instead of hand-formatting strings at each call site.
package cachekey

import "fmt"

// Of joins method and its arguments into a single cache key. Keeping this
// in one place means a later change to the key format (e.g. adding a chain
// id) touches one function instead of every call site.
func Of(method string, args ...any) string {
	key := method
	for _, a := range args {
		key += fmt.Sprintf(":%v", a)
	}
	return key
}
