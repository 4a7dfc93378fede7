// Package keys derives stable cache keys from call arguments.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Separator joins the rendered arguments before hashing.
const Separator = ":"

// NamedArg is an argument identified by name rather than position.
// Named arguments are order-insensitive in Build.
type NamedArg struct {
	Name  string
	Value any
}

// Named returns a NamedArg.
func Named(name string, value any) NamedArg {
	return NamedArg{Name: name, Value: value}
}

// Build renders args and returns their digest. Positional arguments keep
// their order; named arguments are sorted by name and rendered as
// "name=value" after them.
func Build(args ...any) string {
	return Digest(Render(args...))
}

// Render returns the string Build hashes.
func Render(args ...any) string {
	parts := make([]string, 0, len(args))
	var named []NamedArg
	for _, a := range args {
		if n, ok := a.(NamedArg); ok {
			named = append(named, n)
			continue
		}
		parts = append(parts, fmt.Sprint(a))
	}

	sort.SliceStable(named, func(i, j int) bool { return named[i].Name < named[j].Name })
	for _, n := range named {
		parts = append(parts, n.Name+"="+fmt.Sprint(n.Value))
	}
	return strings.Join(parts, Separator)
}

// Digest returns the hex SHA-256 of s.
func Digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
