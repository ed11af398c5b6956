package store

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Namespace names an isolated key/value partition
type Namespace string

const (
	NamespaceCredentials Namespace = "credentials"
	NamespaceSystem      Namespace = "system"
)

// Namespaces lists every namespace the device uses, in clear order.
var Namespaces = []Namespace{NamespaceCredentials, NamespaceSystem}

type valueKind int

const (
	kindString valueKind = iota
	kindInt
)

// Value is a string-or-int scalar held in a namespace.
type Value struct {
	kind valueKind
	str  string
	num  int
}

// String returns a string value
func String(s string) Value {
	return Value{kind: kindString, str: s}
}

// Int returns a small-integer value
func Int(n int) Value {
	return Value{kind: kindInt, num: n}
}

// Bool encodes a flag as 0 or 1
func Bool(b bool) Value {
	if b {
		return Int(1)
	}
	return Int(0)
}

// AsString returns the string held by v, if it is a string
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == kindString
}

// AsInt returns the integer held by v, if it is an integer
func (v Value) AsInt() (int, bool) {
	return v.num, v.kind == kindInt
}

// AsBool treats any non-zero integer as true
func (v Value) AsBool() bool {
	n, ok := v.AsInt()
	return ok && n != 0
}

func (v Value) String() string {
	if v.kind == kindInt {
		return strconv.Itoa(v.num)
	}
	return strconv.Quote(v.str)
}

// MarshalYAML implements yaml.Marshaler
func (v Value) MarshalYAML() (interface{}, error) {
	if v.kind == kindInt {
		return v.num, nil
	}
	return v.str, nil
}

// UnmarshalYAML implements yaml.Unmarshaler. Integers keep their type so a
// flag written as 1 reads back as Int(1), not String("1").
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: store values must be scalars", node.Line)
	}

	if node.ShortTag() == "!!int" {
		var n int
		if err := node.Decode(&n); err != nil {
			return err
		}
		*v = Int(n)
		return nil
	}

	// yaml.v3 writes strings that are not valid UTF-8 as !!binary
	if node.ShortTag() == "!!binary" {
		raw, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(node.Value), ""))
		if err != nil {
			return fmt.Errorf("line %d: invalid binary value: %w", node.Line, err)
		}
		*v = String(string(raw))
		return nil
	}

	*v = String(node.Value)
	return nil
}
