package lisp

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is any runtime value: nil, bool, int64, float64, string,
// Symbol, Keyword, List, Vector, *Map, *Fn or *Builtin.
type Value interface{}

// Symbol is an unevaluated name.
type Symbol string

// Keyword is a self-evaluating :name.
type Keyword string

// List is a parenthesised sequence; evaluating it is a call.
type List []Value

// Vector is a bracketed sequence; evaluating it evaluates each element.
type Vector []Value

// Map is an insertion-ordered association.
type Map struct {
	Keys []Value
	Vals []Value
}

// Fn is a user-defined function closing over its defining scope.
type Fn struct {
	Name   string
	Params []Symbol
	Rest   Symbol // empty unless declared with &
	Body   []Value
	Scope  *scope
	NS     string
}

// Builtin is a native function.
type Builtin struct {
	Name string
	Fn   func(c *call, args []Value) (Value, error)
}

// truthy follows the usual lisp rule: only nil and false are false.
func truthy(v Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	default:
		return true
	}
}

// printString renders v; readably quotes and escapes strings.
func printString(v Value, readably bool) string {
	var b strings.Builder
	writeValue(&b, v, readably)
	return b.String()
}

func writeValue(b *strings.Builder, v Value, readably bool) {
	switch x := v.(type) {
	case nil:
		b.WriteString("nil")
	case bool:
		b.WriteString(strconv.FormatBool(x))
	case int64:
		b.WriteString(strconv.FormatInt(x, 10))
	case float64:
		s := strconv.FormatFloat(x, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEnI") {
			s += ".0"
		}
		b.WriteString(s)
	case string:
		if readably {
			b.WriteString(strconv.Quote(x))
		} else {
			b.WriteString(x)
		}
	case Symbol:
		b.WriteString(string(x))
	case Keyword:
		b.WriteString(":" + string(x))
	case List:
		writeSeq(b, "(", ")", x, readably)
	case Vector:
		writeSeq(b, "[", "]", x, readably)
	case *Map:
		b.WriteByte('{')
		for i := range x.Keys {
			if i > 0 {
				b.WriteString(", ")
			}
			writeValue(b, x.Keys[i], readably)
			b.WriteByte(' ')
			writeValue(b, x.Vals[i], readably)
		}
		b.WriteByte('}')
	case *Fn:
		name := x.Name
		if name == "" {
			name = "fn"
		}
		fmt.Fprintf(b, "#<fn %s>", name)
	case *Builtin:
		fmt.Fprintf(b, "#<builtin %s>", x.Name)
	default:
		fmt.Fprintf(b, "%v", x)
	}
}

func writeSeq(b *strings.Builder, open, close string, items []Value, readably bool) {
	b.WriteString(open)
	for i, it := range items {
		if i > 0 {
			b.WriteByte(' ')
		}
		writeValue(b, it, readably)
	}
	b.WriteString(close)
}

// equal is structural equality; numbers compare across int and float.
func equal(a, b Value) bool {
	if na, ok := toFloat(a); ok {
		if nb, ok := toFloat(b); ok {
			return na == nb
		}
		return false
	}
	switch x := a.(type) {
	case List:
		return seqEqual(x, b)
	case Vector:
		return seqEqual(x, b)
	case *Map:
		y, ok := b.(*Map)
		if !ok || len(x.Keys) != len(y.Keys) {
			return false
		}
		for i, k := range x.Keys {
			v, found := y.get(k)
			if !found || !equal(x.Vals[i], v) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func seqEqual(a []Value, b Value) bool {
	var other []Value
	switch y := b.(type) {
	case List:
		other = y
	case Vector:
		other = y
	default:
		return false
	}
	if len(a) != len(other) {
		return false
	}
	for i := range a {
		if !equal(a[i], other[i]) {
			return false
		}
	}
	return true
}

func (m *Map) get(k Value) (Value, bool) {
	for i, key := range m.Keys {
		if equal(key, k) {
			return m.Vals[i], true
		}
	}
	return nil, false
}

func toFloat(v Value) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}
