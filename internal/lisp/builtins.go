package lisp

import (
	"fmt"
	"io"
	"strings"
	"time"
)

var builtins map[Symbol]*Builtin

func init() {
	builtins = make(map[Symbol]*Builtin)
	def := func(name string, fn func(c *call, args []Value) (Value, error)) {
		builtins[Symbol(name)] = &Builtin{Name: name, Fn: fn}
	}

	def("+", arith("+", 0, func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b }))
	def("*", arith("*", 1, func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b }))
	def("-", minus)
	def("/", divide)
	def("inc", func(_ *call, args []Value) (Value, error) { return step(args, 1) })
	def("dec", func(_ *call, args []Value) (Value, error) { return step(args, -1) })
	def("=", func(_ *call, args []Value) (Value, error) {
		for i := 1; i < len(args); i++ {
			if !equal(args[i-1], args[i]) {
				return false, nil
			}
		}
		return true, nil
	})
	def("<", compare(func(a, b float64) bool { return a < b }))
	def(">", compare(func(a, b float64) bool { return a > b }))
	def("<=", compare(func(a, b float64) bool { return a <= b }))
	def(">=", compare(func(a, b float64) bool { return a >= b }))
	def("not", func(_ *call, args []Value) (Value, error) {
		if err := arity("not", args, 1); err != nil {
			return nil, err
		}
		return !truthy(args[0]), nil
	})
	def("nil?", func(_ *call, args []Value) (Value, error) {
		if err := arity("nil?", args, 1); err != nil {
			return nil, err
		}
		return args[0] == nil, nil
	})

	def("str", func(_ *call, args []Value) (Value, error) {
		var b strings.Builder
		for _, a := range args {
			if a != nil {
				writeValue(&b, a, false)
			}
		}
		return b.String(), nil
	})
	def("list", func(_ *call, args []Value) (Value, error) { return List(append([]Value(nil), args...)), nil })
	def("vector", func(_ *call, args []Value) (Value, error) { return Vector(append([]Value(nil), args...)), nil })
	def("count", func(_ *call, args []Value) (Value, error) {
		if err := arity("count", args, 1); err != nil {
			return nil, err
		}
		switch x := args[0].(type) {
		case nil:
			return int64(0), nil
		case string:
			return int64(len([]rune(x))), nil
		case *Map:
			return int64(len(x.Keys)), nil
		}
		items, err := seq("count", args[0])
		return int64(len(items)), err
	})
	def("first", func(_ *call, args []Value) (Value, error) {
		if err := arity("first", args, 1); err != nil {
			return nil, err
		}
		items, err := seq("first", args[0])
		if err != nil || len(items) == 0 {
			return nil, err
		}
		return items[0], nil
	})
	def("rest", func(_ *call, args []Value) (Value, error) {
		if err := arity("rest", args, 1); err != nil {
			return nil, err
		}
		items, err := seq("rest", args[0])
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return List{}, nil
		}
		return List(append([]Value(nil), items[1:]...)), nil
	})
	def("cons", func(_ *call, args []Value) (Value, error) {
		if err := arity("cons", args, 2); err != nil {
			return nil, err
		}
		items, err := seq("cons", args[1])
		if err != nil {
			return nil, err
		}
		return append(List{args[0]}, items...), nil
	})
	def("get", func(_ *call, args []Value) (Value, error) {
		if len(args) < 2 || len(args) > 3 {
			return nil, fmt.Errorf("wrong number of args (%d) passed to get", len(args))
		}
		var dflt Value
		if len(args) == 3 {
			dflt = args[2]
		}
		m, ok := args[0].(*Map)
		if !ok {
			return dflt, nil
		}
		if v, found := m.get(args[1]); found {
			return v, nil
		}
		return dflt, nil
	})
	def("map", func(c *call, args []Value) (Value, error) {
		if err := arity("map", args, 2); err != nil {
			return nil, err
		}
		items, err := seq("map", args[1])
		if err != nil {
			return nil, err
		}
		out := make(List, 0, len(items))
		for _, it := range items {
			v, err := c.apply(args[0], []Value{it})
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	})
	def("apply", func(c *call, args []Value) (Value, error) {
		if len(args) < 2 {
			return nil, fmt.Errorf("wrong number of args (%d) passed to apply", len(args))
		}
		tail, err := seq("apply", args[len(args)-1])
		if err != nil {
			return nil, err
		}
		callArgs := append(append([]Value(nil), args[1:len(args)-1]...), tail...)
		return c.apply(args[0], callArgs)
	})

	def("print", printer(false, false))
	def("println", printer(false, true))
	def("prn", printer(true, true))
	def("pr-str", func(_ *call, args []Value) (Value, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = printString(a, true)
		}
		return strings.Join(parts, " "), nil
	})

	def("term-width", func(c *call, _ []Value) (Value, error) {
		if c.termWidth <= 0 {
			return nil, nil
		}
		return int64(c.termWidth), nil
	})
	def("in-ns", func(c *call, args []Value) (Value, error) {
		if err := arity("in-ns", args, 1); err != nil {
			return nil, err
		}
		name, ok := args[0].(Symbol)
		if !ok {
			return nil, fmt.Errorf("in-ns requires a symbol")
		}
		c.ns = string(name)
		c.engine.ensureNS(c.ns)
		return nil, nil
	})
	def("sleep", func(c *call, args []Value) (Value, error) {
		if err := arity("sleep", args, 1); err != nil {
			return nil, err
		}
		ms, ok := args[0].(int64)
		if !ok || ms < 0 {
			return nil, fmt.Errorf("sleep requires a non-negative integer")
		}
		t := time.NewTimer(time.Duration(ms) * time.Millisecond)
		defer t.Stop()
		select {
		case <-c.ctx.Done():
			return nil, c.ctx.Err()
		case <-t.C:
			return nil, nil
		}
	})
	def("exit", func(_ *call, args []Value) (Value, error) {
		code := int64(0)
		if len(args) > 0 {
			n, ok := args[0].(int64)
			if !ok {
				return nil, fmt.Errorf("exit code must be an integer")
			}
			code = n
		}
		return nil, &exitRequest{code: int(code)}
	})
}

func arity(name string, args []Value, n int) error {
	if len(args) != n {
		return fmt.Errorf("wrong number of args (%d) passed to %s", len(args), name)
	}
	return nil
}

func seq(name string, v Value) ([]Value, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case List:
		return x, nil
	case Vector:
		return x, nil
	}
	return nil, fmt.Errorf("%s not supported on %s", name, printString(v, true))
}

func number(name string, v Value) (Value, error) {
	switch v.(type) {
	case int64, float64:
		return v, nil
	}
	return nil, fmt.Errorf("%s requires numbers, got %s", name, printString(v, true))
}

func arith(name string, identity int64, ints func(a, b int64) int64, floats func(a, b float64) float64) func(*call, []Value) (Value, error) {
	return func(_ *call, args []Value) (Value, error) {
		var acc Value = identity
		for _, a := range args {
			n, err := number(name, a)
			if err != nil {
				return nil, err
			}
			acc = combine(acc, n, ints, floats)
		}
		return acc, nil
	}
}

func combine(a, b Value, ints func(a, b int64) int64, floats func(a, b float64) float64) Value {
	ai, aInt := a.(int64)
	bi, bInt := b.(int64)
	if aInt && bInt {
		return ints(ai, bi)
	}
	af, _ := toFloat(a)
	bf, _ := toFloat(b)
	return floats(af, bf)
}

func minus(_ *call, args []Value) (Value, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("wrong number of args (0) passed to -")
	}
	sub := func(a, b int64) int64 { return a - b }
	subf := func(a, b float64) float64 { return a - b }
	first, err := number("-", args[0])
	if err != nil {
		return nil, err
	}
	if len(args) == 1 {
		return combine(int64(0), first, sub, subf), nil
	}
	acc := first
	for _, a := range args[1:] {
		n, err := number("-", a)
		if err != nil {
			return nil, err
		}
		acc = combine(acc, n, sub, subf)
	}
	return acc, nil
}

func divide(_ *call, args []Value) (Value, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("wrong number of args (0) passed to /")
	}
	first, err := number("/", args[0])
	if err != nil {
		return nil, err
	}
	rest := args[1:]
	if len(rest) == 0 {
		first, rest = int64(1), args
	}
	acc := first
	for _, a := range rest {
		n, err := number("/", a)
		if err != nil {
			return nil, err
		}
		ai, aInt := acc.(int64)
		ni, nInt := n.(int64)
		switch {
		case aInt && nInt && ni == 0:
			return nil, fmt.Errorf("divide by zero")
		case aInt && nInt && ai%ni == 0:
			acc = ai / ni
		default:
			af, _ := toFloat(acc)
			nf, _ := toFloat(n)
			acc = af / nf
		}
	}
	return acc, nil
}

func step(args []Value, delta int64) (Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("wrong number of args (%d) passed to inc/dec", len(args))
	}
	n, err := number("inc/dec", args[0])
	if err != nil {
		return nil, err
	}
	return combine(n, delta, func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b }), nil
}

func compare(ok func(a, b float64) bool) func(*call, []Value) (Value, error) {
	return func(_ *call, args []Value) (Value, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("comparison requires at least one argument")
		}
		for i := 1; i < len(args); i++ {
			a, okA := toFloat(args[i-1])
			b, okB := toFloat(args[i])
			if !okA || !okB {
				return nil, fmt.Errorf("comparison requires numbers")
			}
			if !ok(a, b) {
				return false, nil
			}
		}
		return true, nil
	}
}

func printer(readably, newline bool) func(*call, []Value) (Value, error) {
	return func(c *call, args []Value) (Value, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = printString(a, readably)
		}
		s := strings.Join(parts, " ")
		if newline {
			s += "\n"
		}
		_, err := io.WriteString(c.out, s)
		return nil, err
	}
}
