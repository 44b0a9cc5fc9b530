package lisp

import (
	"context"
	"fmt"
	"io"
)

const maxDepth = 2000

// scope is a lexical environment frame created by let and fn.
type scope struct {
	vars   map[Symbol]Value
	parent *scope
}

func (s *scope) lookup(name Symbol) (Value, bool) {
	for f := s; f != nil; f = f.parent {
		if v, ok := f.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// call is the per-evaluation state threaded through eval.
type call struct {
	ctx       context.Context
	engine    *Engine
	ns        string
	out       io.Writer
	termWidth int
	depth     int
}

// exitRequest unwinds evaluation when (exit) is called.
type exitRequest struct{ code int }

func (e *exitRequest) Error() string { return fmt.Sprintf("exit %d", e.code) }

func (c *call) eval(form Value, sc *scope) (Value, error) {
	if err := c.ctx.Err(); err != nil {
		return nil, err
	}
	c.depth++
	defer func() { c.depth-- }()
	if c.depth > maxDepth {
		return nil, fmt.Errorf("stack overflow")
	}

	switch x := form.(type) {
	case Symbol:
		return c.resolve(x, sc)
	case Vector:
		out := make(Vector, len(x))
		for i, it := range x {
			v, err := c.eval(it, sc)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case *Map:
		m := &Map{}
		for i := range x.Keys {
			k, err := c.eval(x.Keys[i], sc)
			if err != nil {
				return nil, err
			}
			v, err := c.eval(x.Vals[i], sc)
			if err != nil {
				return nil, err
			}
			m.Keys = append(m.Keys, k)
			m.Vals = append(m.Vals, v)
		}
		return m, nil
	case List:
		if len(x) == 0 {
			return x, nil
		}
		if head, ok := x[0].(Symbol); ok {
			if sf, ok := specialForms[head]; ok {
				return sf(c, x[1:], sc)
			}
		}
		fn, err := c.eval(x[0], sc)
		if err != nil {
			return nil, err
		}
		args := make([]Value, 0, len(x)-1)
		for _, a := range x[1:] {
			v, err := c.eval(a, sc)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
		return c.apply(fn, args)
	default:
		return form, nil
	}
}

func (c *call) resolve(name Symbol, sc *scope) (Value, error) {
	if v, ok := sc.lookup(name); ok {
		return v, nil
	}
	if v, ok := c.engine.lookupVar(c.ns, name); ok {
		return v, nil
	}
	if b, ok := builtins[name]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("unable to resolve symbol: %s in this context", name)
}

func (c *call) apply(fn Value, args []Value) (Value, error) {
	switch f := fn.(type) {
	case *Builtin:
		return f.Fn(c, args)
	case *Fn:
		if len(args) < len(f.Params) || (f.Rest == "" && len(args) > len(f.Params)) {
			return nil, fmt.Errorf("wrong number of args (%d) passed to %s", len(args), printString(f, false))
		}
		frame := &scope{vars: make(map[Symbol]Value, len(f.Params)+1), parent: f.Scope}
		for i, p := range f.Params {
			frame.vars[p] = args[i]
		}
		if f.Rest != "" {
			frame.vars[f.Rest] = List(append([]Value(nil), args[len(f.Params):]...))
		}
		prevNS := c.ns
		c.ns = f.NS
		defer func() { c.ns = prevNS }()
		return c.body(f.Body, frame)
	case Keyword:
		if len(args) == 1 {
			if m, ok := args[0].(*Map); ok {
				v, _ := m.get(f)
				return v, nil
			}
			return nil, nil
		}
	}
	return nil, fmt.Errorf("%s cannot be cast to a function", printString(fn, true))
}

func (c *call) body(forms []Value, sc *scope) (Value, error) {
	var result Value
	for _, f := range forms {
		v, err := c.eval(f, sc)
		if err != nil {
			return nil, err
		}
		result = v
	}
	return result, nil
}

// special forms

type specialForm func(c *call, args []Value, sc *scope) (Value, error)

var specialForms map[Symbol]specialForm

func init() {
	specialForms = map[Symbol]specialForm{
		"quote": sfQuote,
		"def":   sfDef,
		"if":    sfIf,
		"do":    sfDo,
		"let":   sfLet,
		"fn":    sfFn,
		"defn":  sfDefn,
		"ns":    sfNS,
	}
}

func sfQuote(_ *call, args []Value, _ *scope) (Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("quote takes exactly one form")
	}
	return args[0], nil
}

func sfDef(c *call, args []Value, sc *scope) (Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("def takes a name and a value")
	}
	name, ok := args[0].(Symbol)
	if !ok {
		return nil, fmt.Errorf("first argument to def must be a symbol")
	}
	v, err := c.eval(args[1], sc)
	if err != nil {
		return nil, err
	}
	if fn, ok := v.(*Fn); ok && fn.Name == "" {
		fn.Name = string(name)
	}
	c.engine.defineVar(c.ns, name, v)
	return Symbol("#'" + c.ns + "/" + string(name)), nil
}

func sfIf(c *call, args []Value, sc *scope) (Value, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, fmt.Errorf("if takes a test, a then and an optional else")
	}
	test, err := c.eval(args[0], sc)
	if err != nil {
		return nil, err
	}
	if truthy(test) {
		return c.eval(args[1], sc)
	}
	if len(args) == 3 {
		return c.eval(args[2], sc)
	}
	return nil, nil
}

func sfDo(c *call, args []Value, sc *scope) (Value, error) {
	return c.body(args, sc)
}

func sfLet(c *call, args []Value, sc *scope) (Value, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("let requires a binding vector")
	}
	bindings, ok := args[0].(Vector)
	if !ok || len(bindings)%2 != 0 {
		return nil, fmt.Errorf("let requires a vector with an even number of forms")
	}
	frame := &scope{vars: make(map[Symbol]Value, len(bindings)/2), parent: sc}
	for i := 0; i < len(bindings); i += 2 {
		name, ok := bindings[i].(Symbol)
		if !ok {
			return nil, fmt.Errorf("let binding names must be symbols")
		}
		v, err := c.eval(bindings[i+1], frame)
		if err != nil {
			return nil, err
		}
		frame.vars[name] = v
	}
	return c.body(args[1:], frame)
}

func sfFn(c *call, args []Value, sc *scope) (Value, error) {
	name := ""
	if len(args) > 0 {
		if s, ok := args[0].(Symbol); ok {
			name = string(s)
			args = args[1:]
		}
	}
	if len(args) < 1 {
		return nil, fmt.Errorf("fn requires a parameter vector")
	}
	params, ok := args[0].(Vector)
	if !ok {
		return nil, fmt.Errorf("fn parameters must be a vector")
	}
	fn := &Fn{Name: name, Body: args[1:], Scope: sc, NS: c.ns}
	for i := 0; i < len(params); i++ {
		p, ok := params[i].(Symbol)
		if !ok {
			return nil, fmt.Errorf("fn parameters must be symbols")
		}
		if p == "&" {
			if i+1 != len(params)-1 {
				return nil, fmt.Errorf("& must be followed by exactly one parameter")
			}
			rest, ok := params[i+1].(Symbol)
			if !ok {
				return nil, fmt.Errorf("fn parameters must be symbols")
			}
			fn.Rest = rest
			break
		}
		fn.Params = append(fn.Params, p)
	}
	return fn, nil
}

func sfDefn(c *call, args []Value, sc *scope) (Value, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("defn requires a name and a parameter vector")
	}
	name, ok := args[0].(Symbol)
	if !ok {
		return nil, fmt.Errorf("first argument to defn must be a symbol")
	}
	fn, err := sfFn(c, args, sc)
	if err != nil {
		return nil, err
	}
	return sfDef(c, []Value{name, List{Symbol("quote"), fn}}, sc)
}

func sfNS(c *call, args []Value, _ *scope) (Value, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("ns requires a name")
	}
	name, ok := args[0].(Symbol)
	if !ok {
		return nil, fmt.Errorf("ns name must be a symbol")
	}
	c.ns = string(name)
	c.engine.ensureNS(c.ns)
	return nil, nil
}
