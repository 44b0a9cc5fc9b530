package lisp

import (
	"fmt"
	"strconv"
	"strings"
)

// reader turns source text into values.
type reader struct {
	src string
	pos int
}

// readAll parses every form in src.
func readAll(src string) ([]Value, error) {
	r := &reader{src: src}
	var forms []Value
	for {
		r.skip()
		if r.pos >= len(r.src) {
			return forms, nil
		}
		v, err := r.read()
		if err != nil {
			return nil, err
		}
		forms = append(forms, v)
	}
}

func (r *reader) skip() {
	for r.pos < len(r.src) {
		c := r.src[r.pos]
		switch {
		case isSpace(c):
			r.pos++
		case c == ';':
			for r.pos < len(r.src) && r.src[r.pos] != '\n' {
				r.pos++
			}
		default:
			return
		}
	}
}

func (r *reader) read() (Value, error) {
	r.skip()
	if r.pos >= len(r.src) {
		return nil, fmt.Errorf("EOF while reading")
	}
	c := r.src[r.pos]
	switch {
	case c == '(':
		r.pos++
		items, err := r.readSeq(')')
		return List(items), err
	case c == '[':
		r.pos++
		items, err := r.readSeq(']')
		return Vector(items), err
	case c == '{':
		r.pos++
		items, err := r.readSeq('}')
		if err != nil {
			return nil, err
		}
		if len(items)%2 != 0 {
			return nil, fmt.Errorf("map literal must contain an even number of forms")
		}
		m := &Map{}
		for i := 0; i < len(items); i += 2 {
			m.Keys = append(m.Keys, items[i])
			m.Vals = append(m.Vals, items[i+1])
		}
		return m, nil
	case isClose(c):
		return nil, fmt.Errorf("unmatched delimiter: %c", c)
	case c == '\'':
		r.pos++
		v, err := r.read()
		if err != nil {
			return nil, err
		}
		return List{Symbol("quote"), v}, nil
	case c == '"':
		return r.readString()
	default:
		return r.readAtom()
	}
}

func (r *reader) readSeq(close byte) ([]Value, error) {
	var items []Value
	for {
		r.skip()
		if r.pos >= len(r.src) {
			return nil, fmt.Errorf("EOF while reading, expected %c", close)
		}
		c := r.src[r.pos]
		if isClose(c) {
			r.pos++
			if c != close {
				return nil, fmt.Errorf("unmatched delimiter: %c", c)
			}
			return items, nil
		}
		v, err := r.read()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
}

func (r *reader) readString() (Value, error) {
	start := r.pos
	r.pos++ // opening quote
	for r.pos < len(r.src) {
		switch r.src[r.pos] {
		case '\\':
			r.pos += 2
		case '"':
			r.pos++
			s, err := strconv.Unquote(r.src[start:r.pos])
			if err != nil {
				return nil, fmt.Errorf("invalid string literal %s", r.src[start:r.pos])
			}
			return s, nil
		default:
			r.pos++
		}
	}
	return nil, fmt.Errorf("EOF while reading string")
}

func (r *reader) readAtom() (Value, error) {
	start := r.pos
	for r.pos < len(r.src) {
		c := r.src[r.pos]
		if isSpace(c) || isOpen(c) || isClose(c) || c == '"' || c == ';' {
			break
		}
		r.pos++
	}
	return parseAtom(r.src[start:r.pos])
}

func parseAtom(tok string) (Value, error) {
	switch tok {
	case "nil":
		return nil, nil
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	if strings.HasPrefix(tok, ":") {
		if len(tok) == 1 {
			return nil, fmt.Errorf("invalid token: :")
		}
		return Keyword(tok[1:]), nil
	}
	if looksNumeric(tok) {
		if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
			return n, nil
		}
		if f, err := strconv.ParseFloat(tok, 64); err == nil {
			return f, nil
		}
		return nil, fmt.Errorf("invalid number: %s", tok)
	}
	return Symbol(tok), nil
}

func looksNumeric(tok string) bool {
	if tok == "" {
		return false
	}
	c := tok[0]
	if (c == '-' || c == '+') && len(tok) > 1 {
		c = tok[1]
	}
	return c >= '0' && c <= '9'
}
