package lisp

import (
	"strings"
	"unicode/utf8"
)

// The scanner below tracks just enough lexical structure (strings,
// comments, bracket nesting) to answer the front end's structural
// questions without building values.

func isOpen(c byte) bool  { return c == '(' || c == '[' || c == '{' }
func isClose(c byte) bool { return c == ')' || c == ']' || c == '}' }

func closerFor(open byte) byte {
	switch open {
	case '(':
		return ')'
	case '[':
		return ']'
	default:
		return '}'
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ','
}

// isMacroPrefix reports characters that modify the form that follows.
func isMacroPrefix(c byte) bool {
	return c == '\'' || c == '`' || c == '~' || c == '@' || c == '^' || c == '#'
}

type formStatus int

const (
	formEmpty      formStatus = iota // only whitespace and comments
	formComplete                     // one full form ends at the returned offset
	formIncomplete                   // more input is needed
	formInvalid                      // stray or mismatched closing delimiter
)

// firstForm finds the end of the first top-level form in src.
func firstForm(src string) (int, formStatus) {
	var (
		stack    []byte
		inString bool
		inAtom   bool
		prefixed bool
	)

	for i := 0; i < len(src); i++ {
		c := src[i]

		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
				if len(stack) == 0 {
					return i + 1, formComplete
				}
			}
			continue
		}

		if inAtom && len(stack) == 0 && (isSpace(c) || isOpen(c) || isClose(c) || c == '"' || c == ';') {
			return i, formComplete
		}

		switch {
		case c == ';':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case isSpace(c):
		case c == '"':
			inString = true
		case isOpen(c):
			stack = append(stack, c)
		case isClose(c):
			if len(stack) == 0 || closerFor(stack[len(stack)-1]) != c {
				return len(src), formInvalid
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i + 1, formComplete
			}
		case isMacroPrefix(c) && len(stack) == 0 && !inAtom:
			prefixed = true
		default:
			if len(stack) == 0 {
				inAtom = true
			}
		}
	}

	switch {
	case inString || len(stack) > 0:
		return 0, formIncomplete
	case inAtom:
		return len(src), formComplete
	case prefixed:
		return 0, formIncomplete
	default:
		return len(src), formEmpty
	}
}

// openers returns the offsets of the delimiters still open at the end
// of src, innermost last.  inString reports an unterminated string.
func openers(src string) (offsets []int, inString bool) {
	for i := 0; i < len(src); i++ {
		c := src[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch {
		case c == ';':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '"':
			inString = true
		case isOpen(c):
			offsets = append(offsets, i)
		case isClose(c):
			if len(offsets) > 0 {
				offsets = offsets[:len(offsets)-1]
			}
		}
	}
	return offsets, inString
}

// matchOpener returns the offset of the opening delimiter matched by the
// closing delimiter at target, or -1.
func matchOpener(src string, target int) int {
	if target < 0 || target >= len(src) || !isClose(src[target]) {
		return -1
	}
	var stack []int
	inString := false
	for i := 0; i < target; i++ {
		c := src[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch {
		case c == ';':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			if i >= target {
				return -1
			}
		case c == '"':
			inString = true
		case isOpen(c):
			stack = append(stack, i)
		case isClose(c):
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if inString || len(stack) == 0 {
		return -1
	}
	open := stack[len(stack)-1]
	if closerFor(src[open]) != src[target] {
		return -1
	}
	return open
}

// column returns the rune column of byte offset off within its line.
func column(src string, off int) int {
	start := strings.LastIndexByte(src[:off], '\n') + 1
	return utf8.RuneCountInString(src[start:off])
}
