package namelist

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

type tokKind int

const (
	tokEOF tokKind = iota
	tokWord
	tokString
	tokEquals
	tokComma
	tokLParen
	tokRParen
	tokSlash
	tokAmp
	tokDollar
)

type token struct {
	kind tokKind
	text string
	line int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of file"
	case tokString:
		return strconv.Quote(t.text)
	}
	return fmt.Sprintf("%q", t.text)
}

// SyntaxError reports a malformed namelist.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("namelist: line %d: %s", e.Line, e.Msg)
}

func lex(src string) ([]token, error) {
	var toks []token
	line := 1
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\n':
			line++
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '!':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '\'' || c == '"':
			quote := c
			start := line
			i++
			var sb strings.Builder
			closed := false
			for i < len(src) {
				if src[i] == quote {
					if i+1 < len(src) && src[i+1] == quote {
						sb.WriteByte(quote)
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				if src[i] == '\n' {
					line++
				}
				sb.WriteByte(src[i])
				i++
			}
			if !closed {
				return nil, &SyntaxError{Line: start, Msg: "unterminated string"}
			}
			toks = append(toks, token{kind: tokString, text: sb.String(), line: start})
		case c == '=':
			toks = append(toks, token{kind: tokEquals, text: "=", line: line})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokComma, text: ",", line: line})
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", line: line})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", line: line})
			i++
		case c == '/':
			toks = append(toks, token{kind: tokSlash, text: "/", line: line})
			i++
		case c == '&':
			toks = append(toks, token{kind: tokAmp, text: "&", line: line})
			i++
		case c == '$':
			toks = append(toks, token{kind: tokDollar, text: "$", line: line})
			i++
		default:
			start := i
			for i < len(src) && !strings.ContainsRune(" \t\r\n=,()/&$!'\"", rune(src[i])) {
				i++
			}
			toks = append(toks, token{kind: tokWord, text: src[start:i], line: line})
		}
	}
	toks = append(toks, token{kind: tokEOF, line: line})
	return toks, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek(off int) token {
	if p.pos+off >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+off]
}

func (p *parser) next() token {
	t := p.peek(0)
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...interface{}) error {
	return &SyntaxError{Line: t.line, Msg: fmt.Sprintf(format, args...)}
}

// Parse reads a namelist from r. Text outside groups is ignored, as
// Fortran does.
func Parse(r io.Reader) (*Namelist, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	toks, err := lex(string(raw))
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	nml := &Namelist{groups: make(map[string]*Group)}

	for {
		t := p.next()
		switch t.kind {
		case tokEOF:
			return nml, nil
		case tokAmp, tokDollar:
			name := p.next()
			if name.kind != tokWord {
				return nil, p.errorf(name, "expected group name, got %s", name)
			}
			gname := strings.ToLower(name.text)
			g, ok := nml.groups[gname]
			if !ok {
				g = &Group{Name: gname, values: make(map[string]Value)}
				nml.groups[gname] = g
				nml.order = append(nml.order, gname)
			}
			if err := p.parseGroup(g); err != nil {
				return nil, err
			}
		}
	}
}

func (p *parser) atGroupEnd() bool {
	t := p.peek(0)
	switch t.kind {
	case tokSlash, tokEOF:
		return true
	case tokAmp, tokDollar:
		return true
	}
	return false
}

func (p *parser) consumeGroupEnd() error {
	t := p.next()
	switch t.kind {
	case tokSlash:
		return nil
	case tokAmp, tokDollar:
		end := p.next()
		if end.kind == tokWord && strings.EqualFold(end.text, "end") {
			return nil
		}
		if t.kind == tokDollar && end.kind == tokEOF {
			return nil
		}
		return p.errorf(end, "expected end of group, got %s", end)
	}
	return p.errorf(t, "unterminated group")
}

// startsAssignment reports whether the tokens at the cursor begin a new
// key = ... or key(i) = ... assignment.
func (p *parser) startsAssignment() bool {
	if p.peek(0).kind != tokWord {
		return false
	}
	switch p.peek(1).kind {
	case tokEquals:
		return true
	case tokLParen:
		for off := 2; ; off++ {
			t := p.peek(off)
			if t.kind == tokRParen {
				return p.peek(off+1).kind == tokEquals
			}
			if t.kind == tokEOF || t.kind == tokEquals {
				return false
			}
		}
	}
	return false
}

func (p *parser) parseGroup(g *Group) error {
	for {
		if p.atGroupEnd() {
			return p.consumeGroupEnd()
		}
		keyTok := p.next()
		if keyTok.kind == tokComma {
			continue
		}
		if keyTok.kind != tokWord {
			return p.errorf(keyTok, "expected key, got %s", keyTok)
		}
		key := strings.ToLower(keyTok.text)
		index := 0
		if p.peek(0).kind == tokLParen {
			p.next()
			idxTok := p.next()
			n, err := strconv.Atoi(strings.TrimSpace(idxTok.text))
			if idxTok.kind != tokWord || err != nil || n < 1 {
				return p.errorf(idxTok, "bad index %s for %s", idxTok, key)
			}
			if rp := p.next(); rp.kind != tokRParen {
				return p.errorf(rp, "expected ')' after index of %s", key)
			}
			index = n
		}
		if eq := p.next(); eq.kind != tokEquals {
			return p.errorf(eq, "expected '=' after %s, got %s", key, eq)
		}
		vals, err := p.parseValues()
		if err != nil {
			return err
		}
		g.set(key, index, vals)
	}
}

func (p *parser) parseValues() (Value, error) {
	var vals Value
	lastWasValue := false
	for {
		if p.atGroupEnd() || p.startsAssignment() {
			return vals, nil
		}
		t := p.next()
		switch t.kind {
		case tokComma:
			if !lastWasValue {
				vals = append(vals, Scalar{})
			}
			lastWasValue = false
		case tokString:
			vals = append(vals, Scalar{Kind: String, Str: t.text})
			lastWasValue = true
		case tokWord:
			scalars, err := parseWord(t.text)
			if err != nil {
				return nil, p.errorf(t, "%v", err)
			}
			// n*'str' lexes as a word followed by a string
			if len(scalars) > 0 && scalars[0].Kind == Null && strings.HasSuffix(t.text, "*") && p.peek(0).kind == tokString {
				s := p.next()
				for i := range scalars {
					scalars[i] = Scalar{Kind: String, Str: s.text}
				}
			}
			vals = append(vals, scalars...)
			lastWasValue = true
		default:
			return nil, p.errorf(t, "unexpected %s in value list", t)
		}
	}
}

func parseWord(w string) ([]Scalar, error) {
	if star := strings.IndexByte(w, '*'); star > 0 {
		n, err := strconv.Atoi(w[:star])
		if err == nil {
			if n < 1 {
				return nil, fmt.Errorf("bad repeat count in %q", w)
			}
			var one Scalar
			if rest := w[star+1:]; rest != "" {
				one = parseScalar(rest)
			}
			out := make([]Scalar, n)
			for i := range out {
				out[i] = one
			}
			return out, nil
		}
	}
	return []Scalar{parseScalar(w)}, nil
}

func parseScalar(w string) Scalar {
	lw := strings.ToLower(w)
	switch lw {
	case "t", "true", ".t", ".t.", ".true.", ".true":
		return Scalar{Kind: Bool, Bool: true}
	case "f", "false", ".f", ".f.", ".false.", ".false":
		return Scalar{Kind: Bool, Bool: false}
	}
	if i, err := strconv.ParseInt(w, 10, 64); err == nil {
		return Scalar{Kind: Int, Int: i}
	}
	fl := strings.NewReplacer("d", "e", "D", "e", "q", "e", "Q", "e").Replace(w)
	if f, err := strconv.ParseFloat(fl, 64); err == nil {
		return Scalar{Kind: Float, Float: f}
	}
	return Scalar{Kind: String, Str: w}
}
