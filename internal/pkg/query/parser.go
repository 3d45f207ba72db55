package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// DefaultTable is used when the expression has no from(...) call
const DefaultTable = "employees"

// ParseError reports a position in the expression where parsing failed
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("can't parse query at %d: %s", e.Pos, e.Msg)
}

type tokenKind int

const (
	tEOF tokenKind = iota
	tIdent
	tString
	tNumber
	tPunct
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func lex(s string) ([]token, error) {
	var res []token
	rs := []rune(s)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '_' || r == '$' || unicode.IsLetter(r):
			st := i
			for i < len(rs) && (rs[i] == '_' || rs[i] == '$' || unicode.IsLetter(rs[i]) || unicode.IsDigit(rs[i])) {
				i++
			}
			res = append(res, token{kind: tIdent, text: string(rs[st:i]), pos: st})
		case unicode.IsDigit(r):
			st := i
			for i < len(rs) && (unicode.IsDigit(rs[i]) || rs[i] == '.' || rs[i] == 'e' || rs[i] == 'E' ||
				((rs[i] == '-' || rs[i] == '+') && (rs[i-1] == 'e' || rs[i-1] == 'E'))) {
				i++
			}
			res = append(res, token{kind: tNumber, text: string(rs[st:i]), pos: st})
		case r == '\'' || r == '"':
			st := i
			var sb strings.Builder
			i++
			closed := false
			for i < len(rs) {
				c := rs[i]
				if c == '\\' && i+1 < len(rs) {
					sb.WriteRune(unescape(rs[i+1]))
					i += 2
					continue
				}
				i++
				if c == r {
					closed = true
					break
				}
				sb.WriteRune(c)
			}
			if !closed {
				return nil, &ParseError{Pos: st, Msg: "unterminated string"}
			}
			res = append(res, token{kind: tString, text: sb.String(), pos: st})
		case strings.ContainsRune(".(),{}[]:;-", r):
			res = append(res, token{kind: tPunct, text: string(r), pos: i})
			i++
		default:
			return nil, &ParseError{Pos: i, Msg: fmt.Sprintf("unexpected symbol '%c'", r)}
		}
	}
	return append(res, token{kind: tEOF, pos: len(rs)}), nil
}

func unescape(r rune) rune {
	switch r {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	}
	return r
}

type parser struct {
	tokens []token
	at     int
	op     *Operation
	from   bool
	sel    bool
}

// Parse converts a chained query expression into an Operation.
// Accepted form: [await] supabase.from('table').<op>(...)[.<filter>(...)]...[;]
func Parse(text string) (*Operation, error) {
	tokens, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens, op: &Operation{}}
	return p.parse()
}

func (p *parser) parse() (*Operation, error) {
	if p.peek().kind == tIdent && p.peek().text == "await" {
		p.next()
	}
	if t := p.next(); t.kind != tIdent || t.text != "supabase" {
		return nil, &ParseError{Pos: t.pos, Msg: "expected 'supabase'"}
	}
	for p.isPunct(".") {
		p.next()
		name := p.next()
		if name.kind != tIdent {
			return nil, &ParseError{Pos: name.pos, Msg: "expected method name"}
		}
		if err := p.expect("("); err != nil {
			return nil, err
		}
		args, err := p.args(")")
		if err != nil {
			return nil, err
		}
		if err := p.apply(name, args); err != nil {
			return nil, err
		}
	}
	if p.isPunct(";") {
		p.next()
	}
	if t := p.next(); t.kind != tEOF {
		return nil, &ParseError{Pos: t.pos, Msg: fmt.Sprintf("unexpected '%s'", t.text)}
	}
	if p.op.Kind == "" {
		return nil, &ParseError{Pos: 0, Msg: "no operation"}
	}
	if p.op.Table == "" {
		p.op.Table = DefaultTable
	}
	return p.op, nil
}

var identRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (p *parser) apply(name token, args []interface{}) error {
	fail := func(format string, a ...interface{}) error {
		return &ParseError{Pos: name.pos, Msg: fmt.Sprintf(name.text+": "+format, a...)}
	}
	switch name.text {
	case "from":
		if p.from || p.op.Kind != "" {
			return fail("unexpected call")
		}
		t, ok := single[string](args)
		if !ok || !identRegexp.MatchString(t) {
			return fail("expected table name")
		}
		p.op.Table, p.from = t, true
	case "select":
		if p.sel || len(args) > 1 {
			return fail("unexpected call")
		}
		p.sel = true
		cols := "*"
		if len(args) == 1 {
			s, ok := args[0].(string)
			if !ok {
				return fail("expected column list")
			}
			cols = s
		}
		if p.op.Kind != "" {
			// returning select after a mutation
			return nil
		}
		c, err := columns(cols)
		if err != nil {
			return fail("%v", err)
		}
		p.op.Kind, p.op.Columns = Select, c
	case "insert":
		if p.op.Kind != "" || len(args) != 1 {
			return fail("unexpected call")
		}
		rows, err := toRows(args[0])
		if err != nil {
			return fail("%v", err)
		}
		p.op.Kind, p.op.Rows = Insert, rows
	case "update":
		if p.op.Kind != "" || len(args) != 1 {
			return fail("unexpected call")
		}
		m, ok := args[0].(map[string]interface{})
		if !ok {
			return fail("expected object")
		}
		p.op.Kind, p.op.Patch = Update, m
	case "delete":
		if p.op.Kind != "" || len(args) != 0 {
			return fail("unexpected call")
		}
		p.op.Kind = Delete
	case "order":
		if p.op.Kind != Select || len(args) < 1 || len(args) > 2 {
			return fail("unexpected call")
		}
		col, ok := args[0].(string)
		if !ok {
			return fail("expected column")
		}
		o := Order{Column: col, Ascending: true}
		if len(args) == 2 {
			opts, ok := args[1].(map[string]interface{})
			if !ok {
				return fail("expected options object")
			}
			for k, v := range opts {
				b, ok := v.(bool)
				if k != "ascending" || !ok {
					return fail("unsupported option '%s'", k)
				}
				o.Ascending = b
			}
		}
		p.op.Order = append(p.op.Order, o)
	case "limit":
		if p.op.Kind != Select {
			return fail("unexpected call")
		}
		l, ok := single[int64](args)
		if !ok || l < 0 {
			return fail("expected non negative integer")
		}
		p.op.Limit = int(l)
	case "match":
		if !p.filterAllowed() {
			return fail("unexpected call")
		}
		m, ok := single[map[string]interface{}](args)
		if !ok || len(m) == 0 {
			return fail("expected object")
		}
		for _, k := range SortedKeys(m) {
			p.op.Filters = append(p.op.Filters, Filter{Column: k, Op: OpEq, Value: m[k]})
		}
	case "not":
		if !p.filterAllowed() || len(args) != 3 {
			return fail("unexpected call")
		}
		col, ok1 := args[0].(string)
		ops, ok2 := args[1].(string)
		op, ok3 := filterOps[ops]
		if !ok1 || !ok2 || !ok3 {
			return fail("expected column, operator and value")
		}
		p.op.Filters = append(p.op.Filters, Filter{Column: col, Op: op, Value: args[2], Not: true})
	default:
		op, ok := filterOps[name.text]
		if !ok {
			return fail("unsupported method")
		}
		if !p.filterAllowed() || len(args) != 2 {
			return fail("unexpected call")
		}
		col, ok := args[0].(string)
		if !ok {
			return fail("expected column")
		}
		p.op.Filters = append(p.op.Filters, Filter{Column: col, Op: op, Value: args[1]})
	}
	return nil
}

func (p *parser) filterAllowed() bool {
	return p.op.Kind == Select || p.op.Kind == Update || p.op.Kind == Delete
}

func (p *parser) args(closing string) ([]interface{}, error) {
	res := []interface{}{}
	for !p.isPunct(closing) {
		if len(res) > 0 {
			if err := p.expect(","); err != nil {
				return nil, err
			}
			if p.isPunct(closing) {
				break
			}
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	p.next()
	return res, nil
}

func (p *parser) value() (interface{}, error) {
	t := p.next()
	switch t.kind {
	case tString:
		return t.text, nil
	case tNumber:
		return number(t)
	case tIdent:
		switch t.text {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "null":
			return nil, nil
		}
	case tPunct:
		switch t.text {
		case "-":
			nt := p.next()
			if nt.kind != tNumber {
				return nil, &ParseError{Pos: nt.pos, Msg: "expected number"}
			}
			v, err := number(nt)
			if err != nil {
				return nil, err
			}
			switch n := v.(type) {
			case int64:
				return -n, nil
			case float64:
				return -n, nil
			}
		case "[":
			return p.args("]")
		case "{":
			return p.object()
		}
	}
	return nil, &ParseError{Pos: t.pos, Msg: fmt.Sprintf("unexpected '%s'", t.text)}
}

func (p *parser) object() (map[string]interface{}, error) {
	res := map[string]interface{}{}
	for !p.isPunct("}") {
		if len(res) > 0 {
			if err := p.expect(","); err != nil {
				return nil, err
			}
			if p.isPunct("}") {
				break
			}
		}
		k := p.next()
		if k.kind != tIdent && k.kind != tString {
			return nil, &ParseError{Pos: k.pos, Msg: "expected key"}
		}
		if _, ok := res[k.text]; ok {
			return nil, &ParseError{Pos: k.pos, Msg: fmt.Sprintf("duplicate key '%s'", k.text)}
		}
		if err := p.expect(":"); err != nil {
			return nil, err
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		res[k.text] = v
	}
	p.next()
	return res, nil
}

func number(t token) (interface{}, error) {
	if !strings.ContainsAny(t.text, ".eE") {
		if v, err := strconv.ParseInt(t.text, 10, 64); err == nil {
			return v, nil
		}
	}
	v, err := strconv.ParseFloat(t.text, 64)
	if err != nil {
		return nil, &ParseError{Pos: t.pos, Msg: fmt.Sprintf("wrong number '%s'", t.text)}
	}
	return v, nil
}

func (p *parser) peek() token {
	return p.tokens[p.at]
}

func (p *parser) next() token {
	res := p.tokens[p.at]
	if res.kind != tEOF {
		p.at++
	}
	return res
}

func (p *parser) isPunct(s string) bool {
	t := p.peek()
	return t.kind == tPunct && t.text == s
}

func (p *parser) expect(s string) error {
	if t := p.next(); t.kind != tPunct || t.text != s {
		return &ParseError{Pos: t.pos, Msg: fmt.Sprintf("expected '%s'", s)}
	}
	return nil
}

func single[T any](args []interface{}) (T, bool) {
	var res T
	if len(args) != 1 {
		return res, false
	}
	res, ok := args[0].(T)
	return res, ok
}

func columns(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "*" {
		return nil, nil
	}
	var res []string
	for _, c := range strings.Split(s, ",") {
		c = strings.TrimSpace(c)
		if !identRegexp.MatchString(c) {
			return nil, fmt.Errorf("wrong column '%s'", c)
		}
		res = append(res, c)
	}
	return res, nil
}

func toRows(v interface{}) ([]map[string]interface{}, error) {
	switch t := v.(type) {
	case map[string]interface{}:
		return []map[string]interface{}{t}, nil
	case []interface{}:
		res := make([]map[string]interface{}, 0, len(t))
		for _, r := range t {
			m, ok := r.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("expected object in list")
			}
			res = append(res, m)
		}
		return res, nil
	}
	return nil, fmt.Errorf("expected object or list")
}
