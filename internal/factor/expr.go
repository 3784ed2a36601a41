package factor

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// -----------------------------------------------------------------------
// AST
// -----------------------------------------------------------------------

// Expr is a compiled boolean expression over named numeric values.
type Expr interface {
	eval(env Env) (bool, error)
	idents(out []string) []string
}

// Env resolves an identifier (feature name or "probability") to a number.
type Env interface {
	Lookup(name string) (float64, bool)
}

type logicalExpr struct {
	and         bool
	left, right Expr
}

type notExpr struct{ inner Expr }

// comparison is <operand> <op> <operand>.
type comparison struct {
	left, right operand
	op          string
}

type operand struct {
	ident string // empty for literals
	num   float64
}

// -----------------------------------------------------------------------
// Tokenizer
// -----------------------------------------------------------------------

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokCompare
	tokLParen
	tokRParen
	tokEOF
)

type token struct {
	kind tokenKind
	val  string
	pos  int
}

func tokenize(src string) ([]token, error) {
	var out []token
	for i := 0; i < len(src); {
		ch := src[i]
		switch {
		case unicode.IsSpace(rune(ch)):
			i++
		case ch == '(':
			out = append(out, token{tokLParen, "(", i})
			i++
		case ch == ')':
			out = append(out, token{tokRParen, ")", i})
			i++
		case ch == '=' || ch == '!' || ch == '<' || ch == '>':
			if i+1 < len(src) && src[i+1] == '=' {
				out = append(out, token{tokCompare, src[i : i+2], i})
				i += 2
				continue
			}
			if ch == '=' || ch == '!' {
				return nil, fmt.Errorf("unexpected %q at position %d", ch, i)
			}
			out = append(out, token{tokCompare, string(ch), i})
			i++
		case unicode.IsDigit(rune(ch)) || ch == '.' ||
			(ch == '-' && i+1 < len(src) && (unicode.IsDigit(rune(src[i+1])) || src[i+1] == '.')):
			j := i + 1
			for j < len(src) && (unicode.IsDigit(rune(src[j])) || src[j] == '.' || src[j] == 'e' || src[j] == 'E' ||
				((src[j] == '-' || src[j] == '+') && (src[j-1] == 'e' || src[j-1] == 'E'))) {
				j++
			}
			out = append(out, token{tokNumber, src[i:j], i})
			i = j
		case unicode.IsLetter(rune(ch)) || ch == '_':
			j := i + 1
			for j < len(src) && (unicode.IsLetter(rune(src[j])) || unicode.IsDigit(rune(src[j])) || src[j] == '_') {
				j++
			}
			out = append(out, token{tokIdent, src[i:j], i})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", ch, i)
		}
	}
	return append(out, token{tokEOF, "", len(src)}), nil
}

// -----------------------------------------------------------------------
// Parser
// -----------------------------------------------------------------------

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	p.pos++
	return t
}

func (p *parser) keyword(kw string) bool {
	t := p.peek()
	return t.kind == tokIdent && strings.EqualFold(t.val, kw)
}

// Parse compiles src. Grammar:
//
//	or     = and { "OR" and }
//	and    = unary { "AND" unary }
//	unary  = "NOT" unary | "(" or ")" | operand cmp operand
func Parse(src string) (Expr, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at position %d", t.val, t.pos)
	}
	return e, nil
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("OR") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &logicalExpr{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.keyword("AND") {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &logicalExpr{and: true, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.keyword("NOT") {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notExpr{inner: inner}, nil
	}
	if p.peek().kind == tokLParen {
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if t := p.next(); t.kind != tokRParen {
			return nil, fmt.Errorf("expected \")\" at position %d, got %q", t.pos, t.val)
		}
		return inner, nil
	}
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	t := p.next()
	if t.kind != tokCompare {
		return nil, fmt.Errorf("expected comparison operator at position %d, got %q", t.pos, t.val)
	}
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &comparison{left: left, op: t.val, right: right}, nil
}

func (p *parser) parseOperand() (operand, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		f, err := strconv.ParseFloat(t.val, 64)
		if err != nil {
			return operand{}, fmt.Errorf("invalid number %q at position %d", t.val, t.pos)
		}
		return operand{num: f}, nil
	case tokIdent:
		switch strings.ToUpper(t.val) {
		case "AND", "OR", "NOT":
			return operand{}, fmt.Errorf("unexpected keyword %q at position %d", t.val, t.pos)
		}
		return operand{ident: t.val}, nil
	default:
		return operand{}, fmt.Errorf("expected operand at position %d, got %q", t.pos, t.val)
	}
}

// -----------------------------------------------------------------------
// Evaluation
// -----------------------------------------------------------------------

// Eval evaluates e against env.
func Eval(e Expr, env Env) (bool, error) { return e.eval(env) }

func (e *logicalExpr) eval(env Env) (bool, error) {
	l, err := e.left.eval(env)
	if err != nil {
		return false, err
	}
	if e.and && !l {
		return false, nil
	}
	if !e.and && l {
		return true, nil
	}
	return e.right.eval(env)
}

func (e *notExpr) eval(env Env) (bool, error) {
	v, err := e.inner.eval(env)
	return !v, err
}

func (e *comparison) eval(env Env) (bool, error) {
	l, err := e.left.resolve(env)
	if err != nil {
		return false, err
	}
	r, err := e.right.resolve(env)
	if err != nil {
		return false, err
	}
	switch e.op {
	case "==":
		return l == r, nil
	case "!=":
		return l != r, nil
	case ">":
		return l > r, nil
	case ">=":
		return l >= r, nil
	case "<":
		return l < r, nil
	case "<=":
		return l <= r, nil
	}
	return false, fmt.Errorf("unknown operator %q", e.op)
}

// Identifiers lists the names e refers to, in source order.
func Identifiers(e Expr) []string { return e.idents(nil) }

func (e *logicalExpr) idents(out []string) []string {
	return e.right.idents(e.left.idents(out))
}

func (e *notExpr) idents(out []string) []string { return e.inner.idents(out) }

func (e *comparison) idents(out []string) []string {
	for _, o := range []operand{e.left, e.right} {
		if o.ident != "" {
			out = append(out, o.ident)
		}
	}
	return out
}

func (o operand) resolve(env Env) (float64, error) {
	if o.ident == "" {
		return o.num, nil
	}
	v, ok := env.Lookup(o.ident)
	if !ok {
		return 0, fmt.Errorf("unknown identifier %q", o.ident)
	}
	return v, nil
}
