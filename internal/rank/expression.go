package rank

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/prism-search/prism/internal/perr"
)

// EvaluateExpression evaluates an arithmetic expression over vars
// (typically `_score` plus numeric stored fields), supporting
// `+ - * /` (with `×` and `÷` accepted for `*` and `/`), `log`, and
// parentheses (spec.md §4.6 item 5). A malformed
// expression or unknown identifier is a configuration error; callers
// (Rerank) treat that as a re-rank failure to fall back on, not a
// request failure.
func EvaluateExpression(expr string, vars map[string]float64) (float64, error) {
	toks, err := lexExpression(expr)
	if err != nil {
		return 0, err
	}
	p := &exprParser{toks: toks, vars: vars}
	v, err := p.parseSum()
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.toks) {
		return 0, perr.Configuration("rank.expression_trailing_tokens", "unexpected trailing tokens in expression")
	}
	return v, nil
}

type exprTokenKind int

const (
	exprNumber exprTokenKind = iota
	exprIdent
	exprOp
	exprLParen
	exprRParen
)

type exprToken struct {
	kind exprTokenKind
	text string
	num  float64
}

func lexExpression(s string) ([]exprToken, error) {
	var toks []exprToken
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(':
			toks = append(toks, exprToken{kind: exprLParen})
			i++
		case c == ')':
			toks = append(toks, exprToken{kind: exprRParen})
			i++
		case strings.HasPrefix(s[i:], "×") || strings.HasPrefix(s[i:], "÷"):
			op := "*"
			if strings.HasPrefix(s[i:], "÷") {
				op = "/"
			}
			toks = append(toks, exprToken{kind: exprOp, text: op})
			i += len("×")
		case c == '+' || c == '-' || c == '*' || c == '/':
			toks = append(toks, exprToken{kind: exprOp, text: string(c)})
			i++
		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(s) && (s[j] >= '0' && s[j] <= '9' || s[j] == '.') {
				j++
			}
			n, err := strconv.ParseFloat(s[i:j], 64)
			if err != nil {
				return nil, perr.Configuration("rank.expression_number", fmt.Sprintf("invalid number %q in expression", s[i:j]))
			}
			toks = append(toks, exprToken{kind: exprNumber, num: n})
			i = j
		case isIdentStart(c):
			j := i
			for j < len(s) && isIdentPart(s[j]) {
				j++
			}
			toks = append(toks, exprToken{kind: exprIdent, text: s[i:j]})
			i = j
		default:
			return nil, perr.Configuration("rank.expression_char", fmt.Sprintf("unexpected character %q in expression", string(c)))
		}
	}
	return toks, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
func isIdentPart(c byte) bool { return isIdentStart(c) || (c >= '0' && c <= '9') }

type exprParser struct {
	toks []exprToken
	pos  int
	vars map[string]float64
}

func (p *exprParser) peek() (exprToken, bool) {
	if p.pos >= len(p.toks) {
		return exprToken{}, false
	}
	return p.toks[p.pos], true
}

func (p *exprParser) parseSum() (float64, error) {
	v, err := p.parseProduct()
	if err != nil {
		return 0, err
	}
	for {
		tok, ok := p.peek()
		if !ok || tok.kind != exprOp || (tok.text != "+" && tok.text != "-") {
			return v, nil
		}
		p.pos++
		rhs, err := p.parseProduct()
		if err != nil {
			return 0, err
		}
		if tok.text == "+" {
			v += rhs
		} else {
			v -= rhs
		}
	}
}

func (p *exprParser) parseProduct() (float64, error) {
	v, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		tok, ok := p.peek()
		if !ok || tok.kind != exprOp || (tok.text != "*" && tok.text != "/") {
			return v, nil
		}
		p.pos++
		rhs, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		if tok.text == "*" {
			v *= rhs
		} else {
			if rhs == 0 {
				return 0, perr.Configuration("rank.expression_div_by_zero", "division by zero in expression")
			}
			v /= rhs
		}
	}
}

func (p *exprParser) parseUnary() (float64, error) {
	if tok, ok := p.peek(); ok && tok.kind == exprOp && tok.text == "-" {
		p.pos++
		v, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return -v, nil
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (float64, error) {
	tok, ok := p.peek()
	if !ok {
		return 0, perr.Configuration("rank.expression_unexpected_end", "unexpected end of expression")
	}
	switch tok.kind {
	case exprNumber:
		p.pos++
		return tok.num, nil
	case exprLParen:
		p.pos++
		v, err := p.parseSum()
		if err != nil {
			return 0, err
		}
		closeTok, ok := p.peek()
		if !ok || closeTok.kind != exprRParen {
			return 0, perr.Configuration("rank.expression_unbalanced_paren", "unbalanced parenthesis in expression")
		}
		p.pos++
		return v, nil
	case exprIdent:
		p.pos++
		if strings.EqualFold(tok.text, "log") {
			arg, err := p.parsePrimary()
			if err != nil {
				return 0, err
			}
			if arg <= 0 {
				return 0, perr.Configuration("rank.expression_log_domain", "log of non-positive value in expression")
			}
			return math.Log(arg), nil
		}
		v, ok := p.vars[tok.text]
		if !ok {
			return 0, perr.Configuration("rank.expression_unknown_identifier", fmt.Sprintf("unknown identifier %q in expression", tok.text))
		}
		return v, nil
	default:
		return 0, perr.Configuration("rank.expression_unexpected_token", "unexpected token in expression")
	}
}
