package text

import (
	"strconv"
	"strings"

	"github.com/prism-search/prism/internal/perr"
)

// MaxParseDepth caps query-grammar recursion (spec.md §6); the limits
// config (internal/config) can override this per deployment.
const MaxParseDepth = 50

// ParseQuery parses a query string per spec.md §6's grammar: terms,
// "exact phrases", field:term, AND/OR/NOT, (grouping), trailing ^N
// boost, */? wildcards, and [a TO b] / {a TO b} ranges. An unbalanced `)`
// is treated as a literal character, never an error.
func ParseQuery(s string, maxDepth int) (Query, error) {
	if maxDepth <= 0 {
		maxDepth = MaxParseDepth
	}
	p := &parser{toks: lex(s), maxDepth: maxDepth}
	q, err := p.parseOr(0)
	if err != nil {
		return nil, err
	}
	return q, nil
}

type parser struct {
	toks         []token
	pos          int
	maxDepth     int
	groupNesting int
}

func (p *parser) peek() token  { return p.toks[p.pos] }
func (p *parser) advance() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) checkDepth(depth int) error {
	if depth > p.maxDepth {
		return perr.Input("text.query.max_depth_exceeded", "query parser recursion depth exceeded")
	}
	return nil
}

func (p *parser) parseOr(depth int) (Query, error) {
	if err := p.checkDepth(depth); err != nil {
		return nil, err
	}
	left, err := p.parseAnd(depth + 1)
	if err != nil {
		return nil, err
	}
	clauses := []Query{left}
	for p.peek().kind == tokOr {
		p.advance()
		right, err := p.parseAnd(depth + 1)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, right)
	}
	if len(clauses) == 1 {
		return clauses[0], nil
	}
	return OrQuery{Clauses: clauses}, nil
}

func (p *parser) parseAnd(depth int) (Query, error) {
	if err := p.checkDepth(depth); err != nil {
		return nil, err
	}
	left, err := p.parseNot(depth + 1)
	if err != nil {
		return nil, err
	}
	clauses := []Query{left}
loop:
	for {
		switch p.peek().kind {
		case tokAnd:
			p.advance()
			right, err := p.parseNot(depth + 1)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, right)
		case tokRParen:
			if p.groupNesting > 0 {
				// Matches an enclosing '(': stop here and let the
				// group's parsePrimary consume it.
				break loop
			}
			// Unbalanced ')': a literal character, per spec.md §6.
			right, err := p.parseNot(depth + 1)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, right)
		case tokWord, tokPhrase, tokLParen, tokRangeL, tokNot:
			// Implicit AND between adjacent clauses.
			right, err := p.parseNot(depth + 1)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, right)
		default:
			break loop
		}
	}
	if len(clauses) == 1 {
		return clauses[0], nil
	}
	return AndQuery{Clauses: clauses}, nil
}

func (p *parser) parseNot(depth int) (Query, error) {
	if err := p.checkDepth(depth); err != nil {
		return nil, err
	}
	if p.peek().kind == tokNot {
		p.advance()
		inner, err := p.parsePrimary(depth + 1)
		if err != nil {
			return nil, err
		}
		return NotQuery{Clause: inner}, nil
	}
	return p.parsePrimary(depth + 1)
}

func (p *parser) parsePrimary(depth int) (Query, error) {
	if err := p.checkDepth(depth); err != nil {
		return nil, err
	}
	t := p.peek()
	switch t.kind {
	case tokLParen:
		p.advance()
		p.groupNesting++
		inner, err := p.parseOr(depth + 1)
		p.groupNesting--
		if err != nil {
			return nil, err
		}
		if p.peek().kind == tokRParen {
			p.advance()
		}
		return p.applyBoost(inner), nil
	case tokRParen:
		// Unbalanced ')' with no matching '(': treat as a literal term,
		// per spec.md §6.
		p.advance()
		return p.applyBoost(TermQuery{Term: ")"}), nil
	case tokPhrase:
		p.advance()
		terms := strings.Fields(t.value)
		return p.applyBoost(PhraseQuery{Terms: terms}), nil
	case tokRangeL:
		return p.parseRange()
	case tokWord:
		p.advance()
		return p.parseWord(t.value)
	default:
		// EOF or an unexpected operator token with nothing to parse;
		// surface as an empty literal term rather than an error, since
		// the grammar never fails on a merely-empty clause.
		return TermQuery{Term: ""}, nil
	}
}

func (p *parser) parseWord(word string) (Query, error) {
	field, term := "", word
	if idx := strings.IndexByte(word, ':'); idx > 0 && idx < len(word)-1 {
		field, term = word[:idx], word[idx+1:]
	}
	if strings.ContainsAny(term, "*?") {
		return p.applyBoost(WildcardQuery{Field: field, Pattern: term}), nil
	}
	return p.applyBoost(TermQuery{Field: field, Term: term}), nil
}

func (p *parser) parseRange() (Query, error) {
	open := p.advance() // [ or {
	lowTok := p.advance()
	low := lowTok.value
	if p.peek().kind == tokTo {
		p.advance()
	}
	highTok := p.advance()
	high := highTok.value
	closeTok := p.advance() // ] or }

	inclusiveLow := open.value == "["
	inclusiveHigh := closeTok.value == "]"
	return RangeQuery{
		Low: low, High: high,
		IncludeLow: inclusiveLow, IncludeHigh: inclusiveHigh,
		LowOpen: low == "*", HighOpen: high == "*",
	}, nil
}

func (p *parser) applyBoost(q Query) Query {
	if p.peek().kind != tokBoost {
		return q
	}
	t := p.advance()
	boost, err := strconv.ParseFloat(t.value, 64)
	if err != nil || boost <= 0 {
		boost = 1
	}
	switch v := q.(type) {
	case TermQuery:
		v.Boost = boost
		return v
	case PhraseQuery:
		v.Boost = boost
		return v
	case WildcardQuery:
		v.Boost = boost
		return v
	default:
		return q
	}
}
