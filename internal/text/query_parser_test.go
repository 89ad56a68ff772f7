package text

import "testing"

func TestParseSimpleTerm(t *testing.T) {
	q, err := ParseQuery("hello", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tq, ok := q.(TermQuery)
	if !ok || tq.Term != "hello" {
		t.Fatalf("expected TermQuery{hello}, got %#v", q)
	}
}

func TestParseFieldTerm(t *testing.T) {
	q, err := ParseQuery("title:hello", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tq, ok := q.(TermQuery)
	if !ok || tq.Field != "title" || tq.Term != "hello" {
		t.Fatalf("expected field:term, got %#v", q)
	}
}

func TestParsePhrase(t *testing.T) {
	q, err := ParseQuery(`"hello world"`, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pq, ok := q.(PhraseQuery)
	if !ok || len(pq.Terms) != 2 || pq.Terms[0] != "hello" || pq.Terms[1] != "world" {
		t.Fatalf("expected a 2-term phrase, got %#v", q)
	}
}

func TestParseAndOrNot(t *testing.T) {
	q, err := ParseQuery("a AND b OR c NOT d", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	or, ok := q.(OrQuery)
	if !ok || len(or.Clauses) != 2 {
		t.Fatalf("expected a top-level OR with 2 clauses, got %#v", q)
	}
}

func TestParseGrouping(t *testing.T) {
	q, err := ParseQuery("(a OR b) AND c", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	and, ok := q.(AndQuery)
	if !ok || len(and.Clauses) != 2 {
		t.Fatalf("expected a top-level AND with 2 clauses, got %#v", q)
	}
	if _, ok := and.Clauses[0].(OrQuery); !ok {
		t.Fatalf("expected the first clause to be the grouped OR, got %#v", and.Clauses[0])
	}
}

func TestParseBoost(t *testing.T) {
	q, err := ParseQuery("hello^2.5", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tq, ok := q.(TermQuery)
	if !ok || tq.Boost != 2.5 {
		t.Fatalf("expected boost 2.5, got %#v", q)
	}
}

func TestParseWildcard(t *testing.T) {
	q, err := ParseQuery("hel*", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wq, ok := q.(WildcardQuery)
	if !ok || wq.Pattern != "hel*" {
		t.Fatalf("expected a wildcard query, got %#v", q)
	}
}

func TestParseInclusiveRange(t *testing.T) {
	q, err := ParseQuery("[a TO z]", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rq, ok := q.(RangeQuery)
	if !ok || !rq.IncludeLow || !rq.IncludeHigh || rq.Low != "a" || rq.High != "z" {
		t.Fatalf("expected an inclusive range [a,z], got %#v", q)
	}
}

func TestParseExclusiveRangeWithOpenBound(t *testing.T) {
	q, err := ParseQuery("{* TO 100}", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rq, ok := q.(RangeQuery)
	if !ok || rq.IncludeLow || rq.IncludeHigh || !rq.LowOpen || rq.High != "100" {
		t.Fatalf("expected an exclusive range with an open low bound, got %#v", q)
	}
}

func TestParseUnbalancedCloseParenIsLiteral(t *testing.T) {
	q, err := ParseQuery("hello)", 0)
	if err != nil {
		t.Fatalf("expected unbalanced ')' to be tolerated, not to error: %v", err)
	}
	and, ok := q.(AndQuery)
	if !ok || len(and.Clauses) != 2 {
		t.Fatalf("expected 'hello' AND ')' as a literal, got %#v", q)
	}
}

func TestParseDepthCapExceeded(t *testing.T) {
	deep := ""
	for i := 0; i < 60; i++ {
		deep += "("
	}
	deep += "a"
	for i := 0; i < 60; i++ {
		deep += ")"
	}
	_, err := ParseQuery(deep, 50)
	if err == nil {
		t.Fatalf("expected an error for a query exceeding the parse depth cap")
	}
}
