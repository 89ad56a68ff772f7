package security

import "testing"

func TestAllowsExactMatch(t *testing.T) {
	p := Principal{Collections: []string{"docs"}, Actions: []string{"search"}}
	if !Allows(p, "docs", "search") {
		t.Fatal("expected exact collection match to be allowed")
	}
	if Allows(p, "other", "search") {
		t.Fatal("expected non-matching collection to be denied")
	}
}

func TestAllowsTrailingGlob(t *testing.T) {
	p := Principal{Collections: []string{"docs-*"}, Actions: []string{"search"}}
	if !Allows(p, "docs-en", "search") {
		t.Fatal("expected docs-en to match docs-*")
	}
	if Allows(p, "docs-", "search") {
		t.Fatal("expected empty suffix not to match docs-*")
	}
	if Allows(p, "other", "search") {
		t.Fatal("expected other not to match docs-*")
	}
}

func TestAllowsWildcardMatchesEmpty(t *testing.T) {
	p := Principal{Collections: []string{"*"}, Actions: []string{"search"}}
	if !Allows(p, "", "search") {
		t.Fatal("expected bare \"*\" to match the empty collection name")
	}
}

func TestAllowsRequiresAction(t *testing.T) {
	p := Principal{Collections: []string{"*"}, Actions: []string{"search"}}
	if Allows(p, "docs", "index") {
		t.Fatal("expected ungranted action to be denied")
	}
}

func TestAllowsAdminRequiresExactWildcard(t *testing.T) {
	p := Principal{Collections: []string{"docs-*"}, Actions: []string{"admin"}}
	if Allows(p, "docs-en", "admin") {
		t.Fatal("expected admin action to require the exact \"*\" pattern, not a matching trailing glob")
	}

	root := Principal{Collections: []string{"*"}, Actions: []string{"admin"}}
	if !Allows(root, "anything", "admin") {
		t.Fatal("expected exact \"*\" pattern to grant admin")
	}
}
