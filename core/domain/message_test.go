package domain

import (
	"strings"
	"testing"
)

func TestMessageIDDeterministic(t *testing.T) {
	a := MessageID(42, "uid-1001")
	b := MessageID(42, "uid-1001")
	if a != b {
		t.Errorf("expected same ID for same inputs, got %s and %s", a, b)
	}
	if len(a) != 32 {
		t.Errorf("expected 32 hex chars, got %d", len(a))
	}
}

func TestMessageIDDistinct(t *testing.T) {
	base := MessageID(42, "uid-1001")

	if got := MessageID(43, "uid-1001"); got == base {
		t.Error("different accounts must not share an ID")
	}
	if got := MessageID(42, "uid-1002"); got == base {
		t.Error("different uids must not share an ID")
	}
	// The separator keeps (421, "001") and (42, "1001") apart.
	if MessageID(421, "001") == MessageID(42, "1001") {
		t.Error("account/uid boundary must be unambiguous")
	}
}

func TestClassifiableText(t *testing.T) {
	msg := &Message{
		Subject:  "Quick question",
		BodyText: strings.Repeat("x", 100),
	}

	text := msg.ClassifiableText(10)
	if !strings.HasPrefix(text, "Subject: Quick question") {
		t.Errorf("expected subject prefix, got %q", text)
	}
	if strings.Count(text, "x") != 10 {
		t.Errorf("expected body capped at 10 chars, got %d", strings.Count(text, "x"))
	}

	uncapped := msg.ClassifiableText(0)
	if strings.Count(uncapped, "x") != 100 {
		t.Error("zero cap must keep the full body")
	}
}
