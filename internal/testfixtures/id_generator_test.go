package testfixtures

import "testing"

func TestIDGeneratorProducesSequentialIDs(t *testing.T) {
	gen := NewIDGenerator("res")

	first := gen.Next()
	second := gen.Next()

	if first != "res-1" || second != "res-2" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}
	if next := NewIDGenerator("").NextFunc()(); next != "id-1" {
		t.Fatalf("expected default prefix, got %q", next)
	}
}

func TestIDGeneratorPrefixesAreIndependent(t *testing.T) {
	gen := NewIDGenerator("res")
	events := gen.For("event")

	if got := events(); got != "event-1" {
		t.Fatalf("unexpected event id %q", got)
	}
	events()
	if got := gen.Next(); got != "res-1" {
		t.Fatalf("expected reservation sequence untouched, got %q", got)
	}
	if gen.Issued() != 3 {
		t.Fatalf("expected 3 issued identifiers, got %d", gen.Issued())
	}
}
