package ledger

import "testing"

func TestNormalizeDetails(t *testing.T) {
	// An event appended without details must still store a jsonb object,
	// or a later `details || ...` merge degrades into array concatenation.
	got := normalizeDetails(nil)
	if got == nil {
		t.Fatalf("nil map passed through")
	}
	if len(got) != 0 {
		t.Fatalf("expected empty map, got %v", got)
	}
}

func TestNormalizeDetailsKeepsExisting(t *testing.T) {
	in := map[string]any{"reconciled": true, "confidence": 0.8}
	out := normalizeDetails(in)
	if len(out) != 2 {
		t.Fatalf("existing map altered: %v", out)
	}
	if out["reconciled"] != true || out["confidence"] != 0.8 {
		t.Fatalf("existing values altered: %v", out)
	}
}
