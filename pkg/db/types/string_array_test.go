package dbtypes

import "testing"

func TestStringArrayRoundTrip(t *testing.T) {
	in := StringArray{"S", "M", "L", "one size"}
	v, err := in.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}

	var out StringArray
	if err := out.Scan(v); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d entries, got %v", len(in), out)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("entry %d: expected %q got %q", i, in[i], out[i])
		}
	}
}

func TestStringArrayNil(t *testing.T) {
	var out StringArray
	if err := out.Scan(nil); err != nil {
		t.Fatalf("scan nil: %v", err)
	}
	if out == nil || len(out) != 0 {
		t.Fatalf("expected empty non-nil array, got %#v", out)
	}

	v, err := StringArray(nil).Value()
	if err != nil || v != "{}" {
		t.Fatalf("expected empty literal, got %v err=%v", v, err)
	}
}
