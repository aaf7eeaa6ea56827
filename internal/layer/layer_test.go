package layer

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCanonicalOrder(t *testing.T) {
	want := []Layer{Proof, Spec, Type, Contract, Tests}
	if diff := cmp.Diff(want, Canonical()); diff != "" {
		t.Errorf("Canonical() mismatch (-want +got):\n%s", diff)
	}

	// Callers must not be able to mutate the package order.
	got := Canonical()
	got[0] = Tests
	if Canonical()[0] != Proof {
		t.Error("Canonical() returned shared backing array")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Layer
		wantErr bool
	}{
		{in: "proof", want: Proof},
		{in: " Tests ", want: Tests},
		{in: "CONTRACT", want: Contract},
		{in: "lint", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				var ule *UnknownLayerError
				if !errors.As(err, &ule) {
					t.Fatalf("Parse(%q) error = %v, want UnknownLayerError", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseList(t *testing.T) {
	got, err := ParseList("type, tests")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]Layer{Type, Tests}, got); diff != "" {
		t.Errorf("ParseList mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range []string{"", "  ", "type,,tests", "type,lint", "type,"} {
		if _, err := ParseList(bad); err == nil {
			t.Errorf("ParseList(%q) expected error", bad)
		}
	}
}
