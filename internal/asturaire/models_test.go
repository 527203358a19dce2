package asturaire

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestNumericToleratesUpstreamTypes(t *testing.T) {
	var r Reading
	payload := `{"cana":10,"val":"42.5","fecha":null,"periodo":"bogus"}`
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !r.Cana.Valid || r.Cana.Value != 10 {
		t.Fatalf("expected cana 10, got %+v", r.Cana)
	}
	if !r.Val.Valid || r.Val.Value != 42.5 {
		t.Fatalf("expected val 42.5, got %+v", r.Val)
	}
	if r.Fecha.Valid {
		t.Fatal("null fecha must decode as absent")
	}
	if r.Periodo.Valid {
		t.Fatal("unparsable periodo must decode as absent, not error")
	}
}

func TestTextToleratesNumbers(t *testing.T) {
	var st Station
	payload := `{"ides":3,"uuid":"abc","nombreEs":null}`
	if err := json.Unmarshal([]byte(payload), &st); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Ides.String() != "3" {
		t.Fatalf("expected ides %q, got %q", "3", st.Ides)
	}
	if st.UUID.String() != "abc" {
		t.Fatalf("expected uuid %q, got %q", "abc", st.UUID)
	}
	if st.NombreEs.String() != "" {
		t.Fatalf("expected empty nombreEs, got %q", st.NombreEs)
	}
}

func TestParseDMS(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"43 32 4.5 N", 43 + 32.0/60 + 4.5/3600, true},
		{`5º 39' 41.1'' W`, -(5 + 39.0/60 + 41.1/3600), true},
		{"43º 32' 19'' S", -(43 + 32.0/60 + 19.0/3600), true},
		{"43 32 4", 0, false},
		{"", 0, false},
		{"x y z N", 0, false},
	}

	for _, tc := range tests {
		got, ok := ParseDMS(tc.in)
		if ok != tc.ok {
			t.Fatalf("ParseDMS(%q): expected ok=%v, got %v", tc.in, tc.ok, ok)
		}
		if ok && math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("ParseDMS(%q): expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestParseLocalDate(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Fatal(err)
	}

	got, ok := ParseLocalDate("2024-03-15 13:45:00", loc)
	if !ok {
		t.Fatal("expected full stamp to parse")
	}
	want := time.Date(2024, 3, 15, 13, 45, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	got, ok = ParseLocalDate("2024-03-15", loc)
	if !ok {
		t.Fatal("expected date-only stamp to parse")
	}
	if got.Hour() != 0 || got.Day() != 15 {
		t.Fatalf("unexpected date-only parse: %v", got)
	}

	if _, ok := ParseLocalDate("not a date", loc); ok {
		t.Fatal("expected garbage to be rejected")
	}
}
