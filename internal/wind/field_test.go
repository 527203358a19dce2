package wind

import (
	"math"
	"testing"
)

// testField is a 4x3 grid starting at (0E, 50N) with 1-degree spacing.
// U values equal the cell index; V values are the negated index.
func testField() *Field {
	u := make([]float64, 12)
	v := make([]float64, 12)
	for i := range u {
		u[i] = float64(i)
		v[i] = -float64(i)
	}
	return &Field{
		Header: GridHeader{ParameterNumber: paramU, Nx: 4, Ny: 3, Dx: 1, Dy: 1, Lo1: 0, La1: 50},
		U:      u,
		V:      v,
	}
}

func TestSampleAtVertex(t *testing.T) {
	f := testField()
	u, v, ok := f.SampleAt(1, 49)
	if !ok {
		t.Fatal("expected in-grid sample")
	}
	if u != 5 || v != -5 {
		t.Fatalf("expected grid values at vertex, got u=%v v=%v", u, v)
	}
}

func TestSampleAtInterpolates(t *testing.T) {
	f := testField()
	u, _, ok := f.SampleAt(0.5, 50)
	if !ok {
		t.Fatal("expected in-grid sample")
	}
	// Midpoint of cells 0 and 1 on the first row.
	if math.Abs(u-0.5) > 1e-9 {
		t.Fatalf("expected u 0.5, got %v", u)
	}
}

func TestSampleAtLongitudeWraps(t *testing.T) {
	f := testField()
	direct, _, ok1 := f.SampleAt(1, 49)
	wrapped, _, ok2 := f.SampleAt(1-360, 49)
	if !ok1 || !ok2 {
		t.Fatal("expected both samples in grid")
	}
	if direct != wrapped {
		t.Fatalf("longitude must wrap: %v vs %v", direct, wrapped)
	}
}

func TestSampleAtLatitudeDoesNotWrap(t *testing.T) {
	f := testField()
	if _, _, ok := f.SampleAt(1, 51); ok {
		t.Fatal("expected sample north of grid to be rejected")
	}
	if _, _, ok := f.SampleAt(1, 40); ok {
		t.Fatal("expected sample south of grid to be rejected")
	}
}

func TestSampleAtRejectsNonFiniteCorner(t *testing.T) {
	f := testField()
	f.U[5] = math.NaN()
	if _, _, ok := f.SampleAt(0.5, 49.5); ok {
		t.Fatal("expected rejection when a corner is NaN")
	}
}

func TestSampleAtEmptyGrid(t *testing.T) {
	f := &Field{}
	if _, _, ok := f.SampleAt(0, 0); ok {
		t.Fatal("expected empty field to reject all samples")
	}
}

func TestDecodeFeed(t *testing.T) {
	payload := `[
		{"header": {"parameterNumber": 2, "nx": 2, "ny": 2, "dx": 1, "dy": 1, "lo1": 0, "la1": 1}, "data": [1, 2, 3, 4]},
		{"header": {"parameterNumber": 3, "nx": 2, "ny": 2, "dx": 1, "dy": 1, "lo1": 0, "la1": 1}, "data": [5, 6, 7, 8]}
	]`

	field, err := DecodeFeed([]byte(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if field.Header.Nx != 2 || field.Header.ParameterNumber != paramU {
		t.Fatalf("expected header from the u record, got %+v", field.Header)
	}
	if len(field.U) != 4 || field.U[0] != 1 {
		t.Fatalf("unexpected u data: %v", field.U)
	}
	if len(field.V) != 4 || field.V[3] != 8 {
		t.Fatalf("unexpected v data: %v", field.V)
	}
}

func TestDecodeFeedMissingComponent(t *testing.T) {
	payload := `[
		{"header": {"parameterNumber": 2, "nx": 2, "ny": 2, "dx": 1, "dy": 1}, "data": [1, 2, 3, 4]}
	]`
	if _, err := DecodeFeed([]byte(payload)); err == nil {
		t.Fatal("expected error for a feed without the v component")
	}
}
