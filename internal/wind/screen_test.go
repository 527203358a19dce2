package wind

import (
	"math"
	"testing"
	"time"
)

func gijonViewport() Viewport {
	return Viewport{
		Width:     800,
		Height:    600,
		Zoom:      12,
		CenterLon: -5.6611,
		CenterLat: 43.5322,
	}
}

func TestProjectRoundTrip(t *testing.T) {
	vp := gijonViewport()

	lon, lat := -5.65, 43.54
	x, y := vp.Project(lon, lat)
	backLon, backLat := vp.Unproject(x, y)

	if math.Abs(backLon-lon) > 1e-9 || math.Abs(backLat-lat) > 1e-9 {
		t.Fatalf("round trip drifted: (%v, %v) -> (%v, %v)", lon, lat, backLon, backLat)
	}
}

func TestProjectCenterLandsMidScreen(t *testing.T) {
	vp := gijonViewport()
	x, y := vp.Project(vp.CenterLon, vp.CenterLat)
	if math.Abs(x-400) > 1e-6 || math.Abs(y-300) > 1e-6 {
		t.Fatalf("expected center at (400, 300), got (%v, %v)", x, y)
	}
}

// uniformField covers the viewport with a constant 10 m/s eastward wind.
func uniformField() *Field {
	nx, ny := 40, 20
	u := make([]float64, nx*ny)
	v := make([]float64, nx*ny)
	for i := range u {
		u[i] = 10
	}
	return &Field{
		Header: GridHeader{Nx: nx, Ny: ny, Dx: 1, Dy: 1, Lo1: 335, La1: 53},
		U:      u,
		V:      v,
	}
}

func TestBuildScreenFieldGridGeometry(t *testing.T) {
	sf := BuildScreenField(uniformField(), gijonViewport())

	// Zoom 12: 140/12 rounds to 12, floored at the 28px minimum.
	if sf.Step != 28 {
		t.Fatalf("expected step 28, got %v", sf.Step)
	}
	wantCols := int(math.Ceil(800.0 / 28))
	wantRows := int(math.Ceil(600.0 / 28))
	if sf.Cols != wantCols || sf.Rows != wantRows {
		t.Fatalf("expected %dx%d grid, got %dx%d", wantCols, wantRows, sf.Cols, sf.Rows)
	}
	if len(sf.Vectors) != wantCols*wantRows {
		t.Fatalf("expected %d cells, got %d", wantCols*wantRows, len(sf.Vectors))
	}
}

func TestBuildScreenFieldEastwardWind(t *testing.T) {
	sf := BuildScreenField(uniformField(), gijonViewport())

	if !sf.HasAverage {
		t.Fatal("expected average speed over a fully covered viewport")
	}
	if math.Abs(sf.AverageSpeed-10) > 0.11 {
		t.Fatalf("expected average speed ~10 m/s, got %v", sf.AverageSpeed)
	}

	cell := sf.Vectors[sf.Rows/2*sf.Cols+sf.Cols/2]
	if cell == nil {
		t.Fatal("expected mid-screen cell to be sampled")
	}
	if cell.Dx <= 0 {
		t.Fatalf("eastward wind must move right on screen, got dx=%v", cell.Dx)
	}
	if math.Abs(cell.Dy) > math.Abs(cell.Dx)/100 {
		t.Fatalf("eastward wind must not drift vertically, got dy=%v", cell.Dy)
	}
}

func TestBuildScreenFieldOutsideGrid(t *testing.T) {
	vp := gijonViewport()
	vp.CenterLat = 10 // far south of the grid
	sf := BuildScreenField(uniformField(), vp)

	for _, cell := range sf.Vectors {
		if cell != nil {
			t.Fatal("expected no cells sampled outside the grid")
		}
	}
	if sf.HasAverage {
		t.Fatal("expected no average without samples")
	}
}

func TestVectorAtBilinear(t *testing.T) {
	sf := &ScreenField{
		Cols:   2,
		Rows:   2,
		Step:   10,
		Width:  20,
		Height: 20,
		Vectors: []*Vec{
			{Dx: 0, Dy: 0}, {Dx: 10, Dy: 0},
			{Dx: 0, Dy: 10}, {Dx: 10, Dy: 10},
		},
	}

	v, ok := sf.VectorAt(5, 5)
	if !ok {
		t.Fatal("expected in-grid sample")
	}
	if math.Abs(v.Dx-5) > 1e-9 || math.Abs(v.Dy-5) > 1e-9 {
		t.Fatalf("expected (5, 5), got (%v, %v)", v.Dx, v.Dy)
	}

	if _, ok := sf.VectorAt(15, 15); ok {
		t.Fatal("expected rejection past the last grid line")
	}
}

func TestVectorAtMissingCell(t *testing.T) {
	sf := &ScreenField{
		Cols:   2,
		Rows:   2,
		Step:   10,
		Width:  20,
		Height: 20,
		Vectors: []*Vec{
			{Dx: 0, Dy: 0}, nil,
			{Dx: 0, Dy: 10}, {Dx: 10, Dy: 10},
		},
	}
	if _, ok := sf.VectorAt(5, 5); ok {
		t.Fatal("expected rejection when a surrounding cell is missing")
	}
}

func TestControllerRateLimitsRebuilds(t *testing.T) {
	ctrl := NewController(nil)
	now := time.Unix(0, 0)
	ctrl.now = func() time.Time { return now }
	ctrl.field = uniformField()

	vp := gijonViewport()
	first := ctrl.ScreenFieldFor(vp)
	if first == nil {
		t.Fatal("expected a built field")
	}

	// Same viewport inside the window: cached field comes back.
	now = now.Add(100 * time.Millisecond)
	if again := ctrl.ScreenFieldFor(vp); again != first {
		t.Fatal("expected the cached field inside the rebuild window")
	}

	// A different viewport rebuilds immediately.
	moved := vp
	moved.CenterLat += 0.01
	if rebuilt := ctrl.ScreenFieldFor(moved); rebuilt == first {
		t.Fatal("expected a rebuild for a changed viewport")
	}

	// The original viewport after the window rebuilds too.
	now = now.Add(time.Second)
	if rebuilt := ctrl.ScreenFieldFor(vp); rebuilt == first {
		t.Fatal("expected a rebuild after the window elapsed")
	}
}

func TestControllerWithoutField(t *testing.T) {
	ctrl := NewController(nil)
	if sf := ctrl.ScreenFieldFor(gijonViewport()); sf != nil {
		t.Fatal("expected nil before the first refresh")
	}
}
