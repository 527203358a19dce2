package wind

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

const (
	earthCircumference = 2 * math.Pi * 6378137 // meters, EPSG:3857 extent
	tileSize           = 256

	metersPerDegLat = 111320
)

// Viewport is a Web-Mercator map view: screen size in CSS pixels, zoom
// level, and geographic center.
type Viewport struct {
	Width     float64
	Height    float64
	Zoom      float64
	CenterLon float64
	CenterLat float64
}

func (vp Viewport) metersPerPixel() float64 {
	return earthCircumference / (tileSize * math.Pow(2, vp.Zoom))
}

// Project maps a geographic point to screen pixels for this viewport.
func (vp Viewport) Project(lon, lat float64) (x, y float64) {
	res := vp.metersPerPixel()
	c := project.WGS84.ToMercator(orb.Point{vp.CenterLon, vp.CenterLat})
	p := project.WGS84.ToMercator(orb.Point{lon, lat})
	x = vp.Width/2 + (p.X()-c.X())/res
	y = vp.Height/2 - (p.Y()-c.Y())/res
	return x, y
}

// Unproject maps screen pixels back to a geographic point.
func (vp Viewport) Unproject(x, y float64) (lon, lat float64) {
	res := vp.metersPerPixel()
	c := project.WGS84.ToMercator(orb.Point{vp.CenterLon, vp.CenterLat})
	mx := c.X() + (x-vp.Width/2)*res
	my := c.Y() - (y-vp.Height/2)*res
	p := project.Mercator.ToWGS84(orb.Point{mx, my})
	return p.X(), p.Y()
}

// Vec is a screen-space displacement in pixels.
type Vec struct {
	Dx float64 `json:"dx"`
	Dy float64 `json:"dy"`
}

// ScreenField is the geographic field resampled onto a screen grid for
// one viewport. Cells without usable data are nil. The field is always
// rebuilt whole: the geographic-to-screen mapping is view-dependent, so
// patching stale cells would mix projections.
type ScreenField struct {
	Cols    int     `json:"cols"`
	Rows    int     `json:"rows"`
	Step    float64 `json:"step"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Vectors []*Vec  `json:"vectors"`

	// AverageSpeed is the mean geographic wind speed over sampled cells,
	// rounded to 0.1 m/s; HasAverage is false when nothing sampled.
	AverageSpeed float64 `json:"averageSpeed"`
	HasAverage   bool    `json:"hasAverage"`
}

// BuildScreenField samples the geographic field at each screen grid
// point and converts the m/s vector into a per-frame pixel displacement:
// the point is advanced by vector*timeScale seconds geographically, then
// both ends are projected and differenced. Differencing in screen space
// keeps the nonlinear zoom/projection relationship exact.
func BuildScreenField(f *Field, vp Viewport) *ScreenField {
	step := math.Max(28, math.Round(140/math.Max(vp.Zoom, 1)))
	cols := int(math.Ceil(vp.Width / step))
	rows := int(math.Ceil(vp.Height / step))
	if cols <= 0 || rows <= 0 {
		return &ScreenField{Step: step, Width: vp.Width, Height: vp.Height}
	}

	zoomFactor := math.Pow(2, (vp.Zoom-12)*0.15)
	timeScale := 600 / math.Max(0.6, zoomFactor)

	vectors := make([]*Vec, rows*cols)
	speedSum := 0.0
	speedCount := 0

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			px := float64(x) * step
			py := float64(y) * step
			lon, lat := vp.Unproject(px, py)
			u, v, ok := f.SampleAt(lon, lat)
			if !ok {
				continue
			}

			speed := math.Hypot(u, v)
			if !math.IsNaN(speed) && !math.IsInf(speed, 0) {
				speedSum += speed
				speedCount++
			}

			metersPerDegLon := metersPerDegLat * math.Cos(lat*math.Pi/180)
			if metersPerDegLon == 0 || math.IsNaN(metersPerDegLon) {
				continue
			}
			deltaLon := u * timeScale / metersPerDegLon
			deltaLat := v * timeScale / metersPerDegLat
			ex, ey := vp.Project(lon+deltaLon, lat+deltaLat)
			dx := ex - px
			dy := ey - py
			if math.IsNaN(dx) || math.IsNaN(dy) || math.IsInf(dx, 0) || math.IsInf(dy, 0) {
				continue
			}
			vectors[y*cols+x] = &Vec{Dx: dx, Dy: dy}
		}
	}

	sf := &ScreenField{
		Cols:    cols,
		Rows:    rows,
		Step:    step,
		Width:   vp.Width,
		Height:  vp.Height,
		Vectors: vectors,
	}
	if speedCount > 0 {
		sf.AverageSpeed = math.Round(speedSum/float64(speedCount)*10) / 10
		sf.HasAverage = true
	}
	return sf
}

// VectorAt bilinearly interpolates the screen field at a pixel position.
// Any missing surrounding cell makes the sample unusable.
func (sf *ScreenField) VectorAt(x, y float64) (Vec, bool) {
	if sf.Step == 0 || len(sf.Vectors) == 0 {
		return Vec{}, false
	}
	gx := x / sf.Step
	gy := y / sf.Step
	x0 := int(math.Floor(gx))
	y0 := int(math.Floor(gy))
	x1 := x0 + 1
	y1 := y0 + 1
	if x0 < 0 || y0 < 0 || x1 >= sf.Cols || y1 >= sf.Rows {
		return Vec{}, false
	}
	fx := gx - float64(x0)
	fy := gy - float64(y0)
	v00 := sf.Vectors[y0*sf.Cols+x0]
	v10 := sf.Vectors[y0*sf.Cols+x1]
	v01 := sf.Vectors[y1*sf.Cols+x0]
	v11 := sf.Vectors[y1*sf.Cols+x1]
	if v00 == nil || v10 == nil || v01 == nil || v11 == nil {
		return Vec{}, false
	}

	dx0 := v00.Dx + (v10.Dx-v00.Dx)*fx
	dx1 := v01.Dx + (v11.Dx-v01.Dx)*fx
	dy0 := v00.Dy + (v10.Dy-v00.Dy)*fx
	dy1 := v01.Dy + (v11.Dy-v01.Dy)*fx
	return Vec{
		Dx: dx0 + (dx1-dx0)*fy,
		Dy: dy0 + (dy1-dy0)*fy,
	}, true
}
