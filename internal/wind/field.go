package wind

import "math"

// GridHeader describes a regular lat/lon grid in the standard
// meteorological record layout: origin (lo1, la1), spacing (dx, dy),
// dimensions (nx, ny). Rows run from la1 southward, columns from lo1
// eastward with wraparound.
type GridHeader struct {
	ParameterNumber int     `json:"parameterNumber"`
	Nx              int     `json:"nx"`
	Ny              int     `json:"ny"`
	Dx              float64 `json:"dx"`
	Dy              float64 `json:"dy"`
	Lo1             float64 `json:"lo1"`
	La1             float64 `json:"la1"`
}

// Field is a gridded wind vector field: u and v component scalars in
// row-major order over the grid the header describes.
type Field struct {
	Header GridHeader
	U      []float64
	V      []float64
}

// SampleAt bilinearly interpolates the geographic wind vector at a
// point. Longitude wraps around the grid; latitude does not. Samples
// outside the latitude extent, or touching a non-finite corner, are
// rejected.
func (f *Field) SampleAt(lon, lat float64) (u, v float64, ok bool) {
	h := f.Header
	if h.Nx <= 0 || h.Ny <= 0 || h.Dx == 0 || h.Dy == 0 {
		return 0, 0, false
	}

	lonWrapped := math.Mod(lon, 360)
	if lonWrapped < 0 {
		lonWrapped += 360
	}
	i := (lonWrapped - h.Lo1) / h.Dx
	j := (h.La1 - lat) / h.Dy
	if j < 0 || j > float64(h.Ny-1) {
		return 0, 0, false
	}

	i0 := int(math.Floor(i))
	j0 := int(math.Floor(j))
	i1 := (i0 + 1) % h.Nx
	j1 := j0 + 1
	if j0 < 0 || j1 >= h.Ny {
		return 0, 0, false
	}

	fi := i - float64(i0)
	fj := j - float64(j0)
	col0 := ((i0 % h.Nx) + h.Nx) % h.Nx
	idx00 := j0*h.Nx + col0
	idx10 := j0*h.Nx + i1
	idx01 := j1*h.Nx + col0
	idx11 := j1*h.Nx + i1

	max := len(f.U)
	if len(f.V) < max {
		max = len(f.V)
	}
	for _, idx := range [4]int{idx00, idx10, idx01, idx11} {
		if idx < 0 || idx >= max {
			return 0, 0, false
		}
	}

	u00, u10, u01, u11 := f.U[idx00], f.U[idx10], f.U[idx01], f.U[idx11]
	v00, v10, v01, v11 := f.V[idx00], f.V[idx10], f.V[idx01], f.V[idx11]
	for _, corner := range [8]float64{u00, u10, u01, u11, v00, v10, v01, v11} {
		if math.IsNaN(corner) || math.IsInf(corner, 0) {
			return 0, 0, false
		}
	}

	u0 := u00 + (u10-u00)*fi
	u1 := u01 + (u11-u01)*fi
	v0 := v00 + (v10-v00)*fi
	v1 := v01 + (v11-v01)*fi
	return u0 + (u1-u0)*fj, v0 + (v1-v0)*fj, true
}
