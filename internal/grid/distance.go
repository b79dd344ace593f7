package grid

import "math"

// Distances are measured in grid-index units: neighbouring cells along one
// dimension are 1 apart regardless of the physical spacing.

// DistanceTransform returns, for every cell, the Euclidean distance to the
// nearest set cell of m. Periodic dimensions wrap. Every cell is +Inf when m
// is empty.
func DistanceTransform(g *Grid, m Mask) Table {
	g.mustMatchMask(m)
	out := NewTable(g.shape)
	for i, c := range m.cells {
		if !c {
			out.values[i] = math.Inf(1)
		}
	}
	for d := range g.shape {
		g.squaredDistanceAlong(out.values, d)
	}
	for i, v := range out.values {
		out.values[i] = math.Sqrt(v)
	}
	return out
}

// SignedDistance is positive inside m and negative outside, with the
// interface half a cell from the boundary cells on either side. Cells with no
// cell of the opposite kind get the grid diagonal.
func SignedDistance(g *Grid, m Mask) Table {
	toOutside := DistanceTransform(g, m.Not())
	toInside := DistanceTransform(g, m)
	diag := g.diagonal()

	out := NewTable(g.shape)
	for i, c := range m.cells {
		if c {
			out.values[i] = capDistance(toOutside.values[i], diag) - 0.5
		} else {
			out.values[i] = -(capDistance(toInside.values[i], diag) - 0.5)
		}
	}
	return out
}

// ExpandByDistance returns m plus every cell within distance d of a set cell.
// A non-positive d returns a copy of m.
func ExpandByDistance(g *Grid, m Mask, d float64) Mask {
	g.mustMatchMask(m)
	if d <= 0 || m.IsEmpty() {
		return m.Clone()
	}
	dist := DistanceTransform(g, m)
	out := NewMask(g.shape)
	for i, v := range dist.values {
		out.cells[i] = m.cells[i] || v <= d
	}
	return out
}

// NearZeroLevelset marks cells whose signed distance to the zero level set of
// values has magnitude at most d.
func NearZeroLevelset(g *Grid, values Table, d float64) Mask {
	g.mustMatchTable(values)
	sd := SignedDistance(g, values.NonNegative())
	out := NewMask(g.shape)
	for i, v := range sd.values {
		out.cells[i] = math.Abs(v) <= d
	}
	return out
}

func capDistance(v, limit float64) float64 {
	if math.IsInf(v, 1) || v > limit {
		return limit
	}
	return v
}

func (g *Grid) diagonal() float64 {
	sum := 0.0
	for _, n := range g.shape {
		sum += float64(n) * float64(n)
	}
	return math.Sqrt(sum)
}

// squaredDistanceAlong runs the 1-D lower-envelope transform over every line
// of values parallel to dim, in place.
func (g *Grid) squaredDistanceAlong(values []float64, dim int) {
	n := g.shape[dim]
	stride := g.strides[dim]
	span := n
	if g.periodic[dim] {
		span = 3 * n
	}
	line := make([]float64, span)
	res := make([]float64, span)
	v := make([]int, span)
	z := make([]float64, span+1)

	outer := len(values) / (n * stride)
	for o := 0; o < outer; o++ {
		for inner := 0; inner < stride; inner++ {
			base := o*n*stride + inner
			for j := 0; j < span; j++ {
				line[j] = values[base+(j%n)*stride]
			}
			lowerEnvelope(line, res, v, z)
			offset := 0
			if g.periodic[dim] {
				offset = n
			}
			for j := 0; j < n; j++ {
				values[base+j*stride] = res[offset+j]
			}
		}
	}
}

// lowerEnvelope computes out[q] = min_p (q-p)^2 + f[p] over finite f[p].
func lowerEnvelope(f, out []float64, v []int, z []float64) {
	k := -1
	for q := range f {
		if math.IsInf(f[q], 1) {
			continue
		}
		if k < 0 {
			k = 0
			v[0] = q
			z[0] = math.Inf(-1)
			z[1] = math.Inf(1)
			continue
		}
		fq := f[q] + float64(q*q)
		var s float64
		for {
			p := v[k]
			s = (fq - (f[p] + float64(p*p))) / float64(2*(q-p))
			if s <= z[k] {
				k--
				continue
			}
			break
		}
		k++
		v[k] = q
		z[k] = s
		z[k+1] = math.Inf(1)
	}

	if k < 0 {
		for q := range out {
			out[q] = math.Inf(1)
		}
		return
	}
	k = 0
	for q := range out {
		for z[k+1] < float64(q) {
			k++
		}
		dq := float64(q - v[k])
		out[q] = dq*dq + f[v[k]]
	}
}

func (g *Grid) mustMatchMask(m Mask) {
	if err := g.CheckMask(m); err != nil {
		panic(err)
	}
}

func (g *Grid) mustMatchTable(t Table) {
	if err := g.CheckTable(t); err != nil {
		panic(err)
	}
}
