package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestHaversine_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      orb.Point
		wantM     float64
		tolerance float64
	}{
		{
			name:      "same point",
			a:         orb.Point{121.565, 25.033},
			b:         orb.Point{121.565, 25.033},
			wantM:     0,
			tolerance: 0.001,
		},
		{
			name:      "Taipei 101 to Taipei Main Station (~5km)",
			a:         orb.Point{121.5645, 25.0340},
			b:         orb.Point{121.5170, 25.0478},
			wantM:     5000,
			tolerance: 500,
		},
		{
			name:      "New York to Los Angeles (~3944km)",
			a:         orb.Point{-74.0060, 40.7128},
			b:         orb.Point{-118.2437, 34.0522},
			wantM:     3944000,
			tolerance: 50000,
		},
		{
			name:      "one millidegree of latitude",
			a:         orb.Point{0, 0},
			b:         orb.Point{0, 0.001},
			wantM:     EarthRadiusMeters * 0.001 * math.Pi / 180,
			tolerance: 1e-6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.a, tt.b)
			if math.Abs(got-tt.wantM) > tt.tolerance {
				t.Errorf("Haversine() = %f, want %f (±%f)", got, tt.wantM, tt.tolerance)
			}
		})
	}
}

func TestHaversine_Symmetry(t *testing.T) {
	a := orb.Point{121.0, 25.0}
	b := orb.Point{122.0, 26.0}
	d1 := Haversine(a, b)
	d2 := Haversine(b, a)
	if math.Abs(d1-d2) > 1e-9 {
		t.Errorf("haversine is not symmetric: %f vs %f", d1, d2)
	}
}

func TestProjectOnSegment(t *testing.T) {
	a := orb.Point{13.4, 52.5}
	b := Offset(a, 100, 0)

	tests := []struct {
		name  string
		p     orb.Point
		wantT float64
	}{
		{"perpendicular to the middle", Offset(a, 50, 20), 0.5},
		{"before the start clamps to 0", Offset(a, -30, 5), 0},
		{"past the end clamps to 1", Offset(a, 130, -5), 1},
		{"on the segment", Offset(a, 25, 0), 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proj, tf := ProjectOnSegment(tt.p, a, b)
			if math.Abs(tf-tt.wantT) > 1e-3 {
				t.Fatalf("t = %f, want %f", tf, tt.wantT)
			}
			want := Interpolate(a, b, tt.wantT)
			if d := Haversine(proj, want); d > 0.05 {
				t.Errorf("projected point %v is %.3fm from expected %v", proj, d, want)
			}
		})
	}
}

func TestProjectOnSegment_Degenerate(t *testing.T) {
	a := orb.Point{10, 10}
	proj, tf := ProjectOnSegment(orb.Point{10.001, 10}, a, a)
	if tf != 0 || proj != a {
		t.Errorf("degenerate segment: got (%v, %f), want (%v, 0)", proj, tf, a)
	}
}

func TestOffset_Distance(t *testing.T) {
	p := orb.Point{121.565, 25.033}
	for _, d := range []float64{1, 10, 250} {
		if got := Haversine(p, Offset(p, d, 0)); math.Abs(got-d) > 1e-3 {
			t.Errorf("east offset %v: haversine = %f", d, got)
		}
		if got := Haversine(p, Offset(p, 0, d)); math.Abs(got-d) > 1e-6 {
			t.Errorf("north offset %v: haversine = %f", d, got)
		}
	}
}
