package mapmatch

import (
	"math"
	"math/rand"
	"testing"

	"github.com/paulmach/orb"

	"livenav/internal/geo"
	"livenav/internal/polyline"
)

var origin = orb.Point{121.565, 25.033}

// squareRoute walks three sides of a 10 m square: east, north, west.
func squareRoute() orb.LineString {
	p1 := geo.Offset(origin, 10, 0)
	p2 := geo.Offset(p1, 0, 10)
	p3 := geo.Offset(p2, -10, 0)
	return orb.LineString{origin, p1, p2, p3}
}

func straightRoute(lengthM, stepM float64) orb.LineString {
	return polyline.Densify(orb.LineString{origin, geo.Offset(origin, lengthM, 0)}, stepM)
}

func TestNewIndex(t *testing.T) {
	line := squareRoute()
	idx := NewIndex(line)

	if idx.Len() != len(line) {
		t.Fatalf("index length %d != polyline length %d", idx.Len(), len(line))
	}
	if idx.At(0) != 0 {
		t.Fatalf("index[0] = %f, want 0", idx.At(0))
	}
	sum := 0.0
	for i := 1; i < len(line); i++ {
		if idx.At(i) < idx.At(i-1) {
			t.Fatalf("index decreases at %d", i)
		}
		sum += geo.Haversine(line[i-1], line[i])
	}
	if math.Abs(idx.Total()-sum) > 1e-9 {
		t.Errorf("Total() = %f, want %f", idx.Total(), sum)
	}
	if math.Abs(idx.Total()-30) > 1e-3 {
		t.Errorf("square route length = %f, want 30", idx.Total())
	}
}

func TestNewIndex_Empty(t *testing.T) {
	idx := NewIndex(nil)
	if idx.Len() != 0 || idx.Total() != 0 {
		t.Errorf("expected empty index, got %v", idx)
	}
}

func TestFullScan_OnVertex(t *testing.T) {
	line := squareRoute()
	idx := NewIndex(line)

	m := FullScan(line, idx, line[2])
	if m.Index != 2 {
		t.Errorf("Index = %d, want 2", m.Index)
	}
	if math.Abs(m.Along-20) > 1e-3 {
		t.Errorf("Along = %f, want 20", m.Along)
	}
	if d := OffRoute(line[2], m); d > 1e-6 {
		t.Errorf("OffRoute = %f, want 0", d)
	}
}

func TestFullScan_Perpendicular(t *testing.T) {
	line := orb.LineString{origin, geo.Offset(origin, 100, 0)}
	idx := NewIndex(line)

	p := geo.Offset(origin, 40, 25)
	m := FullScan(line, idx, p)
	if math.Abs(m.Along-40) > 0.01 {
		t.Errorf("Along = %f, want 40", m.Along)
	}
	if d := OffRoute(p, m); math.Abs(d-25) > 0.01 {
		t.Errorf("OffRoute = %f, want 25", d)
	}
	if math.Abs(m.T-0.4) > 1e-3 {
		t.Errorf("T = %f, want 0.4", m.T)
	}
}

func TestFullScan_BoundsForArbitraryPoints(t *testing.T) {
	line := squareRoute()
	idx := NewIndex(line)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		p := geo.Offset(origin, rng.Float64()*200-100, rng.Float64()*200-100)
		m := FullScan(line, idx, p)
		if m.Along < 0 || m.Along > idx.Total() {
			t.Fatalf("point %v: along %f outside [0, %f]", p, m.Along, idx.Total())
		}
		if d := OffRoute(p, m); d < 0 || math.IsNaN(d) {
			t.Fatalf("point %v: invalid off-route distance %f", p, d)
		}
		if m.Index < 1 || m.Index >= len(line) {
			t.Fatalf("point %v: index %d out of range", p, m.Index)
		}
	}
}

func TestFullScan_BeforeStartAndAfterEnd(t *testing.T) {
	line := straightRoute(50, 5)
	idx := NewIndex(line)

	before := FullScan(line, idx, geo.Offset(origin, -20, 0))
	if before.Along != 0 {
		t.Errorf("before start: Along = %f, want 0", before.Along)
	}
	after := FullScan(line, idx, geo.Offset(origin, 80, 0))
	if math.Abs(after.Along-idx.Total()) > 1e-9 {
		t.Errorf("after end: Along = %f, want %f", after.Along, idx.Total())
	}
}

func TestWindow_NearestVertexInWindow(t *testing.T) {
	line := straightRoute(100, 1)
	idx := NewIndex(line)

	m := Window(line, idx, geo.Offset(origin, 12.2, 0.5), 5, DefaultWindow)
	if m.Index != 12 {
		t.Errorf("Index = %d, want 12", m.Index)
	}
	if m.Along != idx.At(12) {
		t.Errorf("Along = %f, want vertex distance %f", m.Along, idx.At(12))
	}
	if m.Point != line[12] {
		t.Errorf("Point = %v, want vertex %v", m.Point, line[12])
	}
}

func TestWindow_NeverMovesBackward(t *testing.T) {
	line := straightRoute(100, 1)
	idx := NewIndex(line)

	// The agent is behind the hint: the window clamps to the hint itself.
	m := Window(line, idx, geo.Offset(origin, 3, 0), 40, DefaultWindow)
	if m.Index != 40 {
		t.Errorf("Index = %d, want hint 40", m.Index)
	}
}

func TestWindow_AgentBeyondWindowReportsOffRoute(t *testing.T) {
	line := straightRoute(100, 1)
	idx := NewIndex(line)

	p := geo.Offset(origin, 90, 0)
	m := Window(line, idx, p, 0, 10)
	if m.Index != 9 {
		t.Errorf("Index = %d, want window end 9", m.Index)
	}
	if d := OffRoute(p, m); d < 80 {
		t.Errorf("OffRoute = %f, expected the caller to see a large distance", d)
	}
}

func TestWindow_HintClamped(t *testing.T) {
	line := squareRoute()
	idx := NewIndex(line)

	m := Window(line, idx, line[3], 99, DefaultWindow)
	if m.Index != len(line)-1 {
		t.Errorf("Index = %d, want last vertex", m.Index)
	}
	m = Window(line, idx, line[0], -4, 0)
	if m.Index != 0 {
		t.Errorf("Index = %d, want 0", m.Index)
	}
}
