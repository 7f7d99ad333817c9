package world

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// slopeTerrain плоскость z = x*slope на сетке 11x11 с шагом 1
func slopeTerrain(t *testing.T, slope float32) *Terrain {
	t.Helper()
	heights := make([]float32, 11*11)
	for j := 0; j < 11; j++ {
		for i := 0; i < 11; i++ {
			heights[j*11+i] = float32(i) * slope
		}
	}
	terrain, err := NewTerrain(11, 11, 1, mgl32.Vec3{}, heights)
	if err != nil {
		t.Fatalf("NewTerrain: %v", err)
	}
	return terrain
}

func TestTerrain_HeightBilinear(t *testing.T) {
	terrain, err := NewTerrain(2, 2, 2, mgl32.Vec3{10, 10, 1}, []float32{0, 2, 4, 6})
	if err != nil {
		t.Fatal(err)
	}

	h, ok := terrain.Height(11, 11)
	if !ok || !near(h, 4, 1e-5) {
		t.Errorf("center height = %v ok=%v, want 4 (3 + origin 1)", h, ok)
	}
	if h, _ := terrain.Height(12, 12); !near(h, 7, 1e-5) {
		t.Errorf("corner height = %v, want 7", h)
	}
	if _, ok := terrain.Height(9, 11); ok {
		t.Errorf("point outside the grid must report false")
	}
}

func TestTerrain_SizeMismatch(t *testing.T) {
	_, err := NewTerrain(3, 3, 1, mgl32.Vec3{}, make([]float32, 8))
	if !errors.Is(err, ErrTerrainSize) {
		t.Fatalf("expected ErrTerrainSize, got %v", err)
	}
}

func TestTerrain_NormalOnSlope(t *testing.T) {
	terrain := slopeTerrain(t, 1)
	n := terrain.Normal(5, 5)
	want := mgl32.Vec3{-1, 0, 1}.Normalize()
	if !vecNear(n, want, 1e-4) {
		t.Fatalf("normal = %v, want %v", n, want)
	}
}

func TestTerrain_RayTrace(t *testing.T) {
	terrain := slopeTerrain(t, 0)

	hit, ok := terrain.RayTrace(mgl32.Vec3{5, 5, 10}, mgl32.Vec3{0, 0, -20})
	if !ok {
		t.Fatalf("expected terrain hit")
	}
	if !near(hit.Dist, 10, 1e-3) || !vecNear(hit.Normal, mgl32.Vec3{0, 0, 1}, 1e-4) {
		t.Errorf("hit = %+v, want dist 10 normal +Z", hit)
	}

	// Наклонный луч по наклонной поверхности
	sloped := slopeTerrain(t, 0.5)
	hit, ok = sloped.RayTrace(mgl32.Vec3{1, 5, 8}, mgl32.Vec3{8, 0, -8})
	if !ok {
		t.Fatalf("expected sloped hit")
	}
	// Луч z = 8 - (x-1), поверхность z = x/2 -> x = 6
	if !vecNear(hit.Point, mgl32.Vec3{6, 5, 3}, 1e-3) {
		t.Errorf("sloped hit point = %v, want (6,5,3)", hit.Point)
	}

	if _, ok := terrain.RayTrace(mgl32.Vec3{5, 5, 10}, mgl32.Vec3{0, 0, -5}); ok {
		t.Errorf("short ray must miss")
	}
	if _, ok := terrain.RayTrace(mgl32.Vec3{5, 5, -1}, mgl32.Vec3{0, 0, -5}); ok {
		t.Errorf("ray starting under ground must miss")
	}
	if _, ok := terrain.RayTrace(mgl32.Vec3{50, 5, 10}, mgl32.Vec3{0, 0, -20}); ok {
		t.Errorf("ray outside the grid must miss")
	}
}

func TestTerrain_RayTraceLongSegment(t *testing.T) {
	terrain := slopeTerrain(t, 0.5)

	started := time.Now()
	// Тот же наклонный луч, что и выше, но длиной 1e12
	move := mgl32.Vec3{1, 0, -1}.Normalize().Mul(1e12)
	hit, ok := terrain.RayTrace(mgl32.Vec3{1, 5, 8}, move)
	if !ok {
		t.Fatalf("expected hit on long segment")
	}
	if !vecNear(hit.Point, mgl32.Vec3{6, 5, 3}, 1e-3) {
		t.Errorf("hit point = %v, want (6,5,3)", hit.Point)
	}

	// Отрезок проходит мимо сетки целиком
	if _, ok := terrain.RayTrace(mgl32.Vec3{-1e6, 50, 5}, mgl32.Vec3{2e12, 0, 0}); ok {
		t.Errorf("segment beside the grid must miss")
	}
	if elapsed := time.Since(started); elapsed > 200*time.Millisecond {
		t.Errorf("long segments took %v, expected marching limited to the grid", elapsed)
	}

	nan := float32(math.NaN())
	if _, ok := terrain.RayTrace(mgl32.Vec3{nan, 5, 8}, mgl32.Vec3{0, 0, -20}); ok {
		t.Errorf("NaN start must miss")
	}
	if _, ok := terrain.RayTrace(mgl32.Vec3{5, 5, 8}, mgl32.Vec3{0, 0, float32(math.Inf(-1))}); ok {
		t.Errorf("infinite move must miss")
	}
}

func TestTerrain_BoundsCached(t *testing.T) {
	terrain := slopeTerrain(t, 0.5)
	b := terrain.Bounds()
	if !vecNear(b.Min, mgl32.Vec3{0, 0, 0}, 1e-6) || !vecNear(b.Max, mgl32.Vec3{10, 10, 5}, 1e-6) {
		t.Fatalf("bounds = %+v, want (0,0,0)-(10,10,5)", b)
	}
}

func TestGenerateHeights_RangeAndDeterminism(t *testing.T) {
	a := GenerateHeights(32, 32, -20, 30)
	b := GenerateHeights(32, 32, -20, 30)
	if len(a) != 32*32 {
		t.Fatalf("len = %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("generator must be deterministic (index %d)", i)
		}
	}
}
