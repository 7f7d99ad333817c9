package world

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"x-fields/backend/internal/core/domain/entity"
)

func near(a, b, eps float32) bool {
	return math.Abs(float64(a-b)) <= float64(eps)
}

func vecNear(a, b mgl32.Vec3, eps float32) bool {
	return near(a.X(), b.X(), eps) && near(a.Y(), b.Y(), eps) && near(a.Z(), b.Z(), eps)
}

func TestVolume_LocalDistanceShapes(t *testing.T) {
	box := Volume{Shape: ShapeBox, HalfExtents: mgl32.Vec3{2, 4, 1}}
	if d, _ := box.LocalDistance(mgl32.Vec3{1, 3, 0.5}); !near(d, 0.75, 1e-6) {
		t.Errorf("box distance = %v, want 0.75 (max axis)", d)
	}

	sphere := Volume{Shape: ShapeSphere, HalfExtents: mgl32.Vec3{5, 0, 0}}
	if d, _ := sphere.LocalDistance(mgl32.Vec3{3, 4, 0}); !near(d, 1, 1e-6) {
		t.Errorf("sphere distance = %v, want 1", d)
	}

	cyl := Volume{Shape: ShapeCylinder, HalfExtents: mgl32.Vec3{2, 0, 10}}
	if d, _ := cyl.LocalDistance(mgl32.Vec3{1, 0, 8}); !near(d, 0.8, 1e-6) {
		t.Errorf("cylinder distance = %v, want 0.8 (height dominates)", d)
	}

	global := Volume{Shape: ShapeGlobal}
	if d, _ := global.LocalDistance(mgl32.Vec3{1e5, 0, 0}); d != 0 {
		t.Errorf("global distance = %v, want 0", d)
	}
}

func TestVolume_RotatedBounds(t *testing.T) {
	v := Volume{
		Shape:       ShapeBox,
		Rotation:    mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1}),
		HalfExtents: mgl32.Vec3{4, 1, 1},
	}
	b := v.Bounds()
	if !vecNear(b.Max, mgl32.Vec3{1, 4, 1}, 1e-4) || !vecNear(b.Min, mgl32.Vec3{-1, -4, -1}, 1e-4) {
		t.Fatalf("rotated bounds = %v", b)
	}
	if !v.Contains(mgl32.Vec3{0, 3.5, 0}) || v.Contains(mgl32.Vec3{3.5, 0, 0}) {
		t.Errorf("containment must follow rotation")
	}
}

func TestVolume_ForcesFalloff(t *testing.T) {
	v := Volume{
		Shape:       ShapeBox,
		HalfExtents: mgl32.Vec3{10, 10, 10},
		Medium:      MediumAir,
		Flow:        mgl32.Vec3{4, 0, 0},
		Mode:        FieldDirectional,
		Falloff0:    0.5,
	}

	// Внутри ядра сила полная
	if _, wind, ok := v.ForcesAt(mgl32.Vec3{3, 0, 0}); !ok || !vecNear(wind, mgl32.Vec3{4, 0, 0}, 1e-5) {
		t.Errorf("core wind = %v ok=%v", wind, ok)
	}
	// На 3/4 пути от центра: (1-0.75)*2 = 0.5
	if _, wind, _ := v.ForcesAt(mgl32.Vec3{7.5, 0, 0}); !vecNear(wind, mgl32.Vec3{2, 0, 0}, 1e-5) {
		t.Errorf("falloff wind = %v, want (2,0,0)", wind)
	}
	if _, _, ok := v.ForcesAt(mgl32.Vec3{11, 0, 0}); ok {
		t.Errorf("outside point must report no forces")
	}
}

func TestVolume_RadialField(t *testing.T) {
	v := Volume{
		Shape:       ShapeSphere,
		HalfExtents: mgl32.Vec3{10, 0, 0},
		Gravity:     mgl32.Vec3{0, 0, -5},
		HasGravity:  true,
		Mode:        FieldRadial,
		Falloff0:    0.9,
	}
	g, _, ok := v.ForcesAt(mgl32.Vec3{0, 5, 0})
	if !ok || !vecNear(g, mgl32.Vec3{0, -5, 0}, 1e-5) {
		t.Fatalf("radial gravity = %v, want pull toward center (0,-5,0)", g)
	}
}

func TestVolume_RotatedField(t *testing.T) {
	v := Volume{
		Shape:       ShapeBox,
		Rotation:    mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1}),
		HalfExtents: mgl32.Vec3{10, 10, 10},
		Medium:      MediumAir,
		Flow:        mgl32.Vec3{1, 0, 0},
		Mode:        FieldRotated,
	}
	_, wind, _ := v.ForcesAt(mgl32.Vec3{})
	if !vecNear(wind, mgl32.Vec3{0, 1, 0}, 1e-5) {
		t.Fatalf("rotated wind = %v, want (0,1,0)", wind)
	}
}

func TestVolume_Coverage(t *testing.T) {
	v := Volume{
		Shape:       ShapeBox,
		HalfExtents: mgl32.Vec3{10, 10, 10},
		Medium:      MediumAir,
		Flow:        mgl32.Vec3{1, 0, 0},
		Mode:        FieldDirectional,
		Falloff0:    0.5,
	}

	cases := []struct {
		name   string
		region entity.AABB
		want   Coverage
	}{
		{"inside core", entity.AABBFromCenter(mgl32.Vec3{}, mgl32.Vec3{2, 2, 2}), CoverageUniform},
		{"reaches falloff", entity.AABBFromCenter(mgl32.Vec3{6, 0, 0}, mgl32.Vec3{2, 2, 2}), CoverageVaried},
		{"disjoint", entity.AABBFromCenter(mgl32.Vec3{30, 0, 0}, mgl32.Vec3{2, 2, 2}), CoverageNone},
		{"empty", entity.EmptyAABB(), CoverageNone},
	}
	for _, tc := range cases {
		if got := v.CoverageOf(tc.region); got != tc.want {
			t.Errorf("%s: coverage = %v, want %v", tc.name, got, tc.want)
		}
	}

	radial := v
	radial.Mode = FieldRadial
	if got := radial.CoverageOf(entity.AABBFromCenter(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1})); got != CoverageVaried {
		t.Errorf("radial field must never be uniform, got %v", got)
	}

	global := Volume{Shape: ShapeGlobal, HasGravity: true}
	if got := global.CoverageOf(entity.AABBFromCenter(mgl32.Vec3{1e4, 0, 0}, mgl32.Vec3{1, 1, 1})); got != CoverageUniform {
		t.Errorf("global volume coverage = %v, want uniform", got)
	}

	// Вода без сил однородна, пока регион внутри объема
	water := Volume{Shape: ShapeBox, HalfExtents: mgl32.Vec3{10, 10, 10}, Medium: MediumWater}
	if got := water.CoverageOf(entity.AABBFromCenter(mgl32.Vec3{5, 0, 0}, mgl32.Vec3{4, 4, 4})); got != CoverageUniform {
		t.Errorf("water coverage = %v, want uniform", got)
	}
}
