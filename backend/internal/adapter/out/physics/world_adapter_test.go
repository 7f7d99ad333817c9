package physics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"x-fields/backend/internal/core/domain/entity"
	"x-fields/backend/internal/core/domain/environ"
	portPhysics "x-fields/backend/internal/core/port/out/physics"
	"x-fields/backend/internal/world"
)

func vecNear(a, b mgl32.Vec3, eps float64) bool {
	for i := 0; i < 3; i++ {
		if math.Abs(float64(a[i]-b[i])) > eps {
			return false
		}
	}
	return true
}

func newTestWorld(t *testing.T) *world.Manager {
	t.Helper()
	m := world.NewManager(nil)
	volumes := []world.Volume{
		{
			ID:          "gust",
			Shape:       world.ShapeBox,
			Position:    mgl32.Vec3{0, 0, 10},
			Rotation:    mgl32.QuatRotate(mgl32.DegToRad(35), mgl32.Vec3{0, 0, 1}),
			HalfExtents: mgl32.Vec3{8, 4, 6},
			Medium:      world.MediumAir,
			Flow:        mgl32.Vec3{3, 0, 1},
			Mode:        world.FieldRotated,
			Falloff0:    0.4,
		},
		{
			ID:          "well",
			Shape:       world.ShapeSphere,
			Position:    mgl32.Vec3{30, 0, 10},
			HalfExtents: mgl32.Vec3{10, 0, 0},
			Gravity:     mgl32.Vec3{0, 0, -15},
			HasGravity:  true,
			Mode:        world.FieldRadial,
			Falloff0:    0.3,
		},
		{
			ID:          "chimney",
			Shape:       world.ShapeCylinder,
			Position:    mgl32.Vec3{-30, 0, 10},
			HalfExtents: mgl32.Vec3{5, 0, 10},
			Medium:      world.MediumAir,
			Flow:        mgl32.Vec3{0, 0, 4},
			Mode:        world.FieldDirectional,
			Falloff0:    0.5,
		},
		{
			ID:          "pond",
			Shape:       world.ShapeBox,
			Position:    mgl32.Vec3{0, 40, -5},
			HalfExtents: mgl32.Vec3{10, 10, 8},
			Medium:      world.MediumWater,
			WaterLevel:  1,
		},
	}
	for _, v := range volumes {
		if err := m.AddVolume(v); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.AddBody(world.Body{ID: "crate", Kind: world.BodyStatic, Shape: world.ShapeBox,
		Position: mgl32.Vec3{0, -20, 2}, HalfExtents: mgl32.Vec3{2, 2, 2}, SurfaceID: 3}); err != nil {
		t.Fatal(err)
	}
	return m
}

// expectedAt суммирует силы объемов мира в точке напрямую
func expectedAt(m *world.Manager, p mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3) {
	var accel, wind mgl32.Vec3
	for _, v := range m.Volumes() {
		g, w, inside := v.ForcesAt(p)
		if !inside {
			continue
		}
		if v.HasGravity {
			accel = g
		}
		if v.Medium == world.MediumAir {
			wind = wind.Add(w)
		}
	}
	return accel, wind
}

func TestWorldAreaAdapter_SnapshotMatchesVolumes(t *testing.T) {
	m := newTestWorld(t)
	s := environ.NewSnapshot(NewWorldAreaAdapter(m))
	s.RefreshFromWorld(environ.EnvPhysAreas, true)

	if got := len(s.Areas()); got != 4 {
		t.Fatalf("cached areas = %d, want 4", got)
	}
	// Цилиндр вычисляется только медленным путем
	if s.NonCachedFlags()&environ.EnvWind == 0 {
		t.Errorf("cylinder volume must mark wind as non-cached")
	}

	for x := float32(-40); x <= 40; x += 3.5 {
		for z := float32(0); z <= 20; z += 2.5 {
			p := mgl32.Vec3{x, 1.5, z}
			got := s.EvaluateForcesAt(p, environ.EnvForces)
			accel, wind := expectedAt(m, p)
			if !vecNear(got.Accel, accel, 1e-3) || !vecNear(got.Wind, wind, 1e-3) {
				t.Fatalf("at %v: got accel %v wind %v, want %v %v", p, got.Accel, got.Wind, accel, wind)
			}
		}
	}
}

func TestWorldAreaAdapter_LocalSnapshotWater(t *testing.T) {
	m := newTestWorld(t)
	parent := environ.NewSnapshot(NewWorldAreaAdapter(m))
	parent.RefreshFromWorld(environ.EnvPhysAreas, true)

	child := environ.NewSnapshot(parent.Backend())

	// Бокс целиком под поверхностью пруда
	deep := entity.AABBFromCenter(mgl32.Vec3{0, 40, -5}, mgl32.Vec3{2, 2, 2})
	child.RefreshFromParent(parent, deep, false, environ.EnvPhysAreas, true, portPhysics.NoEntity)
	if child.Underwater() != entity.True {
		t.Errorf("deep box underwater = %v, want true", child.Underwater())
	}

	// Бокс пересекает поверхность
	surface := entity.AABBFromCenter(mgl32.Vec3{0, 40, 1}, mgl32.Vec3{2, 2, 2})
	child.RefreshFromParent(parent, surface, false, environ.EnvPhysAreas, true, portPhysics.NoEntity)
	if child.Underwater() != entity.Unknown {
		t.Errorf("surface box underwater = %v, want unknown", child.Underwater())
	}
	plane, dist := child.WaterPlaneAt(mgl32.Vec3{0, 40, 0})
	if !vecNear(plane.Normal, mgl32.Vec3{0, 0, 1}, 1e-6) || math.Abs(float64(dist+1)) > 1e-5 {
		t.Errorf("water plane = %+v dist %v, want pond surface 1m above", plane, dist)
	}

	// Вдали от пруда воды нет
	dry := entity.AABBFromCenter(mgl32.Vec3{0, -40, 1}, mgl32.Vec3{2, 2, 2})
	child.RefreshFromParent(parent, dry, false, environ.EnvPhysAreas, true, portPhysics.NoEntity)
	if child.Underwater() != entity.False {
		t.Errorf("dry box underwater = %v, want false", child.Underwater())
	}
}

func TestWorldAreaAdapter_Collide(t *testing.T) {
	m := newTestWorld(t)
	s := environ.NewSnapshot(NewWorldAreaAdapter(m))
	s.RefreshFromWorld(environ.EnvPhysAreas, true)

	start, end := mgl32.Vec3{0, -20, 20}, mgl32.Vec3{0, -20, 0}
	hit, ok := s.Collide(start, end, 0.5, environ.EnvCollision, portPhysics.NoEntity)
	if !ok || hit.Entity != "crate" || hit.SurfaceID != 3 {
		t.Fatalf("expected crate hit, got %+v ok=%v", hit, ok)
	}
	// Верх ящика на z=4, частица радиуса 0.5 останавливается на 4.5
	if stop := hit.Position(start, end); !vecNear(stop, mgl32.Vec3{0, -20, 4.5}, 1e-4) {
		t.Errorf("stop = %v, want (0,-20,4.5)", stop)
	}
}

func TestGlobalForcesAdapter_Degraded(t *testing.T) {
	saved := world.GetWorldConfig()
	defer world.SetWorldConfig(saved)
	world.SetWorldConfig(world.WorldPhysicsConfig{
		Gravity:     mgl32.Vec3{0, 0, -3},
		Wind:        mgl32.Vec3{1, 0, 0},
		WindEnabled: true,
	})

	m := newTestWorld(t)
	m.AddWindZone(world.WindZone{ID: "z", Min: mgl32.Vec3{-5, -5, -5}, Max: mgl32.Vec3{5, 5, 5}, Wind: mgl32.Vec3{0, 2, 0}})

	parent := environ.NewSnapshot(NewGlobalForcesAdapter(m))
	parent.RefreshFromWorld(environ.EnvPhysAreas, true)
	if len(parent.Areas()) != 0 {
		t.Fatalf("degraded backend must not cache areas")
	}
	if parent.Uniform().Accel != (mgl32.Vec3{0, 0, -3}) || parent.Uniform().Wind != (mgl32.Vec3{1, 0, 0}) {
		t.Fatalf("uniform = %+v, want global config forces", parent.Uniform())
	}

	child := environ.NewSnapshot(parent.Backend())
	child.RefreshFromParent(parent, entity.AABBFromCenter(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}), false,
		environ.EnvPhysAreas, true, portPhysics.NoEntity)
	if child.Uniform().Wind != (mgl32.Vec3{1, 2, 0}) {
		t.Errorf("local wind = %v, want global plus zone (1,2,0)", child.Uniform().Wind)
	}

	indoor := environ.NewSnapshot(parent.Backend())
	indoor.RefreshFromParent(parent, entity.AABBFromCenter(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}), true,
		environ.EnvPhysAreas, true, portPhysics.NoEntity)
	if indoor.Uniform().Wind != (mgl32.Vec3{}) {
		t.Errorf("indoor wind = %v, want none", indoor.Uniform().Wind)
	}
}
