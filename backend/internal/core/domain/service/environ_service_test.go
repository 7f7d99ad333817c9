package service

import (
	"bytes"
	"log"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	adapterPhysics "x-fields/backend/internal/adapter/out/physics"
	"x-fields/backend/internal/core/domain/entity"
	"x-fields/backend/internal/core/domain/environ"
	"x-fields/backend/internal/core/port/out/physics"
	"x-fields/backend/internal/world"
)

func vecNear(a, b mgl32.Vec3) bool {
	for i := 0; i < 3; i++ {
		if math.Abs(float64(a[i]-b[i])) > 1e-4 {
			return false
		}
	}
	return true
}

func newServiceWorld(t *testing.T) *world.Manager {
	t.Helper()
	m := world.NewManager(log.New(&bytes.Buffer{}, "", 0))
	volumes := []world.Volume{
		{
			ID:         "ambient",
			Shape:      world.ShapeGlobal,
			Gravity:    mgl32.Vec3{0, 0, -10},
			HasGravity: true,
			Mode:       world.FieldDirectional,
		},
		{
			ID:          "breeze",
			Shape:       world.ShapeBox,
			HalfExtents: mgl32.Vec3{5, 5, 5},
			Medium:      world.MediumAir,
			Flow:        mgl32.Vec3{1, 0, 0},
			Mode:        world.FieldDirectional,
		},
		{
			ID:          "porch",
			Shape:       world.ShapeBox,
			Position:    mgl32.Vec3{20, 0, 0},
			HalfExtents: mgl32.Vec3{5, 5, 5},
			Medium:      world.MediumAir,
			Flow:        mgl32.Vec3{0, 2, 0},
			Mode:        world.FieldDirectional,
			Falloff0:    0.9,
			OutdoorOnly: true,
		},
	}
	for _, v := range volumes {
		if err := m.AddVolume(v); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.AddBody(world.Body{ID: "wall", Kind: world.BodyStatic, Shape: world.ShapeBox,
		Position: mgl32.Vec3{0, -20, 0}, HalfExtents: mgl32.Vec3{1, 1, 1}, SurfaceID: 4}); err != nil {
		t.Fatal(err)
	}
	return m
}

func newTestService(t *testing.T, m *world.Manager, refreshTicks int) *EnvironService {
	t.Helper()
	return NewEnvironService(adapterPhysics.NewWorldAreaAdapter(m), refreshTicks, true, nil,
		log.New(&bytes.Buffer{}, "", 0))
}

func TestEnvironService_RefreshSchedule(t *testing.T) {
	svc := newTestService(t, newServiceWorld(t), 5)

	if !svc.Tick(0) {
		t.Fatalf("first tick must refresh the world snapshot")
	}
	for tick := uint64(1); tick < 5; tick++ {
		if svc.Tick(tick) {
			t.Fatalf("tick %d must not refresh", tick)
		}
	}
	if !svc.Tick(5) {
		t.Fatalf("tick 5 must refresh")
	}

	stats := svc.Stats()
	if stats.Refreshes != 2 || stats.RefreshedTick != 5 {
		t.Errorf("stats = %+v", stats)
	}
	// breeze и porch неоднородны в пределах мира, ambient однороден
	if stats.Areas != 2 {
		t.Errorf("cached areas = %d, want 2", stats.Areas)
	}
}

func TestEnvironService_Currency(t *testing.T) {
	svc := newTestService(t, newServiceWorld(t), 10)

	svc.Tick(0)
	if !svc.IsCurrent() {
		t.Fatalf("snapshot must be current on the refresh tick")
	}

	svc.Tick(1)
	if svc.IsCurrent() {
		t.Errorf("snapshot must not be current after the refresh tick")
	}

	svc.MarkAreasChanged()
	if !svc.Tick(2) {
		t.Fatalf("changed areas must force a refresh")
	}
	if !svc.IsCurrent() {
		t.Errorf("snapshot must be current after the forced refresh")
	}
}

func TestEnvironService_WorldChangeListener(t *testing.T) {
	m := newServiceWorld(t)
	svc := newTestService(t, m, 100)
	m.OnChange(func(kind world.ChangeKind, id string) {
		if kind == world.ChangeVolume {
			svc.MarkAreasChanged()
		}
	})

	svc.Tick(0)
	m.MoveVolume("breeze", mgl32.Vec3{50, 50, 0}, mgl32.QuatIdent())
	if svc.IsCurrent() {
		t.Fatalf("moving a volume must mark the snapshot stale")
	}
	if !svc.Tick(1) {
		t.Fatalf("stale snapshot must refresh on the next tick")
	}

	got := svc.SampleAt(nil, mgl32.Vec3{50, 50, 0}, environ.EnvForces)
	if !vecNear(got.Wind, mgl32.Vec3{1, 0, 0}) {
		t.Errorf("wind at moved breeze = %v", got.Wind)
	}
}

func TestEnvironService_StalePositionsRequery(t *testing.T) {
	m := newServiceWorld(t)
	svc := newTestService(t, m, 100)

	svc.Tick(0)
	m.MoveVolume("breeze", mgl32.Vec3{50, 50, 0}, mgl32.QuatIdent())
	svc.Tick(1)

	// Без уведомления снимок не перестроен, но позиция объема берется заново
	got := svc.SampleAt(nil, mgl32.Vec3{50, 50, 0}, environ.EnvForces)
	if !vecNear(got.Wind, mgl32.Vec3{1, 0, 0}) {
		t.Errorf("wind at moved breeze = %v, want (1,0,0)", got.Wind)
	}
	if old := svc.SampleAt(nil, mgl32.Vec3{}, environ.EnvForces); !vecNear(old.Wind, mgl32.Vec3{}) {
		t.Errorf("wind at old breeze position = %v, want zero", old.Wind)
	}
}

func TestEnvironService_SampleWorldAndLocal(t *testing.T) {
	svc := newTestService(t, newServiceWorld(t), 10)
	svc.Tick(0)

	got := svc.SampleAt(nil, mgl32.Vec3{}, environ.EnvForces)
	if !vecNear(got.Accel, mgl32.Vec3{0, 0, -10}) || !vecNear(got.Wind, mgl32.Vec3{1, 0, 0}) {
		t.Fatalf("world sample = %+v", got)
	}

	local := svc.NewLocal()
	box := entity.AABBFromCenter(mgl32.Vec3{20, 0, 0}, mgl32.Vec3{1, 1, 1})

	svc.RefreshLocal(local, box, false, environ.EnvPhysAreas, physics.NoEntity)
	if len(local.Areas()) != 0 {
		t.Errorf("porch must fold into uniform forces of the small box")
	}
	outdoor := svc.SampleAt(local, mgl32.Vec3{20, 0, 0}, environ.EnvForces)
	if !vecNear(outdoor.Wind, mgl32.Vec3{0, 2, 0}) || !vecNear(outdoor.Accel, mgl32.Vec3{0, 0, -10}) {
		t.Errorf("outdoor local sample = %+v", outdoor)
	}

	svc.RefreshLocal(local, box, true, environ.EnvPhysAreas, physics.NoEntity)
	indoor := svc.SampleAt(local, mgl32.Vec3{20, 0, 0}, environ.EnvForces)
	if !vecNear(indoor.Wind, mgl32.Vec3{}) {
		t.Errorf("indoor local sample must skip the outdoor-only porch, got wind %v", indoor.Wind)
	}

	if _, dist := svc.WaterPlaneAt(local, mgl32.Vec3{20, 0, 0}); dist <= 0 {
		t.Errorf("dry world must report positive water distance, got %v", dist)
	}
}

func TestEnvironService_Collide(t *testing.T) {
	svc := newTestService(t, newServiceWorld(t), 10)
	svc.Tick(0)

	start, end := mgl32.Vec3{0, -10, 0}, mgl32.Vec3{0, -30, 0}
	hit, ok := svc.Collide(nil, start, end, 0.5, environ.EnvCollision, physics.NoEntity)
	if !ok {
		t.Fatalf("expected a hit on the wall")
	}
	if hit.Entity != "wall" || hit.SurfaceID != 4 {
		t.Errorf("hit = %+v", hit)
	}
	if math.Abs(float64(hit.Fraction-0.425)) > 1e-4 {
		t.Errorf("fraction = %v, want 0.425", hit.Fraction)
	}
	if !vecNear(hit.Point, mgl32.Vec3{0, -18.5, 0}) {
		t.Errorf("point = %v", hit.Point)
	}

	if _, ok := svc.Collide(nil, start, mgl32.Vec3{0, -12, 0}, 0.5, environ.EnvCollision, physics.NoEntity); ok {
		t.Errorf("short move must not reach the wall")
	}
}
