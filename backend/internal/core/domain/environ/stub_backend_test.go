package environ

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"x-fields/backend/internal/core/domain/entity"
	"x-fields/backend/internal/core/port/out/physics"
)

// stubArea объем синтетического бэкенда с известным аналитическим затуханием
type stubArea struct {
	params  physics.AreaParams
	pose    physics.AreaPose
	foreign physics.ForeignData
	status  physics.StatusKind

	paramsFail bool
	poseFail   bool
}

// stubBackend синтетический бэкенд для тестов окружения
type stubBackend struct {
	order []physics.AreaID
	areas map[physics.AreaID]*stubArea

	degraded   bool
	gravity    mgl32.Vec3
	wind       mgl32.Vec3
	hasWind    bool
	localWind  mgl32.Vec3
	hasLocal   bool
	hasTerrain bool

	terrainRay func(start, move mgl32.Vec3) (physics.RayHit, bool)
	worldRay   func(start, move mgl32.Vec3, mask physics.EntityMask) (physics.RayHit, bool)
	entityRay  func(id physics.EntityID, start, move mgl32.Vec3) (physics.RayHit, bool)

	// statusFor переопределяет статус области для региона
	statusFor func(id physics.AreaID, region entity.AABB) physics.StatusKind

	revision   uint64
	poseCalls  int
	forceCalls int
	worldMoves []mgl32.Vec3
	worldMasks []physics.EntityMask
}

func newStubBackend() *stubBackend {
	return &stubBackend{
		areas:   make(map[physics.AreaID]*stubArea),
		gravity: mgl32.Vec3{0, 0, -9.81},
	}
}

func (b *stubBackend) add(id physics.AreaID, a *stubArea) *stubArea {
	if a.pose.Orientation == (mgl32.Quat{}) {
		a.pose.Orientation = mgl32.QuatIdent()
	}
	if a.pose.Bounds == (entity.AABB{}) {
		a.pose.Bounds = worldAABBOf(a)
	}
	b.order = append(b.order, id)
	b.areas[id] = a
	return a
}

// worldAABBOf вычисляет мировой бокс повернутой геометрии по углам
func worldAABBOf(a *stubArea) entity.AABB {
	half := a.params.HalfExtents
	local := entity.AABBFromCenter(mgl32.Vec3{}, half)
	box := entity.EmptyAABB()
	for _, c := range local.Corners() {
		box = box.Extend(a.pose.Position.Add(a.pose.Orientation.Rotate(c)))
	}
	return box
}

func boxArea(pos, half mgl32.Vec3, gravity mgl32.Vec3, mode physics.FieldMode, falloff0 float32) *stubArea {
	return &stubArea{
		params: physics.AreaParams{
			Gravity:     gravity,
			HasGravity:  true,
			Mode:        mode,
			Falloff0:    falloff0,
			Geometry:    physics.GeometryBox,
			HalfExtents: half,
		},
		pose:   physics.AreaPose{Position: pos},
		status: physics.StatusNonUniform,
	}
}

func sphereArea(pos mgl32.Vec3, radius float32, gravity mgl32.Vec3, mode physics.FieldMode, falloff0 float32) *stubArea {
	return &stubArea{
		params: physics.AreaParams{
			Gravity:     gravity,
			HasGravity:  true,
			Mode:        mode,
			Falloff0:    falloff0,
			Geometry:    physics.GeometrySphere,
			HalfExtents: mgl32.Vec3{radius, radius, radius},
		},
		pose:   physics.AreaPose{Position: pos},
		status: physics.StatusNonUniform,
	}
}

func windArea(pos, half, flow mgl32.Vec3, mode physics.FieldMode, falloff0 float32) *stubArea {
	return &stubArea{
		params: physics.AreaParams{
			Medium:      physics.MediumAir,
			Flow:        flow,
			Mode:        mode,
			Falloff0:    falloff0,
			Geometry:    physics.GeometryBox,
			HalfExtents: half,
		},
		pose:   physics.AreaPose{Position: pos},
		status: physics.StatusNonUniform,
	}
}

func waterArea(pos, half mgl32.Vec3, level float32) *stubArea {
	return &stubArea{
		params: physics.AreaParams{
			Medium:      physics.MediumWater,
			WaterPlane:  entity.PlaneFromPoint(mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 0, level}),
			Geometry:    physics.GeometryBox,
			HalfExtents: half,
		},
		pose:   physics.AreaPose{Position: pos},
		status: physics.StatusNonUniform,
	}
}

func (b *stubBackend) Areas() ([]physics.AreaID, bool) {
	if b.degraded {
		return nil, false
	}
	return append([]physics.AreaID(nil), b.order...), true
}

func (b *stubBackend) AreaParams(id physics.AreaID) (physics.AreaParams, bool) {
	a, ok := b.areas[id]
	if !ok || a.paramsFail {
		return physics.AreaParams{}, false
	}
	return a.params, true
}

func (b *stubBackend) AreaStatus(id physics.AreaID, region entity.AABB) physics.AreaStatus {
	a, ok := b.areas[id]
	if !ok {
		return physics.AreaStatus{}
	}
	if b.statusFor != nil {
		return physics.AreaStatus{Kind: b.statusFor(id, region), Revision: b.revision}
	}
	if !a.pose.Bounds.Intersects(region) {
		return physics.AreaStatus{Kind: physics.StatusNone, Revision: b.revision}
	}
	return physics.AreaStatus{Kind: a.status, Revision: b.revision}
}

func (b *stubBackend) AreaPose(id physics.AreaID) (physics.AreaPose, bool) {
	b.poseCalls++
	a, ok := b.areas[id]
	if !ok || a.poseFail {
		return physics.AreaPose{}, false
	}
	return a.pose, true
}

func (b *stubBackend) AreaForeignData(id physics.AreaID) (physics.ForeignData, bool) {
	a, ok := b.areas[id]
	if !ok {
		return physics.ForeignData{}, false
	}
	return a.foreign, true
}

// localDistance нормированное расстояние точки от центра объема
func (a *stubArea) localDistance(pos mgl32.Vec3) (float32, mgl32.Vec3) {
	rel := pos.Sub(a.pose.Position)
	local := a.pose.Orientation.Inverse().Rotate(rel)
	half := a.params.HalfExtents
	local = mgl32.Vec3{local.X() / half.X(), local.Y() / half.Y(), local.Z() / half.Z()}
	if local.LenSqr() == 0 {
		return 0, rel
	}
	if a.params.Geometry == physics.GeometryBox {
		return float32(math.Max(math.Max(math.Abs(float64(local.X())), math.Abs(float64(local.Y()))),
			math.Abs(float64(local.Z())))), rel
	}
	return local.Len(), rel
}

func (b *stubBackend) AreaForcesAt(id physics.AreaID, pos mgl32.Vec3) (physics.ForceValues, bool) {
	b.forceCalls++
	a, ok := b.areas[id]
	if !ok {
		return physics.ForceValues{}, false
	}
	d, rel := a.localDistance(pos)
	if d > 1 {
		return physics.ForceValues{}, false
	}
	strength := float32(math.Min(float64((1-d)*falloffScale(a.params.Falloff0)), 1))

	gravity, flow := a.params.Gravity, a.params.Flow
	if a.params.Mode == physics.FieldRotated {
		gravity = a.pose.Orientation.Rotate(gravity)
		flow = a.pose.Orientation.Rotate(flow)
	}
	if a.params.Mode == physics.FieldRadial && d > 0 {
		dir := rel.Normalize()
		gravity = dir.Mul(gravity.Z())
		flow = dir.Mul(flow.Z())
	}

	return physics.ForceValues{
		Gravity:    gravity.Mul(strength),
		HasGravity: a.params.HasGravity,
		Wind:       flow.Mul(strength),
		HasWind:    a.params.Medium == physics.MediumAir,
	}, true
}

func (b *stubBackend) AreaContainsPoint(id physics.AreaID, pos mgl32.Vec3) bool {
	a, ok := b.areas[id]
	if !ok {
		return false
	}
	d, _ := a.localDistance(pos)
	return d <= 1
}

func (b *stubBackend) WorldBounds() entity.AABB {
	return entity.NewAABB(mgl32.Vec3{-1000, -1000, -1000}, mgl32.Vec3{1000, 1000, 1000})
}

func (b *stubBackend) GlobalGravity() mgl32.Vec3 { return b.gravity }

func (b *stubBackend) GlobalWind() (mgl32.Vec3, bool) { return b.wind, b.hasWind }

func (b *stubBackend) LocalWind(entity.AABB) (mgl32.Vec3, bool) { return b.localWind, b.hasLocal }

func (b *stubBackend) HasTerrain() bool { return b.hasTerrain }

func (b *stubBackend) RayTraceTerrain(start, move mgl32.Vec3) (physics.RayHit, bool) {
	if b.terrainRay == nil {
		return physics.RayHit{}, false
	}
	return b.terrainRay(start, move)
}

func (b *stubBackend) RayTraceEntity(id physics.EntityID, start, move mgl32.Vec3) (physics.RayHit, bool) {
	if b.entityRay == nil {
		return physics.RayHit{}, false
	}
	return b.entityRay(id, start, move)
}

func (b *stubBackend) RayWorldIntersection(start, move mgl32.Vec3, mask physics.EntityMask) (physics.RayHit, bool) {
	b.worldMoves = append(b.worldMoves, move)
	b.worldMasks = append(b.worldMasks, mask)
	if b.worldRay == nil {
		return physics.RayHit{}, false
	}
	return b.worldRay(start, move, mask)
}

// planeRay трассирует луч против плоскости n·p + d = 0
func planeRay(plane entity.Plane, surface int) func(start, move mgl32.Vec3) (physics.RayHit, bool) {
	return func(start, move mgl32.Vec3) (physics.RayHit, bool) {
		denom := plane.Normal.Dot(move)
		if denom == 0 {
			return physics.RayHit{}, false
		}
		t := -plane.Distance(start) / denom
		if t < 0 || t > 1 {
			return physics.RayHit{}, false
		}
		return physics.RayHit{
			Dist:      t * move.Len(),
			Point:     start.Add(move.Mul(t)),
			Normal:    plane.Normal,
			SurfaceID: surface,
		}, true
	}
}
