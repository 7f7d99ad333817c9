package physics

import (
	"github.com/go-gl/mathgl/mgl32"

	"x-fields/backend/internal/core/domain/entity"
	portPhysics "x-fields/backend/internal/core/port/out/physics"
	"x-fields/backend/internal/world"
)

// WorldAreaAdapter отдает объемы, тела и террейн менеджера мира через
// порт физических областей. Локальный ветер не моделируется.
type WorldAreaAdapter struct {
	world *world.Manager
}

var _ portPhysics.AreaBackend = (*WorldAreaAdapter)(nil)

// NewWorldAreaAdapter создает адаптер поверх менеджера мира
func NewWorldAreaAdapter(m *world.Manager) *WorldAreaAdapter {
	return &WorldAreaAdapter{world: m}
}

// World возвращает менеджер мира адаптера
func (a *WorldAreaAdapter) World() *world.Manager {
	return a.world
}

func (a *WorldAreaAdapter) Areas() ([]portPhysics.AreaID, bool) {
	ids := a.world.VolumeIDs()
	result := make([]portPhysics.AreaID, len(ids))
	for i, id := range ids {
		result[i] = portPhysics.AreaID(id)
	}
	return result, true
}

func (a *WorldAreaAdapter) AreaParams(id portPhysics.AreaID) (portPhysics.AreaParams, bool) {
	v, ok := a.world.Volume(string(id))
	if !ok {
		return portPhysics.AreaParams{}, false
	}
	return volumeParams(v), true
}

// volumeParams переводит объем мира в параметры порта
func volumeParams(v world.Volume) portPhysics.AreaParams {
	params := portPhysics.AreaParams{
		Gravity:     v.Gravity,
		HasGravity:  v.HasGravity,
		Flow:        v.Flow,
		WaterPlane:  entity.NoWaterPlane(),
		Falloff0:    v.Falloff0,
		HalfExtents: v.GeometryHalf(),
	}

	switch v.Medium {
	case world.MediumWater:
		params.Medium = portPhysics.MediumWater
		params.WaterPlane = v.WaterPlane()
	case world.MediumAir:
		params.Medium = portPhysics.MediumAir
	}

	switch v.Mode {
	case world.FieldDirectional:
		params.Mode = portPhysics.FieldDirectional
	case world.FieldRotated:
		params.Mode = portPhysics.FieldRotated
	default:
		params.Mode = portPhysics.FieldRadial
	}

	switch v.Shape {
	case world.ShapeBox:
		params.Geometry = portPhysics.GeometryBox
	case world.ShapeSphere:
		params.Geometry = portPhysics.GeometrySphere
	case world.ShapeCylinder:
		params.Geometry = portPhysics.GeometryOther
	default:
		params.Geometry = portPhysics.GeometryNone
	}

	return params
}

func (a *WorldAreaAdapter) AreaStatus(id portPhysics.AreaID, region entity.AABB) portPhysics.AreaStatus {
	status := portPhysics.AreaStatus{Revision: a.world.Revision()}
	v, ok := a.world.Volume(string(id))
	if !ok {
		return status
	}

	switch v.CoverageOf(region) {
	case world.CoverageUniform:
		status.Kind = portPhysics.StatusUniform
	case world.CoverageVaried:
		status.Kind = portPhysics.StatusNonUniform
	}
	return status
}

func (a *WorldAreaAdapter) AreaPose(id portPhysics.AreaID) (portPhysics.AreaPose, bool) {
	v, ok := a.world.Volume(string(id))
	if !ok {
		return portPhysics.AreaPose{}, false
	}

	rotation := v.Rotation
	if rotation == (mgl32.Quat{}) {
		rotation = mgl32.QuatIdent()
	}
	return portPhysics.AreaPose{
		Position:    v.Position,
		Orientation: rotation.Normalize(),
		Bounds:      v.Bounds(),
	}, true
}

func (a *WorldAreaAdapter) AreaForeignData(id portPhysics.AreaID) (portPhysics.ForeignData, bool) {
	v, ok := a.world.Volume(string(id))
	if !ok {
		return portPhysics.ForeignData{}, false
	}
	return portPhysics.ForeignData{
		OutdoorOnly: v.OutdoorOnly,
		Owner:       portPhysics.EntityID(v.Owner),
	}, true
}

func (a *WorldAreaAdapter) AreaForcesAt(id portPhysics.AreaID, pos mgl32.Vec3) (portPhysics.ForceValues, bool) {
	v, ok := a.world.Volume(string(id))
	if !ok {
		return portPhysics.ForceValues{}, false
	}
	gravity, wind, inside := v.ForcesAt(pos)
	if !inside {
		return portPhysics.ForceValues{}, false
	}
	return portPhysics.ForceValues{
		Gravity:    gravity,
		HasGravity: v.HasGravity,
		Wind:       wind,
		HasWind:    v.Medium == world.MediumAir,
	}, true
}

func (a *WorldAreaAdapter) AreaContainsPoint(id portPhysics.AreaID, pos mgl32.Vec3) bool {
	v, ok := a.world.Volume(string(id))
	return ok && v.Contains(pos)
}

func (a *WorldAreaAdapter) WorldBounds() entity.AABB {
	return a.world.Bounds()
}

func (a *WorldAreaAdapter) GlobalGravity() mgl32.Vec3 {
	return world.GetWorldConfig().Gravity
}

func (a *WorldAreaAdapter) GlobalWind() (mgl32.Vec3, bool) {
	cfg := world.GetWorldConfig()
	return cfg.Wind, cfg.WindEnabled
}

// LocalWind не поддерживается: ветер задают только объемы
func (a *WorldAreaAdapter) LocalWind(entity.AABB) (mgl32.Vec3, bool) {
	return mgl32.Vec3{}, false
}

func (a *WorldAreaAdapter) HasTerrain() bool {
	return a.world.Terrain() != nil
}

func (a *WorldAreaAdapter) RayTraceTerrain(start, move mgl32.Vec3) (portPhysics.RayHit, bool) {
	return traceTerrain(a.world, start, move)
}

func (a *WorldAreaAdapter) RayTraceEntity(id portPhysics.EntityID, start, move mgl32.Vec3) (portPhysics.RayHit, bool) {
	return traceBody(a.world, id, start, move)
}

func (a *WorldAreaAdapter) RayWorldIntersection(start, move mgl32.Vec3, mask portPhysics.EntityMask) (portPhysics.RayHit, bool) {
	return traceWorld(a.world, start, move, mask)
}

// Трассировки общие для всех адаптеров поверх менеджера мира

func traceTerrain(m *world.Manager, start, move mgl32.Vec3) (portPhysics.RayHit, bool) {
	terrain := m.Terrain()
	if terrain == nil {
		return portPhysics.RayHit{}, false
	}
	hit, ok := terrain.RayTrace(start, move)
	if !ok {
		return portPhysics.RayHit{}, false
	}
	return portPhysics.RayHit{
		Dist:    hit.Dist,
		Point:   hit.Point,
		Normal:  hit.Normal,
		Terrain: true,
	}, true
}

func traceBody(m *world.Manager, id portPhysics.EntityID, start, move mgl32.Vec3) (portPhysics.RayHit, bool) {
	body, ok := m.Body(string(id))
	if !ok {
		return portPhysics.RayHit{}, false
	}
	hit, ok := body.RayCast(start, move)
	if !ok {
		return portPhysics.RayHit{}, false
	}
	return bodyRayHit(body, hit), true
}

func traceWorld(m *world.Manager, start, move mgl32.Vec3, mask portPhysics.EntityMask) (portPhysics.RayHit, bool) {
	var best portPhysics.RayHit
	found := false

	if mask&portPhysics.MaskTerrain != 0 {
		if hit, ok := traceTerrain(m, start, move); ok {
			best, found = hit, true
		}
	}

	static := mask&portPhysics.MaskStatic != 0
	dynamic := mask&portPhysics.MaskDynamic != 0
	if static || dynamic {
		if body, hit, ok := m.RayCastBodies(start, move, static, dynamic); ok && (!found || hit.Dist < best.Dist) {
			best, found = bodyRayHit(body, hit), true
		}
	}
	return best, found
}

func bodyRayHit(body world.Body, hit world.BodyHit) portPhysics.RayHit {
	return portPhysics.RayHit{
		Dist:      hit.Dist,
		Point:     hit.Point,
		Normal:    hit.Normal,
		SurfaceID: body.SurfaceID,
		Entity:    portPhysics.EntityID(body.ID),
	}
}
