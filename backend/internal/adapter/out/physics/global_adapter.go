package physics

import (
	"github.com/go-gl/mathgl/mgl32"

	"x-fields/backend/internal/core/domain/entity"
	portPhysics "x-fields/backend/internal/core/port/out/physics"
	"x-fields/backend/internal/world"
)

// GlobalForcesAdapter упрощенный бэкенд: объемы не перечисляются, снимок
// получает только глобальную гравитацию и ветер из конфигурации мира плюс
// локальный ветер зон. Трассировки работают как в полном адаптере.
type GlobalForcesAdapter struct {
	world *world.Manager
}

var _ portPhysics.AreaBackend = (*GlobalForcesAdapter)(nil)

// NewGlobalForcesAdapter создает упрощенный адаптер поверх менеджера мира
func NewGlobalForcesAdapter(m *world.Manager) *GlobalForcesAdapter {
	return &GlobalForcesAdapter{world: m}
}

func (a *GlobalForcesAdapter) Areas() ([]portPhysics.AreaID, bool) {
	return nil, false
}

func (a *GlobalForcesAdapter) AreaParams(portPhysics.AreaID) (portPhysics.AreaParams, bool) {
	return portPhysics.AreaParams{}, false
}

func (a *GlobalForcesAdapter) AreaStatus(portPhysics.AreaID, entity.AABB) portPhysics.AreaStatus {
	return portPhysics.AreaStatus{Revision: a.world.Revision()}
}

func (a *GlobalForcesAdapter) AreaPose(portPhysics.AreaID) (portPhysics.AreaPose, bool) {
	return portPhysics.AreaPose{}, false
}

func (a *GlobalForcesAdapter) AreaForeignData(portPhysics.AreaID) (portPhysics.ForeignData, bool) {
	return portPhysics.ForeignData{}, false
}

func (a *GlobalForcesAdapter) AreaForcesAt(portPhysics.AreaID, mgl32.Vec3) (portPhysics.ForceValues, bool) {
	return portPhysics.ForceValues{}, false
}

func (a *GlobalForcesAdapter) AreaContainsPoint(portPhysics.AreaID, mgl32.Vec3) bool {
	return false
}

func (a *GlobalForcesAdapter) WorldBounds() entity.AABB {
	return a.world.Bounds()
}

func (a *GlobalForcesAdapter) GlobalGravity() mgl32.Vec3 {
	return world.GetWorldConfig().Gravity
}

func (a *GlobalForcesAdapter) GlobalWind() (mgl32.Vec3, bool) {
	cfg := world.GetWorldConfig()
	return cfg.Wind, cfg.WindEnabled
}

func (a *GlobalForcesAdapter) LocalWind(box entity.AABB) (mgl32.Vec3, bool) {
	return a.world.LocalWind(box)
}

func (a *GlobalForcesAdapter) HasTerrain() bool {
	return a.world.Terrain() != nil
}

func (a *GlobalForcesAdapter) RayTraceTerrain(start, move mgl32.Vec3) (portPhysics.RayHit, bool) {
	return traceTerrain(a.world, start, move)
}

func (a *GlobalForcesAdapter) RayTraceEntity(id portPhysics.EntityID, start, move mgl32.Vec3) (portPhysics.RayHit, bool) {
	return traceBody(a.world, id, start, move)
}

func (a *GlobalForcesAdapter) RayWorldIntersection(start, move mgl32.Vec3, mask portPhysics.EntityMask) (portPhysics.RayHit, bool) {
	return traceWorld(a.world, start, move, mask)
}
