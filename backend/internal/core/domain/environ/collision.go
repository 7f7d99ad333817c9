package environ

import (
	"github.com/go-gl/mathgl/mgl32"

	"x-fields/backend/internal/core/port/out/physics"
)

// Hit результат проверки столкновения движущейся частицы
type Hit struct {
	// Fraction доля пути от start до end, на которой частица (с учетом радиуса) упирается в препятствие
	Fraction  float32
	Point     mgl32.Vec3 // точка контакта, вынесенная по нормали на радиус частицы
	Normal    mgl32.Vec3
	SurfaceID int
	Entity    physics.EntityID
	Terrain   bool
}

// Position возвращает точку остановки частицы на отрезке start..end
func (h Hit) Position(start, end mgl32.Vec3) mgl32.Vec3 {
	return start.Add(end.Sub(start).Mul(h.Fraction))
}

// collisionMask переводит флаги окружения в маску категорий бэкенда
func collisionMask(flags EnvFlags) physics.EntityMask {
	var mask physics.EntityMask
	if flags&EnvTerrain != 0 {
		mask |= physics.MaskTerrain
	}
	if flags&EnvStaticEnt != 0 {
		mask |= physics.MaskStatic
	}
	if flags&EnvDynamicEnt != 0 {
		mask |= physics.MaskDynamic
	}
	return mask
}

// Collide ищет первое препятствие для частицы радиуса radius, движущейся
// из start в end. Сначала проверяется террейн (если он отдельный и нет
// целевой сущности), затем либо только target, либо все категории из
// envFlags одним лучом. Любой неудачный запрос к бэкенду считается промахом.
func (s *Snapshot) Collide(start, end mgl32.Vec3, radius float32, envFlags EnvFlags, target physics.EntityID) (Hit, bool) {
	move := end.Sub(start)
	moveLen := move.Len()
	if moveLen == 0 {
		return Hit{}, false
	}

	// Продлеваем луч на радиус частицы
	extLen := moveLen + radius
	extMove := move.Mul(extLen / moveLen)

	var best physics.RayHit
	found := false
	limit := extLen

	accept := func(rh physics.RayHit) bool {
		return rh.Normal.Dot(extMove) < 0
	}

	if envFlags&EnvTerrain != 0 && target == physics.NoEntity && s.backend.HasTerrain() {
		envFlags &^= EnvTerrain
		if rh, ok := s.backend.RayTraceTerrain(start, extMove); ok && accept(rh) {
			best, found = rh, true
			best.Terrain = true
			limit = rh.Dist
		}
	}

	if target != physics.NoEntity {
		if rh, ok := s.backend.RayTraceEntity(target, start, extMove); ok && accept(rh) {
			best, found = rh, true
		}
	} else if limit > 0 {
		if mask := collisionMask(envFlags); mask != 0 {
			ray := extMove.Mul(limit / extLen)
			if rh, ok := s.backend.RayWorldIntersection(start, ray, mask); ok && accept(rh) {
				best, found = rh, true
			}
		}
	}

	s.recorder.RecordCollision(found)
	if !found {
		return Hit{}, false
	}

	// Отступаем назад на радиус вдоль направления движения
	fraction := best.Dist / moveLen
	if moveNorm := -best.Normal.Dot(move); moveNorm > 0 {
		backoff := radius / moveNorm
		if backoff > 1 {
			backoff = 1
		}
		fraction -= backoff
	}

	return Hit{
		Fraction:  mgl32.Clamp(fraction, 0, 1),
		Point:     best.Point.Add(best.Normal.Mul(radius)),
		Normal:    best.Normal,
		SurfaceID: best.SurfaceID,
		Entity:    best.Entity,
		Terrain:   best.Terrain,
	}, true
}
