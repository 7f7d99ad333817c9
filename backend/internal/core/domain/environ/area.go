package environ

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"x-fields/backend/internal/core/domain/entity"
	"x-fields/backend/internal/core/port/out/physics"
)

// FalloffSentinel ограничивает масштаб затухания, когда falloff0 близок к 1
const FalloffSentinel float32 = 1e9

// minBasisDet минимальный детерминант преобразования в локальные оси
const minBasisDet = 1e-12

// CachedArea кэшированная запись неоднородного объема.
// Принадлежит снимку, который ее создал; дочерние снимки только заимствуют указатель.
type CachedArea struct {
	id    physics.AreaID
	owner *Snapshot

	flags       EnvFlags
	revision    uint64
	bounds      entity.AABB
	forces      ForceSample
	outdoorOnly bool
	ownerEntity physics.EntityID

	// Параметры быстрого аналитического вычисления, валидны при fastEval
	fastEval     bool
	geom         physics.GeometryKind
	radial       bool
	falloffScale float32
	center       mgl32.Vec3
	toLocal      mgl32.Mat3
}

// ID возвращает идентификатор объема в бэкенде
func (a *CachedArea) ID() physics.AreaID { return a.id }

// Flags возвращает каналы, которые дает объем
func (a *CachedArea) Flags() EnvFlags { return a.flags }

// Bounds возвращает мировые границы (для воды низ уходит в -inf)
func (a *CachedArea) Bounds() entity.AABB { return a.bounds }

// Forces возвращает номинальные силы объема
func (a *CachedArea) Forces() ForceSample { return a.forces }

// OutdoorOnly сообщает, что объем действует только снаружи помещений
func (a *CachedArea) OutdoorOnly() bool { return a.outdoorOnly }

// OwnerEntity возвращает сущность-владельца объема
func (a *CachedArea) OwnerEntity() physics.EntityID { return a.ownerEntity }

// Revision возвращает ревизию бэкенда на момент кэширования
func (a *CachedArea) Revision() uint64 { return a.revision }

// FastEval сообщает, доступен ли быстрый путь
func (a *CachedArea) FastEval() bool { return a.fastEval }

func (a *CachedArea) backend() physics.AreaBackend {
	return a.owner.backend
}

// falloffScale возвращает 1/(1-falloff0) с насыщением до FalloffSentinel
func falloffScale(falloff0 float32) float32 {
	den := 1 - falloff0
	if den <= 0 || den*FalloffSentinel <= 1 {
		return FalloffSentinel
	}
	return 1 / den
}

// setupFastEval пытается подготовить аналитическое вычисление сил.
// Подходят только объемы с гравитацией или ветром в форме бокса или сферы.
func (a *CachedArea) setupFastEval(params physics.AreaParams, pose physics.AreaPose) bool {
	a.fastEval = false
	if a.flags&EnvForces == 0 {
		return false
	}
	if params.Geometry != physics.GeometryBox && params.Geometry != physics.GeometrySphere {
		return false
	}

	half := params.HalfExtents
	if half.X() <= 0 || half.Y() <= 0 || half.Z() <= 0 {
		// Геометрия без размеров: берем мировые границы объема
		half = pose.Bounds.HalfSize()
	}

	// Преобразование мира в единичную сферу/куб: радиус 1 - граница объема
	basis := pose.Orientation.Normalize().Mat4().Mat3().Mul3(mgl32.Diag3(half))
	if math.Abs(float64(basis.Det())) < minBasisDet {
		return false
	}

	a.geom = params.Geometry
	a.radial = params.Mode == physics.FieldRadial
	a.falloffScale = falloffScale(params.Falloff0)
	a.center = pose.Position
	a.toLocal = basis.Inv()
	a.fastEval = true
	return true
}

// Evaluate добавляет вклад объема в точке pos к forces.
// Гравитация перезаписывается, ветер складывается, вода выбирается ближайшая.
func (a *CachedArea) Evaluate(forces *ForceSample, pos mgl32.Vec3, flags EnvFlags) {
	flags &= a.flags

	if flags&EnvForces != 0 {
		if !a.fastEval {
			a.evaluateBackend(forces, pos, flags)
		} else {
			a.evaluateCached(forces, pos, flags)
		}
	}

	if flags&EnvWater != 0 {
		a.WaterPlane(&forces.WaterPlane, pos, forces.WaterPlane.Distance(pos))
	}
}

// evaluateBackend медленный путь: спрашиваем бэкенд напрямую
func (a *CachedArea) evaluateBackend(forces *ForceSample, pos mgl32.Vec3, flags EnvFlags) {
	a.owner.recorder.RecordEvaluate(false)

	values, ok := a.backend().AreaForcesAt(a.id, pos)
	if !ok {
		return
	}
	if flags&EnvGravity != 0 && values.HasGravity {
		forces.Accel = values.Gravity
	}
	if flags&EnvWind != 0 && values.HasWind {
		forces.Wind = forces.Wind.Add(values.Wind)
	}
}

// evaluateCached быстрый путь по закэшированному затуханию
func (a *CachedArea) evaluateCached(forces *ForceSample, pos mgl32.Vec3, flags EnvFlags) {
	a.owner.recorder.RecordEvaluate(true)

	rel := pos.Sub(a.center)

	// Объем мог сдвинуться с момента кэширования
	if !a.owner.IsCurrent() {
		if pose, ok := a.backend().AreaPose(a.id); ok {
			rel = pos.Sub(pose.Position)
		}
	}

	dist := a.localDistance(a.toLocal.Mul3x1(rel))
	if dist > 1 {
		return
	}

	strength := (1 - dist) * a.falloffScale
	if strength > 1 {
		strength = 1
	}

	if a.radial && dist > 0 {
		// Радиальная сила: направление вдоль смещения, величина из Z-компоненты
		strength /= rel.Len()
		if flags&EnvGravity != 0 {
			forces.Accel = rel.Mul(a.forces.Accel.Z() * strength)
		}
		if flags&EnvWind != 0 {
			forces.Wind = forces.Wind.Add(rel.Mul(a.forces.Wind.Z() * strength))
		}
		return
	}

	if flags&EnvGravity != 0 {
		forces.Accel = a.forces.Accel.Mul(strength)
	}
	if flags&EnvWind != 0 {
		forces.Wind = forces.Wind.Add(a.forces.Wind.Mul(strength))
	}
}

// localDistance нормированное расстояние в локальных осях:
// для бокса норма L∞, для сферы евклидова
func (a *CachedArea) localDistance(local mgl32.Vec3) float32 {
	if local.LenSqr() == 0 {
		return 0
	}
	if a.geom == physics.GeometryBox {
		return float32(math.Max(math.Max(
			math.Abs(float64(local.X())),
			math.Abs(float64(local.Y()))),
			math.Abs(float64(local.Z()))))
	}
	return local.Len()
}

// WaterPlane подставляет плоскость воды объема в plane, если она ближе maxDist
// и проекция точки на плоскость лежит внутри объема. Возвращает новое лучшее расстояние.
func (a *CachedArea) WaterPlane(plane *entity.Plane, pos mgl32.Vec3, maxDist float32) float32 {
	dist := a.forces.WaterPlane.Distance(pos)
	if dist < maxDist {
		surface := pos.Sub(a.forces.WaterPlane.Normal.Mul(dist))
		if a.backend().AreaContainsPoint(a.id, surface) {
			*plane = a.forces.WaterPlane
			return dist
		}
	}
	return maxDist
}
