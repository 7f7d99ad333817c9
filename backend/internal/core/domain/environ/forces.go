package environ

import (
	"github.com/go-gl/mathgl/mgl32"

	"x-fields/backend/internal/core/domain/entity"
)

// EnvFlags набор каналов окружения: силы, вода и категории столкновений
type EnvFlags uint32

const (
	EnvGravity EnvFlags = 1 << iota
	EnvWind
	EnvWater
	EnvTerrain
	EnvStaticEnt
	EnvDynamicEnt

	// envLoaded помечает снимок, для которого уже выполнен опрос областей
	envLoaded EnvFlags = 1 << 31
)

const (
	// EnvForces каналы сил, которые вычисляются по областям
	EnvForces = EnvGravity | EnvWind
	// EnvPhysAreas все каналы, которые дают физические области
	EnvPhysAreas = EnvGravity | EnvWind | EnvWater
	// EnvCollidePhysics столкновения с телами физики
	EnvCollidePhysics = EnvStaticEnt | EnvDynamicEnt
	// EnvCollision все категории столкновений
	EnvCollision = EnvTerrain | EnvCollidePhysics
)

// ForceSample сводные силы окружения в точке
type ForceSample struct {
	Accel      mgl32.Vec3
	Wind       mgl32.Vec3
	WaterPlane entity.Plane
}

// ZeroForces возвращает нулевые силы и плоскость "воды нет"
func ZeroForces() ForceSample {
	return ForceSample{WaterPlane: entity.NoWaterPlane()}
}

// Add добавляет силы other по маске. Гравитация перезаписывается
// (действует последняя), ветер складывается, плоскость воды копируется.
// Каналы вне маски не меняются.
func (f *ForceSample) Add(other ForceSample, mask EnvFlags) {
	if mask&EnvGravity != 0 {
		f.Accel = other.Accel
	}
	if mask&EnvWind != 0 {
		f.Wind = f.Wind.Add(other.Wind)
	}
	if mask&EnvWater != 0 {
		f.WaterPlane = other.WaterPlane
	}
}

