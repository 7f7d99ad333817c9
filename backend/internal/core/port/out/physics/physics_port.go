package physics

import (
	"github.com/go-gl/mathgl/mgl32"

	"x-fields/backend/internal/core/domain/entity"
)

// AreaID идентифицирует объем (область сил) в физическом мире.
// Кэш хранит его только как слабую ссылку: временем жизни объема владеет бэкенд.
type AreaID string

// EntityID идентифицирует физическую сущность (тело, владельца области)
type EntityID string

// NoEntity означает отсутствие сущности
const NoEntity EntityID = ""

// AreaBackend определяет интерфейс к физическому миру, поверх которого
// строится кэш окружения частиц. Все вызовы синхронные и работают в памяти,
// ошибки выражаются флагом ok.
type AreaBackend interface {
	// Areas перечисляет активные объемы. ok == false означает, что бэкенд
	// не умеет перечислять объемы (упрощенный режим: только глобальные силы).
	// Порядок стабилен в пределах одного вызова.
	Areas() (ids []AreaID, ok bool)

	// AreaParams возвращает параметры сил объема
	AreaParams(id AreaID) (AreaParams, bool)

	// AreaStatus сообщает, как объем действует в пределах региона
	AreaStatus(id AreaID, region entity.AABB) AreaStatus

	// AreaPose возвращает положение, ориентацию и мировые границы объема
	AreaPose(id AreaID) (AreaPose, bool)

	// AreaForeignData возвращает внешние пометки объема
	AreaForeignData(id AreaID) (ForeignData, bool)

	// AreaForcesAt точно вычисляет силы объема в точке (медленный путь)
	AreaForcesAt(id AreaID, pos mgl32.Vec3) (ForceValues, bool)

	// AreaContainsPoint проверяет, что точка лежит внутри объема
	AreaContainsPoint(id AreaID, pos mgl32.Vec3) bool

	// WorldBounds возвращает границы мира (по террейну)
	WorldBounds() entity.AABB

	// GlobalGravity возвращает глобальную гравитацию мира
	GlobalGravity() mgl32.Vec3

	// GlobalWind возвращает глобальный ветер, если бэкенд его моделирует
	GlobalWind() (mgl32.Vec3, bool)

	// LocalWind возвращает локальный ветер в боксе, если бэкенд его моделирует
	LocalWind(box entity.AABB) (mgl32.Vec3, bool)

	// HasTerrain сообщает, есть ли отдельный террейн для трассировки
	HasTerrain() bool

	// RayTraceTerrain трассирует луч start..start+move только по террейну
	RayTraceTerrain(start, move mgl32.Vec3) (RayHit, bool)

	// RayTraceEntity трассирует луч только по одной сущности
	RayTraceEntity(id EntityID, start, move mgl32.Vec3) (RayHit, bool)

	// RayWorldIntersection трассирует луч по всем категориям из маски
	RayWorldIntersection(start, move mgl32.Vec3, mask EntityMask) (RayHit, bool)
}

// Medium среда, которую задает объем через плавучесть
type Medium int

const (
	MediumNone Medium = iota
	MediumWater
	MediumAir
)

// FieldMode способ направления сил объема
type FieldMode int

const (
	// FieldRadial силы направлены от центра объема, величина берется из Z-компоненты
	FieldRadial FieldMode = iota
	// FieldDirectional силы заданы в мировых координатах
	FieldDirectional
	// FieldRotated силы заданы в локальных координатах объема
	FieldRotated
)

// GeometryKind форма объема
type GeometryKind int

const (
	GeometryNone GeometryKind = iota
	GeometryBox
	GeometrySphere
	GeometryOther
)

func (g GeometryKind) String() string {
	switch g {
	case GeometryBox:
		return "box"
	case GeometrySphere:
		return "sphere"
	case GeometryOther:
		return "other"
	default:
		return "none"
	}
}

// AreaParams параметры сил объема
type AreaParams struct {
	Gravity    mgl32.Vec3
	HasGravity bool

	Medium     Medium
	Flow       mgl32.Vec3   // скорость потока (ветер) для MediumAir
	WaterPlane entity.Plane // поверхность воды для MediumWater

	Mode     FieldMode
	Falloff0 float32 // доля радиуса, внутри которой сила не ослабевает

	Geometry    GeometryKind
	HalfExtents mgl32.Vec3 // половинные размеры геометрии в локальных осях (для сферы - радиус)
}

// StatusKind результат запроса статуса объема в регионе
type StatusKind int

const (
	StatusNone       StatusKind = iota // объем не действует в регионе
	StatusUniform                      // действует одинаково во всем регионе
	StatusNonUniform                   // действие меняется в пространстве
)

// AreaStatus статус объема в регионе
type AreaStatus struct {
	Kind     StatusKind
	Revision uint64 // ревизия состояния бэкенда на момент запроса
}

// AreaPose положение объема
type AreaPose struct {
	Position    mgl32.Vec3
	Orientation mgl32.Quat
	Bounds      entity.AABB // мировые границы
}

// ForeignData внешние пометки объема
type ForeignData struct {
	OutdoorOnly bool
	Owner       EntityID
}

// ForceValues силы объема в точке
type ForceValues struct {
	Gravity    mgl32.Vec3
	HasGravity bool
	Wind       mgl32.Vec3
	HasWind    bool
}

// EntityMask категории сущностей для трассировки
type EntityMask uint32

const (
	MaskTerrain EntityMask = 1 << iota
	MaskStatic
	MaskDynamic
)

// RayHit результат трассировки луча
type RayHit struct {
	Dist      float32 // расстояние от начала луча в мировых единицах
	Point     mgl32.Vec3
	Normal    mgl32.Vec3
	SurfaceID int
	Entity    EntityID
	Terrain   bool
}
