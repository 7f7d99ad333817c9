package environment

import (
	"github.com/go-gl/mathgl/mgl32"

	"x-fields/backend/internal/core/domain/entity"
	"x-fields/backend/internal/core/domain/environ"
	"x-fields/backend/internal/core/port/out/physics"
)

// EnvironmentPort определяет интерфейс окружения для эмиттеров частиц и зондов.
// Параметр local - локальный снимок, полученный из NewLocal; nil означает мировой снимок.
type EnvironmentPort interface {
	// World возвращает мировой снимок. Использовать только из потока симуляции.
	World() *environ.Snapshot

	// NewLocal создает пустой локальный снимок поверх того же бэкенда
	NewLocal() *environ.Snapshot

	// RefreshLocal перестраивает локальный снимок по боксу из мирового
	RefreshLocal(local *environ.Snapshot, box entity.AABB, indoors bool, flags environ.EnvFlags, exclude physics.EntityID)

	// SampleAt возвращает силы окружения в точке
	SampleAt(local *environ.Snapshot, pos mgl32.Vec3, flags environ.EnvFlags) environ.ForceSample

	// WaterPlaneAt возвращает плоскость воды в точке и расстояние до нее
	WaterPlaneAt(local *environ.Snapshot, pos mgl32.Vec3) (entity.Plane, float32)

	// Collide ищет первое препятствие на пути частицы
	Collide(local *environ.Snapshot, start, end mgl32.Vec3, radius float32, flags environ.EnvFlags, target physics.EntityID) (environ.Hit, bool)

	// IsCurrent сообщает, актуален ли мировой снимок
	IsCurrent() bool

	// MarkAreasChanged помечает, что физические области изменились
	MarkAreasChanged()
}
