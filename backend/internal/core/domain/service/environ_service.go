package service

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"x-fields/backend/internal/core/domain/entity"
	"x-fields/backend/internal/core/domain/environ"
	"x-fields/backend/internal/core/port/in/environment"
	"x-fields/backend/internal/core/port/out/physics"
)

// EnvironStats состояние мирового снимка для зондов
type EnvironStats struct {
	Tick            uint64
	RefreshedTick   uint64
	Refreshes       uint64
	Areas           int
	NonUniformFlags environ.EnvFlags
	Current         bool
	Uniform         environ.ForceSample
}

// EnvironService владеет мировым снимком окружения: обновляет его по
// расписанию тиков и по изменению областей, раздает локальные снимки.
// Обновление и чтение снимков разделены RWMutex, поэтому запросы зондов
// можно выполнять из других горутин.
type EnvironService struct {
	mu       sync.RWMutex
	backend  physics.AreaBackend
	world    *environ.Snapshot
	recorder environ.Recorder
	logger   *log.Logger

	flags        environ.EnvFlags
	detailed     bool
	refreshTicks uint64

	tick          atomic.Uint64
	refreshedTick atomic.Uint64
	refreshes     atomic.Uint64
	dirty         atomic.Bool
}

var _ environment.EnvironmentPort = (*EnvironService)(nil)

// NewEnvironService создает сервис окружения. refreshTicks - период полного
// обновления мирового снимка, detailed - кэшировать неоднородные области.
func NewEnvironService(backend physics.AreaBackend, refreshTicks int, detailed bool,
	recorder environ.Recorder, logger *log.Logger) *EnvironService {

	if logger == nil {
		logger = log.Default()
	}
	if refreshTicks <= 0 {
		refreshTicks = 1
	}

	s := &EnvironService{
		backend:      backend,
		recorder:     recorder,
		logger:       logger,
		flags:        environ.EnvPhysAreas,
		detailed:     detailed,
		refreshTicks: uint64(refreshTicks),
	}
	s.world = environ.NewSnapshot(backend, s.snapshotOptions()...)
	s.dirty.Store(true)
	return s
}

func (s *EnvironService) snapshotOptions() []environ.Option {
	return []environ.Option{
		environ.WithCurrency(s.positionsCurrent),
		environ.WithRecorder(s.recorder),
	}
}

// positionsCurrent позиции областей считаются актуальными только в тик обновления
func (s *EnvironService) positionsCurrent() bool {
	return s.refreshedTick.Load() == s.tick.Load()
}

// Tick сообщает сервису номер текущего тика и при необходимости обновляет
// мировой снимок. Возвращает true, если снимок был перестроен.
func (s *EnvironService) Tick(tick uint64) bool {
	s.tick.Store(tick)

	due := tick-s.refreshedTick.Load() >= s.refreshTicks
	if !due && !s.dirty.Load() {
		return false
	}
	s.Refresh()
	return true
}

// Refresh немедленно перестраивает мировой снимок
func (s *EnvironService) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasDirty := s.dirty.Swap(false)
	before := len(s.world.Areas())

	s.world.RefreshFromWorld(s.flags, s.detailed)
	s.refreshedTick.Store(s.tick.Load())
	n := s.refreshes.Add(1)

	if after := len(s.world.Areas()); n == 1 || (wasDirty && after != before) {
		s.logger.Printf("[EnvironService] Снимок мира обновлен на тике %d: неоднородных областей %d",
			s.tick.Load(), after)
	}
}

// World возвращает мировой снимок
func (s *EnvironService) World() *environ.Snapshot {
	return s.world
}

// NewLocal создает локальный снимок с той же телеметрией и признаком актуальности
func (s *EnvironService) NewLocal() *environ.Snapshot {
	return environ.NewSnapshot(s.backend, s.snapshotOptions()...)
}

// RefreshLocal перестраивает локальный снимок по боксу
func (s *EnvironService) RefreshLocal(local *environ.Snapshot, box entity.AABB, indoors bool,
	flags environ.EnvFlags, exclude physics.EntityID) {

	s.mu.RLock()
	defer s.mu.RUnlock()

	local.RefreshFromParent(s.world, box, indoors, flags, s.detailed, exclude)
}

func (s *EnvironService) pick(local *environ.Snapshot) *environ.Snapshot {
	if local == nil {
		return s.world
	}
	return local
}

// SampleAt возвращает силы окружения в точке
func (s *EnvironService) SampleAt(local *environ.Snapshot, pos mgl32.Vec3, flags environ.EnvFlags) environ.ForceSample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.pick(local).EvaluateForcesAt(pos, flags)
}

// WaterPlaneAt возвращает плоскость воды в точке и расстояние до нее
func (s *EnvironService) WaterPlaneAt(local *environ.Snapshot, pos mgl32.Vec3) (entity.Plane, float32) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.pick(local).WaterPlaneAt(pos)
}

// Collide ищет первое препятствие на пути частицы
func (s *EnvironService) Collide(local *environ.Snapshot, start, end mgl32.Vec3, radius float32,
	flags environ.EnvFlags, target physics.EntityID) (environ.Hit, bool) {

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.pick(local).Collide(start, end, radius, flags, target)
}

// IsCurrent сообщает, актуален ли мировой снимок
func (s *EnvironService) IsCurrent() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.world.IsCurrent()
}

// MarkAreasChanged помечает снимок устаревшим; он будет перестроен на следующем тике
func (s *EnvironService) MarkAreasChanged() {
	s.dirty.Store(true)

	s.mu.Lock()
	s.world.OnPhysAreaChange()
	s.mu.Unlock()
}

// Stats возвращает состояние мирового снимка
func (s *EnvironService) Stats() EnvironStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return EnvironStats{
		Tick:            s.tick.Load(),
		RefreshedTick:   s.refreshedTick.Load(),
		Refreshes:       s.refreshes.Load(),
		Areas:           len(s.world.Areas()),
		NonUniformFlags: s.world.NonUniformFlags(),
		Current:         s.world.IsCurrent(),
		Uniform:         s.world.Uniform(),
	}
}
