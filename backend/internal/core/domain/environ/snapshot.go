package environ

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"x-fields/backend/internal/core/domain/entity"
	"x-fields/backend/internal/core/port/out/physics"
)

// Snapshot материализованный набор сил окружения: однородные силы плюс
// список неоднородных областей. Снимок не потокобезопасен и используется
// из одного потока симуляции.
type Snapshot struct {
	backend  physics.AreaBackend
	currency func() bool
	recorder Recorder

	uniform         ForceSample
	underwater      entity.Trinary
	nonUniformFlags EnvFlags
	nonCachedFlags  EnvFlags
	areas           []*CachedArea

	// generation увеличивается при каждой очистке: по ней дочерние снимки
	// проверяют, что заимствованные области еще живы
	generation uint64
	parent     *Snapshot
	parentGen  uint64
}

// Option настраивает снимок
type Option func(*Snapshot)

// WithCurrency задает внешний признак актуальности закэшированных позиций
func WithCurrency(current func() bool) Option {
	return func(s *Snapshot) {
		s.currency = current
	}
}

// WithRecorder подключает счетчики телеметрии
func WithRecorder(r Recorder) Option {
	return func(s *Snapshot) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewSnapshot создает пустой снимок поверх бэкенда
func NewSnapshot(backend physics.AreaBackend, opts ...Option) *Snapshot {
	s := &Snapshot{
		backend:  backend,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Clear()
	return s
}

// Clear сбрасывает снимок в пустое состояние
func (s *Snapshot) Clear() {
	s.uniform = ZeroForces()
	s.underwater = entity.False
	s.nonUniformFlags = 0
	s.nonCachedFlags = 0
	for i := range s.areas {
		s.areas[i] = nil
	}
	s.areas = s.areas[:0]
	s.parent = nil
	s.parentGen = 0
	s.generation++
}

// Release очищает снимок и освобождает память списка областей
func (s *Snapshot) Release() {
	s.Clear()
	s.areas = nil
}

// OnPhysAreaChange требует повторного опроса областей: до следующего
// обновления снимок считается неактуальным
func (s *Snapshot) OnPhysAreaChange() {
	s.nonUniformFlags &^= envLoaded
}

// IsCurrent сообщает, актуальны ли закэшированные позиции областей
func (s *Snapshot) IsCurrent() bool {
	if s.nonUniformFlags&envLoaded == 0 {
		return false
	}
	return s.currency == nil || s.currency()
}

// RefreshFromWorld перестраивает снимок по всему физическому миру.
// Однородные области складываются в uniform, неоднородные кэшируются
// (при wantDetailed). Записи прошлого обновления переиспользуются по ID.
func (s *Snapshot) RefreshFromWorld(flags EnvFlags, wantDetailed bool) {
	recycled := make(map[physics.AreaID]*CachedArea, len(s.areas))
	for _, area := range s.areas {
		if area.owner == s {
			recycled[area.id] = area
		}
	}

	s.Clear()
	s.nonUniformFlags |= envLoaded

	ids, ok := s.backend.Areas()
	if !ok {
		// Бэкенд без перечисления областей: только глобальные силы
		s.uniform.Accel = s.backend.GlobalGravity()
		if wind, ok := s.backend.GlobalWind(); ok {
			s.uniform.Wind = wind
		}
		s.recorder.RecordRefresh(RefreshWorldDegraded, 0)
		return
	}

	worldBox := s.backend.WorldBounds()

	for _, id := range ids {
		params, ok := s.backend.AreaParams(id)
		if !ok {
			continue
		}

		var areaFlags EnvFlags
		if params.HasGravity {
			areaFlags |= EnvGravity
		}
		waterPlane := s.uniform.WaterPlane
		switch params.Medium {
		case physics.MediumAir:
			areaFlags |= EnvWind
		case physics.MediumWater:
			waterPlane = params.WaterPlane
			areaFlags |= EnvWater
		}

		areaFlags &= flags
		if areaFlags == 0 {
			continue
		}

		status := s.backend.AreaStatus(id, worldBox)
		if status.Kind == physics.StatusNone {
			continue
		}

		if areaFlags&EnvWater != 0 {
			s.underwater = entity.Unknown
		}

		pose, ok := s.backend.AreaPose(id)
		if !ok {
			continue
		}

		gravity, flow := params.Gravity, params.Flow
		if params.Mode == physics.FieldRotated {
			rot := pose.Orientation.Normalize()
			gravity = rot.Rotate(gravity)
			flow = rot.Rotate(flow)
		}

		sample := ForceSample{WaterPlane: waterPlane}
		if areaFlags&EnvGravity != 0 {
			sample.Accel = gravity
		}
		if areaFlags&EnvWind != 0 {
			sample.Wind = flow
		}

		if status.Kind != physics.StatusNonUniform {
			s.uniform.Add(sample, areaFlags)
			continue
		}
		if !wantDetailed {
			// Область не кэшируется, поэтому ее флаги не попадают в nonUniformFlags
			continue
		}

		area, found := recycled[id]
		if found {
			delete(recycled, id)
		} else {
			area = &CachedArea{id: id}
		}
		s.cacheArea(area, areaFlags, status, pose, params, sample)
	}

	s.recorder.RecordRefresh(RefreshWorld, len(s.areas))
}

// cacheArea заполняет запись области и добавляет ее в список
func (s *Snapshot) cacheArea(area *CachedArea, flags EnvFlags, status physics.AreaStatus,
	pose physics.AreaPose, params physics.AreaParams, sample ForceSample) {

	area.owner = s
	area.flags = flags
	area.revision = status.Revision
	area.bounds = pose.Bounds
	area.forces = sample
	area.outdoorOnly = false
	area.ownerEntity = physics.NoEntity
	if fd, ok := s.backend.AreaForeignData(area.id); ok {
		area.outdoorOnly = fd.OutdoorOnly
		area.ownerEntity = fd.Owner
	}

	if !area.setupFastEval(params, pose) {
		s.nonCachedFlags |= flags & EnvForces
	}

	if flags&EnvWater != 0 {
		// Тест воды должен срабатывать на любой глубине
		area.bounds.Min[2] = float32(math.Inf(-1))
	}

	s.areas = append(s.areas, area)
	s.nonUniformFlags |= flags
}

// RefreshFromParent строит локальный снимок по боксу из родительского без
// повторного перечисления областей. Дочерний снимок заимствует указатели
// областей родителя и валиден только до следующей очистки родителя.
func (s *Snapshot) RefreshFromParent(parent *Snapshot, box entity.AABB, indoors bool,
	flags EnvFlags, wantDetailed bool, exclude physics.EntityID) {

	s.Clear()
	s.nonUniformFlags |= envLoaded
	s.parent = parent
	s.parentGen = parent.generation

	s.uniform.Accel = parent.uniform.Accel
	if !indoors {
		s.uniform.Wind = parent.uniform.Wind
		s.uniform.WaterPlane = parent.uniform.WaterPlane

		if !box.IsEmpty() {
			s.underwater = s.uniform.WaterPlane.ClassifyBox(box)
		}

		if wind, ok := s.backend.LocalWind(box); ok {
			s.uniform.Wind = s.uniform.Wind.Add(wind)
		}
	}

	if !wantDetailed || parent.nonUniformFlags&flags == 0 || box.IsEmpty() {
		s.recorder.RecordRefresh(RefreshLocal, 0)
		return
	}

	for _, area := range parent.areas {
		if area.flags&flags == 0 {
			continue
		}
		if indoors && area.outdoorOnly {
			continue
		}
		if !area.bounds.Intersects(box) {
			continue
		}
		if exclude != physics.NoEntity && area.ownerEntity == exclude {
			continue
		}

		status := s.backend.AreaStatus(area.id, box)
		if status.Kind == physics.StatusNone {
			continue
		}

		if area.flags&EnvWater != 0 && s.underwater.CouldBe(false) {
			s.refineUnderwater(area, box, status.Kind)
		}

		if status.Kind == physics.StatusNonUniform {
			s.areas = append(s.areas, area)
			s.nonUniformFlags |= area.flags
			if !area.fastEval {
				s.nonCachedFlags |= area.flags & EnvForces
			}
		} else {
			s.uniform.Add(area.forces, area.flags)
		}
	}

	s.recorder.RecordRefresh(RefreshLocal, len(s.areas))
}

// refineUnderwater уточняет подводность бокса по плоскости воды области.
// Определенное "под водой" не понижается до "над водой".
func (s *Snapshot) refineUnderwater(area *CachedArea, box entity.AABB, kind physics.StatusKind) {
	lo, hi := area.forces.WaterPlane.BoxDistances(box)
	switch {
	case hi < 0:
		// Бокс целиком ниже поверхности, но неоднородная область может не покрывать его
		if kind == physics.StatusNonUniform {
			s.underwater = entity.Unknown
		} else {
			s.underwater = entity.True
		}
	case lo < 0:
		s.underwater = entity.Unknown
	}
}

// NonUniformForces добавляет к forces вклад неоднородных областей в точке pos
func (s *Snapshot) NonUniformForces(forces *ForceSample, pos mgl32.Vec3, flags EnvFlags) {
	if !s.BorrowValid() {
		return
	}
	for _, area := range s.areas {
		if area.flags&flags != 0 {
			area.Evaluate(forces, pos, flags)
		}
	}
}

// EvaluateForcesAt возвращает полные силы в точке: однородные плюс неоднородные
func (s *Snapshot) EvaluateForcesAt(pos mgl32.Vec3, flags EnvFlags) ForceSample {
	forces := s.uniform
	s.NonUniformForces(&forces, pos, flags)
	return forces
}

// NonUniformWaterPlane ищет ближайшую плоскость воды среди неоднородных
// областей, которые содержат проекцию точки. Если такой нет, возвращает
// plane без изменений и maxDist.
func (s *Snapshot) NonUniformWaterPlane(plane entity.Plane, pos mgl32.Vec3, maxDist float32) (entity.Plane, float32) {
	if !s.BorrowValid() {
		return plane, maxDist
	}
	for _, area := range s.areas {
		if area.flags&EnvWater != 0 {
			maxDist = area.WaterPlane(&plane, pos, maxDist)
		}
	}
	return plane, maxDist
}

// WaterPlaneAt возвращает плоскость воды в точке с учетом всех областей
func (s *Snapshot) WaterPlaneAt(pos mgl32.Vec3) (entity.Plane, float32) {
	plane := s.uniform.WaterPlane
	return s.NonUniformWaterPlane(plane, pos, plane.Distance(pos))
}

// BorrowValid сообщает, что заимствованные у родителя области еще живы
func (s *Snapshot) BorrowValid() bool {
	return s.parent == nil || s.parent.generation == s.parentGen
}

// Parent возвращает родительский снимок (nil для мирового)
func (s *Snapshot) Parent() *Snapshot { return s.parent }

// Generation возвращает номер поколения снимка
func (s *Snapshot) Generation() uint64 { return s.generation }

// Uniform возвращает однородные силы
func (s *Snapshot) Uniform() ForceSample { return s.uniform }

// Underwater возвращает подводность (для локального снимка - его бокса)
func (s *Snapshot) Underwater() entity.Trinary { return s.underwater }

// NonUniformFlags возвращает объединение флагов неоднородных областей
func (s *Snapshot) NonUniformFlags() EnvFlags { return s.nonUniformFlags &^ envLoaded }

// NonCachedFlags возвращает каналы, требующие запросов к бэкенду
func (s *Snapshot) NonCachedFlags() EnvFlags { return s.nonCachedFlags }

// HasNonUniform сообщает, есть ли неоднородные области по каналам flags
func (s *Snapshot) HasNonUniform(flags EnvFlags) bool {
	return s.nonUniformFlags&flags != 0
}

// Areas возвращает список неоднородных областей (только для чтения)
func (s *Snapshot) Areas() []*CachedArea { return s.areas }

// Backend возвращает физический бэкенд снимка
func (s *Snapshot) Backend() physics.AreaBackend { return s.backend }
