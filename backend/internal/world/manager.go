package world

import (
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"x-fields/backend/internal/core/domain/entity"
)

// ChangeKind категория изменения мира
type ChangeKind int

const (
	ChangeVolume ChangeKind = iota
	ChangeBody
	ChangeTerrain
	ChangeWind
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeVolume:
		return "volume"
	case ChangeBody:
		return "body"
	case ChangeTerrain:
		return "terrain"
	default:
		return "wind"
	}
}

// ChangeListener вызывается после каждого изменения мира (вне блокировки)
type ChangeListener func(kind ChangeKind, id string)

// Manager реестр объемов, тел, зон ветра и террейна.
// Порядок перечисления стабилен: в порядке добавления.
type Manager struct {
	mu sync.RWMutex

	volumes     map[string]*Volume
	volumeOrder []string
	bodies      map[string]*Body
	bodyOrder   []string
	windZones   []WindZone
	terrain     *Terrain

	revision  uint64
	listeners []ChangeListener

	logger *log.Logger
}

func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		volumes: make(map[string]*Volume),
		bodies:  make(map[string]*Body),
		logger:  logger,
	}
}

// OnChange подписывает слушателя на изменения мира
func (m *Manager) OnChange(listener ChangeListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, listener)
}

// bump увеличивает ревизию; вызывается под блокировкой записи.
// Возвращает копию слушателей для вызова после снятия блокировки.
func (m *Manager) bump() []ChangeListener {
	m.revision++
	listeners := make([]ChangeListener, len(m.listeners))
	copy(listeners, m.listeners)
	return listeners
}

func fire(listeners []ChangeListener, kind ChangeKind, id string) {
	for _, l := range listeners {
		l(kind, id)
	}
}

// Revision возвращает счетчик изменений мира
func (m *Manager) Revision() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.revision
}

// AddVolume добавляет или заменяет объем
func (m *Manager) AddVolume(v Volume) error {
	if v.ID == "" {
		return fmt.Errorf("volume: empty id")
	}
	if v.Shape != ShapeGlobal {
		half := v.GeometryHalf()
		if half.X() <= 0 || half.Y() <= 0 || half.Z() <= 0 {
			return fmt.Errorf("volume %s: non-positive extents %v", v.ID, half)
		}
	}

	m.mu.Lock()
	if _, exists := m.volumes[v.ID]; !exists {
		m.volumeOrder = append(m.volumeOrder, v.ID)
	}
	stored := v
	m.volumes[v.ID] = &stored
	listeners := m.bump()
	m.mu.Unlock()

	m.logger.Printf("[World] Объем %s (%s) в позиции (%.1f, %.1f, %.1f)",
		v.ID, v.Shape, v.Position.X(), v.Position.Y(), v.Position.Z())
	fire(listeners, ChangeVolume, v.ID)
	return nil
}

// RemoveVolume удаляет объем
func (m *Manager) RemoveVolume(id string) bool {
	m.mu.Lock()
	if _, exists := m.volumes[id]; !exists {
		m.mu.Unlock()
		return false
	}
	delete(m.volumes, id)
	m.volumeOrder = removeID(m.volumeOrder, id)
	listeners := m.bump()
	m.mu.Unlock()

	fire(listeners, ChangeVolume, id)
	return true
}

// MoveVolume перемещает и поворачивает объем
func (m *Manager) MoveVolume(id string, position mgl32.Vec3, rotation mgl32.Quat) bool {
	m.mu.Lock()
	v, exists := m.volumes[id]
	if !exists {
		m.mu.Unlock()
		return false
	}
	v.Position, v.Rotation = position, rotation
	listeners := m.bump()
	m.mu.Unlock()

	fire(listeners, ChangeVolume, id)
	return true
}

// Volume возвращает копию объема
func (m *Manager) Volume(id string) (Volume, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, exists := m.volumes[id]
	if !exists {
		return Volume{}, false
	}
	return *v, true
}

// VolumeIDs возвращает идентификаторы объемов в порядке добавления
func (m *Manager) VolumeIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, len(m.volumeOrder))
	copy(ids, m.volumeOrder)
	return ids
}

// Volumes возвращает копии всех объемов в порядке добавления
func (m *Manager) Volumes() []Volume {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]Volume, 0, len(m.volumeOrder))
	for _, id := range m.volumeOrder {
		result = append(result, *m.volumes[id])
	}
	return result
}

// AddBody добавляет или заменяет тело
func (m *Manager) AddBody(b Body) error {
	if b.ID == "" {
		return fmt.Errorf("body: empty id")
	}
	if b.Shape != ShapeSphere && b.Shape != ShapeBox {
		return fmt.Errorf("body %s: unsupported shape %s", b.ID, b.Shape)
	}

	m.mu.Lock()
	if _, exists := m.bodies[b.ID]; !exists {
		m.bodyOrder = append(m.bodyOrder, b.ID)
	}
	stored := b
	m.bodies[b.ID] = &stored
	listeners := m.bump()
	m.mu.Unlock()

	fire(listeners, ChangeBody, b.ID)
	return nil
}

// RemoveBody удаляет тело
func (m *Manager) RemoveBody(id string) bool {
	m.mu.Lock()
	if _, exists := m.bodies[id]; !exists {
		m.mu.Unlock()
		return false
	}
	delete(m.bodies, id)
	m.bodyOrder = removeID(m.bodyOrder, id)
	listeners := m.bump()
	m.mu.Unlock()

	fire(listeners, ChangeBody, id)
	return true
}

// MoveBody перемещает тело
func (m *Manager) MoveBody(id string, position mgl32.Vec3) bool {
	m.mu.Lock()
	b, exists := m.bodies[id]
	if !exists {
		m.mu.Unlock()
		return false
	}
	b.Position = position
	listeners := m.bump()
	m.mu.Unlock()

	fire(listeners, ChangeBody, id)
	return true
}

// Body возвращает копию тела
func (m *Manager) Body(id string) (Body, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, exists := m.bodies[id]
	if !exists {
		return Body{}, false
	}
	return *b, true
}

// Bodies возвращает копии всех тел в порядке добавления
func (m *Manager) Bodies() []Body {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]Body, 0, len(m.bodyOrder))
	for _, id := range m.bodyOrder {
		result = append(result, *m.bodies[id])
	}
	return result
}

// AddWindZone добавляет зону локального ветра
func (m *Manager) AddWindZone(z WindZone) {
	m.mu.Lock()
	m.windZones = append(m.windZones, z)
	listeners := m.bump()
	m.mu.Unlock()

	fire(listeners, ChangeWind, z.ID)
}

// WindZones возвращает копию зон ветра
func (m *Manager) WindZones() []WindZone {
	m.mu.RLock()
	defer m.mu.RUnlock()
	zones := make([]WindZone, len(m.windZones))
	copy(zones, m.windZones)
	return zones
}

// LocalWind суммирует ветер зон, пересекающих регион
func (m *Manager) LocalWind(region entity.AABB) (mgl32.Vec3, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var wind mgl32.Vec3
	found := false
	for _, z := range m.windZones {
		if entity.NewAABB(z.Min, z.Max).Intersects(region) {
			wind = wind.Add(z.Wind)
			found = true
		}
	}
	return wind, found
}

// SetTerrain устанавливает террейн (nil убирает его)
func (m *Manager) SetTerrain(t *Terrain) {
	m.mu.Lock()
	m.terrain = t
	listeners := m.bump()
	m.mu.Unlock()

	if t != nil {
		m.logger.Printf("[World] Террейн %dx%d, шаг %.1f", t.Width, t.Depth, t.CellSize)
	}
	fire(listeners, ChangeTerrain, "")
}

// Terrain возвращает текущий террейн или nil
func (m *Manager) Terrain() *Terrain {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.terrain
}

// Bounds возвращает границы мира: протяженность террейна с запасом по
// высоте, иначе объединение границ тел и ограниченных объемов
func (m *Manager) Bounds() entity.AABB {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.terrain != nil {
		b := m.terrain.Bounds()
		b.Min[2] -= WorldHeightMargin
		b.Max[2] += WorldHeightMargin
		return b
	}

	box := entity.EmptyAABB()
	for _, id := range m.bodyOrder {
		bb := m.bodies[id].Bounds()
		box = box.Extend(bb.Min).Extend(bb.Max)
	}
	for _, id := range m.volumeOrder {
		v := m.volumes[id]
		if v.Shape == ShapeGlobal {
			continue
		}
		vb := v.Bounds()
		box = box.Extend(vb.Min).Extend(vb.Max)
	}
	return box
}

// WorldHeightMargin запас границ мира над и под террейном
const WorldHeightMargin = 200

// RayCastBodies ищет ближайшее попадание луча в тела указанных категорий
func (m *Manager) RayCastBodies(start, move mgl32.Vec3, static, dynamic bool) (Body, BodyHit, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	best := BodyHit{Dist: float32(math.Inf(1))}
	var bestBody Body
	found := false
	for _, id := range m.bodyOrder {
		b := m.bodies[id]
		if (b.Kind == BodyStatic && !static) || (b.Kind == BodyDynamic && !dynamic) {
			continue
		}
		if hit, ok := b.RayCast(start, move); ok && hit.Dist < best.Dist {
			best, bestBody, found = hit, *b, true
		}
	}
	return bestBody, best, found
}

// Clear удаляет все содержимое мира
func (m *Manager) Clear() {
	m.mu.Lock()
	m.volumes = make(map[string]*Volume)
	m.volumeOrder = nil
	m.bodies = make(map[string]*Body)
	m.bodyOrder = nil
	m.windZones = nil
	m.terrain = nil
	listeners := m.bump()
	m.mu.Unlock()

	fire(listeners, ChangeVolume, "")
}

func removeID(ids []string, id string) []string {
	for i, existing := range ids {
		if existing == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
