package telemetry

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"x-fields/backend/internal/core/domain/environ"
)

// Counters снимок счетчиков окружения за период
type Counters struct {
	WorldRefreshes    int64 `json:"world_refreshes"`
	DegradedRefreshes int64 `json:"degraded_refreshes"`
	LocalRefreshes    int64 `json:"local_refreshes"`
	CachedAreas       int64 `json:"cached_areas"`
	FastEvaluations   int64 `json:"fast_evaluations"`
	SlowEvaluations   int64 `json:"slow_evaluations"`
	CollisionQueries  int64 `json:"collision_queries"`
	CollisionHits     int64 `json:"collision_hits"`
}

// EnvironTelemetry собирает счетчики работы кэша окружения.
// Реализует environ.Recorder; методы записи безопасны из любого потока.
type EnvironTelemetry struct {
	enabled atomic.Bool

	worldRefreshes    atomic.Int64
	degradedRefreshes atomic.Int64
	localRefreshes    atomic.Int64
	cachedAreas       atomic.Int64
	fastEvaluations   atomic.Int64
	slowEvaluations   atomic.Int64
	collisionQueries  atomic.Int64
	collisionHits     atomic.Int64

	mutex         sync.Mutex
	lastPrint     time.Time
	printInterval time.Duration
	logger        *log.Logger
}

var _ environ.Recorder = (*EnvironTelemetry)(nil)

// NewEnvironTelemetry создает телеметрию с периодом вывода сводки interval
func NewEnvironTelemetry(interval time.Duration, logger *log.Logger) *EnvironTelemetry {
	if logger == nil {
		logger = log.Default()
	}
	t := &EnvironTelemetry{
		lastPrint:     time.Now(),
		printInterval: interval,
		logger:        logger,
	}
	t.enabled.Store(true)
	return t
}

// RecordRefresh учитывает обновление снимка
func (t *EnvironTelemetry) RecordRefresh(kind environ.RefreshKind, areas int) {
	if !t.enabled.Load() {
		return
	}
	switch kind {
	case environ.RefreshWorld:
		t.worldRefreshes.Add(1)
	case environ.RefreshWorldDegraded:
		t.degradedRefreshes.Add(1)
	default:
		t.localRefreshes.Add(1)
	}
	t.cachedAreas.Add(int64(areas))
}

// RecordEvaluate учитывает вычисление сил неоднородной области
func (t *EnvironTelemetry) RecordEvaluate(fast bool) {
	if !t.enabled.Load() {
		return
	}
	if fast {
		t.fastEvaluations.Add(1)
	} else {
		t.slowEvaluations.Add(1)
	}
}

// RecordCollision учитывает запрос столкновения
func (t *EnvironTelemetry) RecordCollision(hit bool) {
	if !t.enabled.Load() {
		return
	}
	t.collisionQueries.Add(1)
	if hit {
		t.collisionHits.Add(1)
	}
}

// Snapshot возвращает текущие значения счетчиков
func (t *EnvironTelemetry) Snapshot() Counters {
	return Counters{
		WorldRefreshes:    t.worldRefreshes.Load(),
		DegradedRefreshes: t.degradedRefreshes.Load(),
		LocalRefreshes:    t.localRefreshes.Load(),
		CachedAreas:       t.cachedAreas.Load(),
		FastEvaluations:   t.fastEvaluations.Load(),
		SlowEvaluations:   t.slowEvaluations.Load(),
		CollisionQueries:  t.collisionQueries.Load(),
		CollisionHits:     t.collisionHits.Load(),
	}
}

// reset обнуляет счетчики и возвращает их прежние значения
func (t *EnvironTelemetry) reset() Counters {
	return Counters{
		WorldRefreshes:    t.worldRefreshes.Swap(0),
		DegradedRefreshes: t.degradedRefreshes.Swap(0),
		LocalRefreshes:    t.localRefreshes.Swap(0),
		CachedAreas:       t.cachedAreas.Swap(0),
		FastEvaluations:   t.fastEvaluations.Swap(0),
		SlowEvaluations:   t.slowEvaluations.Swap(0),
		CollisionQueries:  t.collisionQueries.Swap(0),
		CollisionHits:     t.collisionHits.Swap(0),
	}
}

// PrintSummary выводит сводку и сбрасывает счетчики, если прошел период вывода
func (t *EnvironTelemetry) PrintSummary() bool {
	if !t.enabled.Load() {
		return false
	}

	t.mutex.Lock()
	now := time.Now()
	if now.Sub(t.lastPrint) < t.printInterval {
		t.mutex.Unlock()
		return false
	}
	elapsed := now.Sub(t.lastPrint)
	t.lastPrint = now
	t.mutex.Unlock()

	c := t.reset()
	t.logger.Printf("🔬 [Telemetry] Окружение за %v:", elapsed.Round(time.Millisecond))
	t.logger.Printf("📊 [Telemetry] Обновления: мир %d, упрощенный %d, локальные %d, областей в кэше %d",
		c.WorldRefreshes, c.DegradedRefreshes, c.LocalRefreshes, c.CachedAreas)
	t.logger.Printf("📈 [Telemetry] Вычисления сил: быстрых %d, через бэкенд %d",
		c.FastEvaluations, c.SlowEvaluations)
	t.logger.Printf("💥 [Telemetry] Столкновения: запросов %d, попаданий %d (%.1f%%)",
		c.CollisionQueries, c.CollisionHits, c.HitRate()*100)
	return true
}

// HitRate доля запросов столкновения, закончившихся попаданием
func (c Counters) HitRate() float64 {
	if c.CollisionQueries == 0 {
		return 0
	}
	return float64(c.CollisionHits) / float64(c.CollisionQueries)
}

// GetTelemetryJSON возвращает текущие счетчики в JSON формате
func (t *EnvironTelemetry) GetTelemetryJSON() (string, error) {
	jsonData, err := json.MarshalIndent(t.Snapshot(), "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

// SetEnabled включает/выключает телеметрию
func (t *EnvironTelemetry) SetEnabled(enabled bool) {
	t.enabled.Store(enabled)
	t.logger.Printf("🔬 [Telemetry] Телеметрия %s", map[bool]string{true: "включена", false: "выключена"}[enabled])
}

// Clear обнуляет счетчики
func (t *EnvironTelemetry) Clear() {
	t.reset()
}
