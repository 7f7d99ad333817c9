package game

import (
	"context"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// TickSystem интерфейс для всех систем цикла
type TickSystem interface {
	Update(deltaTime time.Duration) error
	GetName() string
	GetPriority() int // Приоритет выполнения (меньше = раньше)
}

// GameTicker цикл симуляции окружения с фиксированной частотой
type GameTicker struct {
	targetTPS    int
	tickDuration time.Duration

	// Бюджет тика: предупреждение и критический порог
	slowTick     time.Duration
	criticalTick time.Duration

	running   atomic.Bool
	paused    atomic.Bool
	tickCount atomic.Uint64
	clamped   atomic.Uint64 // тиков с урезанным шагом после задержки

	systemsMutex sync.RWMutex
	systems      []TickSystem

	perfMonitor *PerformanceMonitor

	// Время тиков, пишется только из цикла или Step
	timingMutex sync.Mutex
	startTime   time.Time
	tickTimes   *timingWindow
	slowest     time.Duration

	cancel context.CancelFunc
	done   chan struct{}

	logger *log.Logger
}

// TickerStats статистика цикла
type TickerStats struct {
	TargetTPS       int           `json:"target_tps"`
	ActualTPS       float64       `json:"actual_tps"`
	TickCount       uint64        `json:"tick_count"`
	UptimeSeconds   float64       `json:"uptime_seconds"`
	AverageTickTime time.Duration `json:"average_tick_time"`
	MaxObservedTick time.Duration `json:"max_observed_tick"`
	SkippedTicks    uint64        `json:"skipped_ticks"`
	IsRunning       bool          `json:"is_running"`
	IsPaused        bool          `json:"is_paused"`
	SystemsCount    int           `json:"systems_count"`
}

// NewGameTicker создает цикл с частотой targetTPS (по умолчанию 20)
func NewGameTicker(targetTPS int, logger *log.Logger) *GameTicker {
	if targetTPS <= 0 {
		targetTPS = 20
	}
	if logger == nil {
		logger = log.Default()
	}

	tick := time.Second / time.Duration(targetTPS)
	return &GameTicker{
		targetTPS:    targetTPS,
		tickDuration: tick,
		slowTick:     tick / 2,
		criticalTick: tick * 2,
		perfMonitor:  NewPerformanceMonitor(50, tick/4),
		tickTimes:    newTimingWindow(100),
		logger:       logger,
	}
}

// Start запускает цикл в отдельной горутине. Повторный вызов ничего не делает.
func (gt *GameTicker) Start() error {
	if !gt.running.CompareAndSwap(false, true) {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	gt.cancel = cancel
	gt.done = make(chan struct{})

	gt.timingMutex.Lock()
	gt.startTime = time.Now()
	gt.timingMutex.Unlock()

	gt.logger.Printf("[GameTicker] Запуск цикла симуляции: %d TPS (тик каждые %v)",
		gt.targetTPS, gt.tickDuration)

	go gt.run(ctx, gt.done)
	return nil
}

// Stop останавливает цикл и ждет завершения текущего тика
func (gt *GameTicker) Stop() {
	if !gt.running.CompareAndSwap(true, false) {
		return
	}
	gt.cancel()
	<-gt.done

	gt.logger.Printf("[GameTicker] Цикл остановлен, выполнено тиков: %d", gt.tickCount.Load())
}

// Pause приостанавливает или возобновляет цикл. На паузе тики пропускаются,
// а после возобновления шаг считается от момента снятия паузы.
func (gt *GameTicker) Pause(pause bool) {
	if gt.paused.Swap(pause) != pause {
		gt.logger.Printf("[GameTicker] Пауза: %v", pause)
	}
}

// RegisterSystem добавляет систему; системы с равным приоритетом идут в порядке регистрации
func (gt *GameTicker) RegisterSystem(system TickSystem) {
	gt.systemsMutex.Lock()
	gt.systems = append(gt.systems, system)
	sort.SliceStable(gt.systems, func(i, j int) bool {
		return gt.systems[i].GetPriority() < gt.systems[j].GetPriority()
	})
	gt.systemsMutex.Unlock()

	gt.perfMonitor.track(system.GetName())
	gt.logger.Printf("[GameTicker] Зарегистрирована система: %s (приоритет: %d)",
		system.GetName(), system.GetPriority())
}

func (gt *GameTicker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(gt.tickDuration)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if gt.paused.Load() {
				last = now
				continue
			}
			gt.Step(gt.clampStep(now.Sub(last)))
			last = now
		}
	}
}

// clampStep ограничивает шаг после долгой задержки двумя тиками,
// чтобы частицы не проскакивали препятствия
func (gt *GameTicker) clampStep(step time.Duration) time.Duration {
	limit := gt.tickDuration * 2
	if step <= limit {
		return step
	}
	gt.clamped.Add(1)
	gt.logger.Printf("[GameTicker] Задержка между тиками %v, шаг урезан до %v", step, limit)
	return limit
}

// Step выполняет один тик с заданным шагом времени. Используется циклом
// и тестами для детерминированного продвижения симуляции.
func (gt *GameTicker) Step(deltaTime time.Duration) {
	started := time.Now()
	gt.tickCount.Add(1)

	gt.systemsMutex.RLock()
	systems := append([]TickSystem(nil), gt.systems...)
	gt.systemsMutex.RUnlock()

	for _, system := range systems {
		gt.runSystem(system, deltaTime)
	}

	elapsed := time.Since(started)
	gt.timingMutex.Lock()
	gt.tickTimes.add(elapsed)
	if elapsed > gt.slowest {
		gt.slowest = elapsed
	}
	gt.timingMutex.Unlock()

	switch {
	case elapsed > gt.criticalTick:
		gt.logger.Printf("[GameTicker] КРИТИЧЕСКОЕ ПРЕДУПРЕЖДЕНИЕ: тик %d занял %v (цель: %v)",
			gt.tickCount.Load(), elapsed, gt.tickDuration)
	case elapsed > gt.slowTick:
		gt.logger.Printf("[GameTicker] Медленный тик %d: %v (цель: %v)",
			gt.tickCount.Load(), elapsed, gt.tickDuration)
	}
}

// runSystem выполняет систему; паника считается ошибкой и не прерывает тик
func (gt *GameTicker) runSystem(system TickSystem, deltaTime time.Duration) {
	name := system.GetName()
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			gt.logger.Printf("[GameTicker] КРИТИЧЕСКАЯ ОШИБКА в системе %s: %v", name, r)
			gt.perfMonitor.fail(name)
		}
	}()

	err := system.Update(deltaTime)
	gt.perfMonitor.observe(name, time.Since(started))
	if err != nil {
		gt.logger.Printf("[GameTicker] Ошибка в системе %s: %v", name, err)
		gt.perfMonitor.fail(name)
	}
}

// GetStats возвращает статистику цикла
func (gt *GameTicker) GetStats() TickerStats {
	gt.systemsMutex.RLock()
	systemsCount := len(gt.systems)
	gt.systemsMutex.RUnlock()

	ticks := gt.tickCount.Load()
	stats := TickerStats{
		TargetTPS:    gt.targetTPS,
		TickCount:    ticks,
		SkippedTicks: gt.clamped.Load(),
		IsRunning:    gt.running.Load(),
		IsPaused:     gt.paused.Load(),
		SystemsCount: systemsCount,
	}

	gt.timingMutex.Lock()
	stats.AverageTickTime = gt.tickTimes.average()
	stats.MaxObservedTick = gt.slowest
	startTime := gt.startTime
	gt.timingMutex.Unlock()

	if !startTime.IsZero() {
		uptime := time.Since(startTime).Seconds()
		stats.UptimeSeconds = uptime
		if uptime > 0 {
			stats.ActualTPS = float64(ticks) / uptime
		}
	}
	return stats
}

// GetTickCount возвращает номер последнего выполненного тика
func (gt *GameTicker) GetTickCount() uint64 {
	return gt.tickCount.Load()
}

// GetTickDuration возвращает целевую длительность тика
func (gt *GameTicker) GetTickDuration() time.Duration {
	return gt.tickDuration
}

// GetPerformanceMonitor возвращает монитор производительности систем
func (gt *GameTicker) GetPerformanceMonitor() *PerformanceMonitor {
	return gt.perfMonitor
}

// timingWindow кольцевой буфер длительностей с текущей суммой
type timingWindow struct {
	samples []time.Duration
	next    int
	filled  int
	sum     time.Duration
}

func newTimingWindow(size int) *timingWindow {
	if size <= 0 {
		size = 1
	}
	return &timingWindow{samples: make([]time.Duration, size)}
}

func (w *timingWindow) add(d time.Duration) {
	w.sum += d - w.samples[w.next]
	w.samples[w.next] = d
	w.next = (w.next + 1) % len(w.samples)
	if w.filled < len(w.samples) {
		w.filled++
	}
}

func (w *timingWindow) average() time.Duration {
	if w.filled == 0 {
		return 0
	}
	return w.sum / time.Duration(w.filled)
}

// SystemMetrics метрики производительности системы
type SystemMetrics struct {
	Name              string
	LastExecutionTime time.Duration
	AverageTime       time.Duration
	MaxTime           time.Duration
	TotalExecutions   uint64
	Errors            uint64
	SlowExecutions    uint64 // выполнений дольше порога предупреждения
}

type systemTiming struct {
	metrics SystemMetrics
	window  *timingWindow
}

// PerformanceMonitor отслеживает время выполнения каждой системы
type PerformanceMonitor struct {
	mutex      sync.RWMutex
	systems    map[string]*systemTiming
	windowSize int
	slowSystem time.Duration
}

// NewPerformanceMonitor создает монитор со скользящим окном windowSize тиков
func NewPerformanceMonitor(windowSize int, slowSystem time.Duration) *PerformanceMonitor {
	return &PerformanceMonitor{
		systems:    make(map[string]*systemTiming),
		windowSize: windowSize,
		slowSystem: slowSystem,
	}
}

func (pm *PerformanceMonitor) track(name string) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	pm.systems[name] = &systemTiming{
		metrics: SystemMetrics{Name: name},
		window:  newTimingWindow(pm.windowSize),
	}
}

func (pm *PerformanceMonitor) observe(name string, d time.Duration) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	st, ok := pm.systems[name]
	if !ok {
		return
	}
	st.window.add(d)

	m := &st.metrics
	m.LastExecutionTime = d
	m.AverageTime = st.window.average()
	m.TotalExecutions++
	if d > m.MaxTime {
		m.MaxTime = d
	}
	if pm.slowSystem > 0 && d > pm.slowSystem {
		m.SlowExecutions++
	}
}

func (pm *PerformanceMonitor) fail(name string) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if st, ok := pm.systems[name]; ok {
		st.metrics.Errors++
	}
}

// GetSystemMetrics возвращает копию метрик системы
func (pm *PerformanceMonitor) GetSystemMetrics(name string) (SystemMetrics, bool) {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	st, ok := pm.systems[name]
	if !ok {
		return SystemMetrics{}, false
	}
	return st.metrics, true
}

// GetSystemsStats возвращает метрики всех систем
func (pm *PerformanceMonitor) GetSystemsStats() map[string]SystemMetrics {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	result := make(map[string]SystemMetrics, len(pm.systems))
	for name, st := range pm.systems {
		result[name] = st.metrics
	}
	return result
}
