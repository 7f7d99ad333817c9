package game

import (
	"log"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"x-fields/backend/internal/core/domain/service"
	"x-fields/backend/internal/world"
)

// EnvironTicker сервис окружения, обновляемый по номеру тика
type EnvironTicker interface {
	Tick(tick uint64) bool
}

// EnvironmentSystem обновляет мировой снимок окружения в начале тика
type EnvironmentSystem struct {
	name       string
	priority   int
	environ    EnvironTicker
	gameTicker *GameTicker
	logger     *log.Logger

	refreshes uint64
}

// NewEnvironmentSystem создает систему обновления окружения
func NewEnvironmentSystem(environ EnvironTicker, gameTicker *GameTicker, logger *log.Logger) *EnvironmentSystem {
	if logger == nil {
		logger = log.Default()
	}
	return &EnvironmentSystem{
		name:       "EnvironmentSystem",
		priority:   5, // Высокий приоритет - снимок нужен всем остальным системам
		environ:    environ,
		gameTicker: gameTicker,
		logger:     logger,
	}
}

// Update обновляет мировой снимок, если пришло время или области изменились
func (es *EnvironmentSystem) Update(deltaTime time.Duration) error {
	tick := es.gameTicker.GetTickCount()
	if es.environ.Tick(tick) {
		es.refreshes++
	}

	// Логируем состояние каждые 30 секунд при 20 TPS
	if tick%600 == 0 {
		es.logger.Printf("[EnvironmentSystem] Тик %d: обновлений снимка мира %d", tick, es.refreshes)
	}
	return nil
}

// GetName возвращает имя системы
func (es *EnvironmentSystem) GetName() string {
	return es.name
}

// GetPriority возвращает приоритет системы
func (es *EnvironmentSystem) GetPriority() int {
	return es.priority
}

// MotionKind что двигает кинематическая система
type MotionKind int

const (
	MotionBodyOrbit   MotionKind = iota // тело летает по кругу вокруг Center
	MotionVolumeSpin                    // объем вращается вокруг вертикали
	MotionVolumeDrift                   // объем качается вдоль Axis
)

// Motion описание движения одного объекта мира
type Motion struct {
	Kind         MotionKind
	ID           string
	Center       mgl32.Vec3
	Axis         mgl32.Vec3 // направление качания для MotionVolumeDrift
	Radius       float32    // радиус орбиты или амплитуда качания
	AngularSpeed float32    // радиан в секунду
	EveryTicks   uint64     // применять движение раз в N тиков (0 или 1 - каждый тик)
}

// KinematicSystem двигает тела и объемы мира по заданным траекториям
type KinematicSystem struct {
	name       string
	priority   int
	world      *world.Manager
	gameTicker *GameTicker
	logger     *log.Logger

	motions []Motion
	elapsed float64
}

// NewKinematicSystem создает кинематическую систему
func NewKinematicSystem(m *world.Manager, gameTicker *GameTicker, motions []Motion, logger *log.Logger) *KinematicSystem {
	if logger == nil {
		logger = log.Default()
	}
	return &KinematicSystem{
		name:       "KinematicSystem",
		priority:   3, // До окружения: снимок строится по новым позициям
		world:      m,
		gameTicker: gameTicker,
		logger:     logger,
		motions:    motions,
	}
}

// Update продвигает все движения
func (ks *KinematicSystem) Update(deltaTime time.Duration) error {
	ks.elapsed += deltaTime.Seconds()
	tick := ks.gameTicker.GetTickCount()

	for _, m := range ks.motions {
		if m.EveryTicks > 1 && tick%m.EveryTicks != 0 {
			continue
		}
		angle := float32(math.Mod(ks.elapsed*float64(m.AngularSpeed), 2*math.Pi))

		var ok bool
		switch m.Kind {
		case MotionBodyOrbit:
			s, c := math.Sincos(float64(angle))
			ok = ks.world.MoveBody(m.ID, m.Center.Add(mgl32.Vec3{float32(c), float32(s), 0}.Mul(m.Radius)))
		case MotionVolumeSpin:
			ok = ks.world.MoveVolume(m.ID, m.Center, mgl32.QuatRotate(angle, mgl32.Vec3{0, 0, 1}))
		case MotionVolumeDrift:
			offset := m.Axis.Mul(m.Radius * float32(math.Sin(float64(angle))))
			v, exists := ks.world.Volume(m.ID)
			if exists {
				ok = ks.world.MoveVolume(m.ID, m.Center.Add(offset), v.Rotation)
			}
		}
		if !ok && tick%600 == 0 {
			ks.logger.Printf("[KinematicSystem] Объект %s не найден в мире", m.ID)
		}
	}
	return nil
}

// GetName возвращает имя системы
func (ks *KinematicSystem) GetName() string {
	return ks.name
}

// GetPriority возвращает приоритет системы
func (ks *KinematicSystem) GetPriority() int {
	return ks.priority
}

// EnvironFrame кадр зонда окружения
type EnvironFrame struct {
	Type      string         `json:"type"`
	Tick      uint64         `json:"tick"`
	Timestamp int64          `json:"timestamp"`
	Stats     EnvironSummary `json:"stats"`
	Emitters  []EmitterFrame `json:"emitters"`
}

// EnvironSummary состояние мирового снимка в кадре
type EnvironSummary struct {
	RefreshedTick   uint64     `json:"refreshed_tick"`
	Refreshes       uint64     `json:"refreshes"`
	Areas           int        `json:"areas"`
	NonUniformFlags uint32     `json:"non_uniform_flags"`
	Current         bool       `json:"current"`
	Gravity         mgl32.Vec3 `json:"gravity"`
	Wind            mgl32.Vec3 `json:"wind"`
}

// EnvironStatsSource источник состояния мирового снимка
type EnvironStatsSource interface {
	Stats() service.EnvironStats
}

// ProbeBroadcaster интерфейс для отправки кадров зондам
type ProbeBroadcaster interface {
	BroadcastEnviron(frame EnvironFrame) error
}

// ProbeSyncSystem система рассылки кадров окружения зондам
type ProbeSyncSystem struct {
	name          string
	priority      int
	gameTicker    *GameTicker
	environ       EnvironStatsSource
	particles     *ParticleSystem
	logger        *log.Logger
	lastBroadcast time.Time

	// Период рассылки
	broadcastInterval time.Duration

	broadcaster ProbeBroadcaster
}

// NewProbeSyncSystem создает систему рассылки кадров
func NewProbeSyncSystem(gameTicker *GameTicker, environ EnvironStatsSource, particles *ParticleSystem,
	interval time.Duration, logger *log.Logger) *ProbeSyncSystem {

	if logger == nil {
		logger = log.Default()
	}
	return &ProbeSyncSystem{
		name:              "ProbeSyncSystem",
		priority:          100, // Самый низкий приоритет - отправляем в конце тика
		gameTicker:        gameTicker,
		environ:           environ,
		particles:         particles,
		logger:            logger,
		broadcastInterval: interval,
	}
}

// SetBroadcaster устанавливает получателя кадров
func (pss *ProbeSyncSystem) SetBroadcaster(broadcaster ProbeBroadcaster) {
	pss.broadcaster = broadcaster
}

// BuildFrame собирает текущий кадр окружения
func (pss *ProbeSyncSystem) BuildFrame() EnvironFrame {
	stats := pss.environ.Stats()
	frame := EnvironFrame{
		Type:      "environ",
		Tick:      pss.gameTicker.GetTickCount(),
		Timestamp: time.Now().UnixMilli(),
		Stats: EnvironSummary{
			RefreshedTick:   stats.RefreshedTick,
			Refreshes:       stats.Refreshes,
			Areas:           stats.Areas,
			NonUniformFlags: uint32(stats.NonUniformFlags),
			Current:         stats.Current,
			Gravity:         stats.Uniform.Accel,
			Wind:            stats.Uniform.Wind,
		},
	}
	if pss.particles != nil {
		frame.Emitters = pss.particles.Frames()
	}
	return frame
}

// Update отправляет кадр, если прошел период рассылки
func (pss *ProbeSyncSystem) Update(deltaTime time.Duration) error {
	if pss.broadcaster == nil {
		return nil
	}

	now := time.Now()
	if now.Sub(pss.lastBroadcast) < pss.broadcastInterval {
		return nil
	}
	pss.lastBroadcast = now

	if err := pss.broadcaster.BroadcastEnviron(pss.BuildFrame()); err != nil {
		pss.logger.Printf("[ProbeSyncSystem] Ошибка отправки кадра: %v", err)
	}
	return nil
}

// GetName возвращает имя системы
func (pss *ProbeSyncSystem) GetName() string {
	return pss.name
}

// GetPriority возвращает приоритет системы
func (pss *ProbeSyncSystem) GetPriority() int {
	return pss.priority
}

// SummaryPrinter периодическая сводка (телеметрия окружения)
type SummaryPrinter interface {
	PrintSummary() bool
}

// GameMetricsSystem система сбора метрик цикла
type GameMetricsSystem struct {
	name       string
	priority   int
	gameTicker *GameTicker
	telemetry  SummaryPrinter
	logger     *log.Logger

	// Счетчики для метрик
	lastMetricsLog  time.Time
	metricsInterval time.Duration
}

// NewGameMetricsSystem создает новую систему сбора метрик
func NewGameMetricsSystem(gameTicker *GameTicker, telemetry SummaryPrinter, interval time.Duration, logger *log.Logger) *GameMetricsSystem {
	if logger == nil {
		logger = log.Default()
	}
	return &GameMetricsSystem{
		name:            "GameMetricsSystem",
		priority:        200, // Очень низкий приоритет - метрики в самом конце
		gameTicker:      gameTicker,
		telemetry:       telemetry,
		logger:          logger,
		lastMetricsLog:  time.Now(),
		metricsInterval: interval,
	}
}

// Update собирает и логирует метрики цикла
func (gms *GameMetricsSystem) Update(deltaTime time.Duration) error {
	if gms.telemetry != nil {
		gms.telemetry.PrintSummary()
	}

	now := time.Now()
	if now.Sub(gms.lastMetricsLog) < gms.metricsInterval {
		return nil
	}
	gms.lastMetricsLog = now

	stats := gms.gameTicker.GetStats()
	gms.logger.Printf("[GameMetrics] TPS: %.1f/%d, Тиков: %d, Время тика: %v",
		stats.ActualTPS, stats.TargetTPS, stats.TickCount, stats.AverageTickTime)

	// Проверяем производительность
	if stats.UptimeSeconds > 1 && stats.ActualTPS < float64(stats.TargetTPS)*0.9 {
		gms.logger.Printf("[GameMetrics] ПРЕДУПРЕЖДЕНИЕ: TPS снижен до %.1f", stats.ActualTPS)
	}
	return nil
}

// GetName возвращает имя системы
func (gms *GameMetricsSystem) GetName() string {
	return gms.name
}

// GetPriority возвращает приоритет системы
func (gms *GameMetricsSystem) GetPriority() int {
	return gms.priority
}
