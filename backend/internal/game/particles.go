package game

import (
	"fmt"
	"hash/fnv"
	"log"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"x-fields/backend/internal/core/domain/entity"
	"x-fields/backend/internal/core/domain/environ"
	"x-fields/backend/internal/core/port/in/environment"
	"x-fields/backend/internal/core/port/out/physics"
	"x-fields/backend/internal/world"
)

// EmitterConfig настройки эмиттера частиц
type EmitterConfig struct {
	ID        string
	Position  mgl32.Vec3
	SpawnRate float32       // частиц в секунду
	Lifetime  time.Duration // время жизни частицы
	Speed     float32       // начальная скорость
	Spread    float32       // половина угла конуса выброса в радианах
	Radius    float32       // радиус частицы для столкновений
	Indoors   bool          // эмиттер в помещении: без ветра и уличных объемов
	Owner     physics.EntityID
	Collide   environ.EnvFlags // категории столкновений, 0 - без столкновений
}

// Particle состояние одной частицы
type Particle struct {
	Position   mgl32.Vec3
	Velocity   mgl32.Vec3
	Age        float32
	Underwater bool
}

// EmitterFrame сводка эмиттера для зондов
type EmitterFrame struct {
	ID              string     `json:"id"`
	Position        mgl32.Vec3 `json:"position"`
	Alive           int        `json:"alive"`
	Spawned         uint64     `json:"spawned"`
	Collisions      uint64     `json:"collisions"`
	Submerged       int        `json:"submerged"`
	Areas           int        `json:"areas"`
	Underwater      string     `json:"underwater"`
	Centroid        mgl32.Vec3 `json:"centroid"`
	MeanSpeed       float32    `json:"mean_speed"`
	BoundsMin       mgl32.Vec3 `json:"bounds_min"`
	BoundsMax       mgl32.Vec3 `json:"bounds_max"`
	NonUniformFlags uint32     `json:"non_uniform_flags"`
}

// Emitter источник частиц со своим локальным снимком окружения
type Emitter struct {
	cfg        EmitterConfig
	particles  []Particle
	local      *environ.Snapshot
	bounds     entity.AABB
	rng        *rand.Rand
	spawnAccum float32

	spawned    uint64
	collisions uint64
}

func newEmitter(cfg EmitterConfig, local *environ.Snapshot) *Emitter {
	h := fnv.New64a()
	h.Write([]byte(cfg.ID))
	seed := h.Sum64()

	return &Emitter{
		cfg:    cfg,
		local:  local,
		bounds: entity.EmptyAABB(),
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Particles возвращает живые частицы эмиттера (только для чтения)
func (e *Emitter) Particles() []Particle {
	return e.particles
}

// Local возвращает локальный снимок окружения эмиттера
func (e *Emitter) Local() *environ.Snapshot {
	return e.local
}

// ParticleSystem система частиц: обновляет локальные снимки эмиттеров,
// интегрирует частицы по силам окружения и обрабатывает столкновения
type ParticleSystem struct {
	name     string
	priority int
	env      environment.EnvironmentPort
	logger   *log.Logger

	maxParticles int

	emitters map[string]*Emitter
	order    []string

	// Последние кадры для зондов, читаются из других горутин
	framesMutex sync.RWMutex
	frames      []EmitterFrame
}

// NewParticleSystem создает систему частиц
func NewParticleSystem(env environment.EnvironmentPort, maxParticles int, logger *log.Logger) *ParticleSystem {
	if logger == nil {
		logger = log.Default()
	}
	if maxParticles <= 0 {
		maxParticles = 256
	}
	return &ParticleSystem{
		name:         "ParticleSystem",
		priority:     20, // После окружения и кинематики
		env:          env,
		logger:       logger,
		maxParticles: maxParticles,
		emitters:     make(map[string]*Emitter),
	}
}

// AddEmitter добавляет эмиттер. Вызывается до запуска цикла или из потока симуляции.
func (ps *ParticleSystem) AddEmitter(cfg EmitterConfig) (*Emitter, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("emitter: empty id")
	}
	if _, exists := ps.emitters[cfg.ID]; exists {
		return nil, fmt.Errorf("emitter %s: already exists", cfg.ID)
	}
	if cfg.Lifetime <= 0 || cfg.SpawnRate < 0 || cfg.Radius < 0 {
		return nil, fmt.Errorf("emitter %s: invalid lifetime, rate or radius", cfg.ID)
	}

	e := newEmitter(cfg, ps.env.NewLocal())
	ps.emitters[cfg.ID] = e
	ps.order = append(ps.order, cfg.ID)

	ps.logger.Printf("[ParticleSystem] Эмиттер %s в (%.1f, %.1f, %.1f): %.1f частиц/с, жизнь %v",
		cfg.ID, cfg.Position.X(), cfg.Position.Y(), cfg.Position.Z(), cfg.SpawnRate, cfg.Lifetime)
	return e, nil
}

// RemoveEmitter удаляет эмиттер и освобождает его снимок
func (ps *ParticleSystem) RemoveEmitter(id string) bool {
	e, exists := ps.emitters[id]
	if !exists {
		return false
	}
	e.local.Release()
	delete(ps.emitters, id)
	for i, eid := range ps.order {
		if eid == id {
			ps.order = append(ps.order[:i], ps.order[i+1:]...)
			break
		}
	}
	return true
}

// Emitter возвращает эмиттер по ID
func (ps *ParticleSystem) Emitter(id string) (*Emitter, bool) {
	e, ok := ps.emitters[id]
	return e, ok
}

// Update продвигает все эмиттеры на deltaTime
func (ps *ParticleSystem) Update(deltaTime time.Duration) error {
	dt := float32(deltaTime.Seconds())
	if dt <= 0 {
		return nil
	}

	cfg := world.GetParticleConfig()
	frames := make([]EmitterFrame, 0, len(ps.order))

	for _, id := range ps.order {
		e := ps.emitters[id]
		ps.spawn(e, dt)
		ps.refreshLocal(e, dt)
		ps.integrate(e, dt, cfg)
		frames = append(frames, e.frame())
	}

	ps.framesMutex.Lock()
	ps.frames = frames
	ps.framesMutex.Unlock()

	return nil
}

// spawn выпускает новые частицы по накопленной норме
func (ps *ParticleSystem) spawn(e *Emitter, dt float32) {
	e.spawnAccum += e.cfg.SpawnRate * dt
	for e.spawnAccum >= 1 {
		e.spawnAccum--
		if len(e.particles) >= ps.maxParticles {
			continue
		}
		e.particles = append(e.particles, Particle{
			Position: e.cfg.Position,
			Velocity: e.randomDirection().Mul(e.cfg.Speed),
		})
		e.spawned++
	}
}

// randomDirection случайное направление в конусе вокруг +Z
func (e *Emitter) randomDirection() mgl32.Vec3 {
	theta := e.rng.Float64() * float64(e.cfg.Spread)
	phi := e.rng.Float64() * 2 * math.Pi
	s := math.Sin(theta)
	return mgl32.Vec3{
		float32(s * math.Cos(phi)),
		float32(s * math.Sin(phi)),
		float32(math.Cos(theta)),
	}
}

// refreshLocal перестраивает локальный снимок по боксу, который частицы
// могут занять за этот тик
func (ps *ParticleSystem) refreshLocal(e *Emitter, dt float32) {
	box := entity.EmptyAABB().Extend(e.cfg.Position)
	reach := e.cfg.Speed * dt
	for i := range e.particles {
		p := &e.particles[i]
		box = box.Extend(p.Position)
		if step := p.Velocity.Len() * dt; step > reach {
			reach = step
		}
	}
	e.bounds = box.Inflate(reach + e.cfg.Radius)

	ps.env.RefreshLocal(e.local, e.bounds, e.cfg.Indoors, environ.EnvPhysAreas, e.cfg.Owner)
}

// integrate продвигает частицы: гравитация, сопротивление среды, плавучесть, столкновения
func (ps *ParticleSystem) integrate(e *Emitter, dt float32, cfg world.ParticleConfig) {
	lifetime := float32(e.cfg.Lifetime.Seconds())
	underwater := e.local.Underwater()

	alive := e.particles[:0]
	for _, p := range e.particles {
		p.Age += dt
		if p.Age >= lifetime {
			continue
		}

		forces := ps.env.SampleAt(e.local, p.Position, environ.EnvForces)

		switch underwater {
		case entity.True:
			p.Underwater = true
		case entity.False:
			p.Underwater = false
		default:
			// Бокс пересекает поверхность: уточняем по плоскости воды в точке
			_, dist := ps.env.WaterPlaneAt(e.local, p.Position)
			p.Underwater = dist < 0
		}

		var accel mgl32.Vec3
		if p.Underwater {
			accel = forces.Accel.Mul(1 - cfg.Buoyancy).Sub(p.Velocity.Mul(cfg.WaterDrag))
		} else {
			accel = forces.Accel.Add(forces.Wind.Sub(p.Velocity).Mul(cfg.AirDrag))
		}
		p.Velocity = p.Velocity.Add(accel.Mul(dt))

		end := p.Position.Add(p.Velocity.Mul(dt))
		if e.cfg.Collide != 0 {
			if hit, ok := ps.env.Collide(e.local, p.Position, end, e.cfg.Radius, e.cfg.Collide, physics.NoEntity); ok {
				end = hit.Position(p.Position, end)
				p.Velocity = bounce(p.Velocity, hit.Normal, cfg.Restitution, cfg.SurfaceFriction)
				e.collisions++
			}
		}
		p.Position = end

		alive = append(alive, p)
	}

	// Обнуляем хвост, чтобы не держать старые значения
	for i := len(alive); i < len(e.particles); i++ {
		e.particles[i] = Particle{}
	}
	e.particles = alive
}

// bounce отражает скорость от поверхности: нормальная составляющая
// гасится коэффициентом восстановления, касательная трением
func bounce(v, normal mgl32.Vec3, restitution, friction float32) mgl32.Vec3 {
	vn := normal.Mul(v.Dot(normal))
	vt := v.Sub(vn)
	return vt.Mul(1 - friction).Sub(vn.Mul(restitution))
}

// frame собирает сводку эмиттера
func (e *Emitter) frame() EmitterFrame {
	f := EmitterFrame{
		ID:              e.cfg.ID,
		Position:        e.cfg.Position,
		Alive:           len(e.particles),
		Spawned:         e.spawned,
		Collisions:      e.collisions,
		Areas:           len(e.local.Areas()),
		Underwater:      e.local.Underwater().String(),
		NonUniformFlags: uint32(e.local.NonUniformFlags()),
		BoundsMin:       e.bounds.Min,
		BoundsMax:       e.bounds.Max,
	}
	if len(e.particles) == 0 {
		f.Centroid = e.cfg.Position
		return f
	}

	var sum mgl32.Vec3
	var speed float32
	for _, p := range e.particles {
		sum = sum.Add(p.Position)
		speed += p.Velocity.Len()
		if p.Underwater {
			f.Submerged++
		}
	}
	n := float32(len(e.particles))
	f.Centroid = sum.Mul(1 / n)
	f.MeanSpeed = speed / n
	return f
}

// Frames возвращает кадры последнего тика
func (ps *ParticleSystem) Frames() []EmitterFrame {
	ps.framesMutex.RLock()
	defer ps.framesMutex.RUnlock()

	result := make([]EmitterFrame, len(ps.frames))
	copy(result, ps.frames)
	return result
}

// GetName возвращает имя системы
func (ps *ParticleSystem) GetName() string {
	return ps.name
}

// GetPriority возвращает приоритет системы
func (ps *ParticleSystem) GetPriority() int {
	return ps.priority
}
