package world

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// WorldPhysicsConfig содержит глобальные силы мира
type WorldPhysicsConfig struct {
	// Гравитация мира (ось Z вверх)
	Gravity mgl32.Vec3

	// Глобальный ветер; WindEnabled == false означает отсутствие ветра
	Wind        mgl32.Vec3
	WindEnabled bool
}

// ParticleConfig содержит физические характеристики частиц
type ParticleConfig struct {
	AirDrag         float32 // Коэффициент увлечения частицы ветром, 1/с
	WaterDrag       float32 // Коэффициент сопротивления под водой, 1/с
	Buoyancy        float32 // Доля гравитации, компенсируемая водой
	Restitution     float32 // Упругость отскока от поверхностей
	SurfaceFriction float32 // Потеря касательной скорости при отскоке
}

// PhysicsConfig объединяет все конфигурации
type PhysicsConfig struct {
	World    WorldPhysicsConfig
	Particle ParticleConfig
}

var (
	physicsConfig PhysicsConfig
	configMutex   sync.RWMutex
)

// Инициализация конфигурации по умолчанию
func init() {
	physicsConfig = DefaultPhysicsConfig()
}

// DefaultPhysicsConfig возвращает конфигурацию по умолчанию
func DefaultPhysicsConfig() PhysicsConfig {
	return PhysicsConfig{
		World: WorldPhysicsConfig{
			Gravity:     mgl32.Vec3{0, 0, -9.81},
			Wind:        mgl32.Vec3{2, 0, 0},
			WindEnabled: true,
		},
		Particle: ParticleConfig{
			AirDrag:         0.8,
			WaterDrag:       3.0,
			Buoyancy:        0.9,
			Restitution:     0.4,
			SurfaceFriction: 0.2,
		},
	}
}

// GetPhysicsConfig возвращает текущую конфигурацию физики
func GetPhysicsConfig() PhysicsConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return physicsConfig
}

// SetPhysicsConfig устанавливает новую конфигурацию физики
func SetPhysicsConfig(config PhysicsConfig) {
	configMutex.Lock()
	defer configMutex.Unlock()
	physicsConfig = config
}

// GetWorldConfig возвращает только конфигурацию мира
func GetWorldConfig() WorldPhysicsConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return physicsConfig.World
}

// SetWorldConfig заменяет глобальные силы мира
func SetWorldConfig(config WorldPhysicsConfig) {
	configMutex.Lock()
	defer configMutex.Unlock()
	physicsConfig.World = config
}

// GetParticleConfig возвращает только конфигурацию частиц
func GetParticleConfig() ParticleConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return physicsConfig.Particle
}
