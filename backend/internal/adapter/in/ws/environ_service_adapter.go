package ws

import (
	"github.com/go-gl/mathgl/mgl32"

	"x-fields/backend/internal/core/domain/environ"
	"x-fields/backend/internal/core/port/in/environment"
	"x-fields/backend/internal/core/port/out/physics"
	"x-fields/backend/internal/game"
)

// FrameBuilder источник кадров окружения
type FrameBuilder interface {
	BuildFrame() game.EnvironFrame
}

// EnvironServiceAdapter адаптирует порт окружения для использования с интерфейсом ProbePort
type EnvironServiceAdapter struct {
	env    environment.EnvironmentPort
	frames FrameBuilder
}

var _ ProbePort = (*EnvironServiceAdapter)(nil)

// NewEnvironServiceAdapter создает новый адаптер для сервиса окружения
func NewEnvironServiceAdapter(env environment.EnvironmentPort, frames FrameBuilder) *EnvironServiceAdapter {
	return &EnvironServiceAdapter{
		env:    env,
		frames: frames,
	}
}

// Sample возвращает силы мирового снимка в точке
func (a *EnvironServiceAdapter) Sample(pos mgl32.Vec3) SampleResult {
	forces := a.env.SampleAt(nil, pos, environ.EnvForces)
	_, dist := a.env.WaterPlaneAt(nil, pos)
	return SampleResult{
		Type:       MessageTypeSampleResult,
		Position:   pos,
		Accel:      safeVec(forces.Accel),
		Wind:       safeVec(forces.Wind),
		WaterDist:  safeValue(dist, 0),
		Underwater: dist < 0,
	}
}

// Collide проверяет столкновение частицы со всеми категориями мира
func (a *EnvironServiceAdapter) Collide(from, to mgl32.Vec3, radius float32) CollideResult {
	result := CollideResult{Type: MessageTypeCollideResult}
	hit, ok := a.env.Collide(nil, from, to, radius, environ.EnvCollision, physics.NoEntity)
	if !ok {
		return result
	}
	result.Hit = true
	result.Fraction = hit.Fraction
	result.Point = safeVec(hit.Point)
	result.Normal = safeVec(hit.Normal)
	result.Entity = string(hit.Entity)
	result.Terrain = hit.Terrain
	result.SurfaceID = hit.SurfaceID
	return result
}

// Frame возвращает текущий кадр окружения
func (a *EnvironServiceAdapter) Frame() game.EnvironFrame {
	return a.frames.BuildFrame()
}
