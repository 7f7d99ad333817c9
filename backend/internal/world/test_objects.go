package world

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// DemoTerrainOrigin центрирует демо-террейн в начале координат
var DemoTerrainOrigin = mgl32.Vec3{
	-DemoTerrainCellSize * (DemoTerrainGridSize - 1) / 2,
	-DemoTerrainCellSize * (DemoTerrainGridSize - 1) / 2,
	0,
}

// AmbientVolumeID объем глобальных сил мира
const AmbientVolumeID = "ambient"

// AmbientVolume возвращает глобальный объем с гравитацией и ветром из
// конфигурации мира. Он должен идти первым: гравитация следующих объемов
// перезаписывает глобальную.
func AmbientVolume() Volume {
	cfg := GetWorldConfig()
	v := Volume{
		ID:         AmbientVolumeID,
		Shape:      ShapeGlobal,
		Rotation:   mgl32.QuatIdent(),
		Gravity:    cfg.Gravity,
		HasGravity: true,
		Mode:       FieldDirectional,
	}
	if cfg.WindEnabled {
		v.Medium = MediumAir
		v.Flow = cfg.Wind
	}
	return v
}

// PopulateDemoWorld наполняет мир демонстрационными объектами:
// глобальные силы, террейн, озеро, восходящий поток, гравитационный колодец,
// ветровой коридор, несколько тел и зону ветра в долине
func PopulateDemoWorld(m *Manager) error {
	heights := GenerateHeights(DemoTerrainGridSize, DemoTerrainGridSize, DemoTerrainMinHeight, DemoTerrainMaxHeight)
	terrain, err := NewTerrain(DemoTerrainGridSize, DemoTerrainGridSize, DemoTerrainCellSize, DemoTerrainOrigin, heights)
	if err != nil {
		return fmt.Errorf("demo terrain: %w", err)
	}
	m.SetTerrain(terrain)

	ground := func(x, y float32) float32 {
		h, ok := terrain.Height(x, y)
		if !ok {
			return 0
		}
		return h
	}

	volumes := []Volume{
		AmbientVolume(),
		{
			ID:          "lake",
			Shape:       ShapeBox,
			Position:    mgl32.Vec3{-70, -70, -10},
			Rotation:    mgl32.QuatIdent(),
			HalfExtents: mgl32.Vec3{50, 50, 15},
			Medium:      MediumWater,
			WaterLevel:  0,
			Mode:        FieldDirectional,
		},
		{
			ID:          "updraft",
			Shape:       ShapeCylinder,
			Position:    mgl32.Vec3{40, 20, ground(40, 20) + 25},
			Rotation:    mgl32.QuatIdent(),
			HalfExtents: mgl32.Vec3{10, 0, 25},
			Medium:      MediumAir,
			Flow:        mgl32.Vec3{0, 0, 6},
			Mode:        FieldDirectional,
			Falloff0:    0.5,
		},
		{
			ID:          "gravity_well",
			Shape:       ShapeSphere,
			Position:    mgl32.Vec3{0, 60, ground(0, 60) + 30},
			Rotation:    mgl32.QuatIdent(),
			HalfExtents: mgl32.Vec3{15, 0, 0},
			Gravity:     mgl32.Vec3{0, 0, -20},
			HasGravity:  true,
			Mode:        FieldRadial,
			Falloff0:    0.2,
		},
		{
			ID:          "canyon_wind",
			Shape:       ShapeBox,
			Position:    mgl32.Vec3{-30, 50, ground(-30, 50) + 10},
			Rotation:    mgl32.QuatRotate(mgl32.DegToRad(30), mgl32.Vec3{0, 0, 1}),
			HalfExtents: mgl32.Vec3{30, 8, 10},
			Medium:      MediumAir,
			Flow:        mgl32.Vec3{5, 0, 0},
			Mode:        FieldRotated,
			Falloff0:    0.7,
			OutdoorOnly: true,
		},
	}
	for _, v := range volumes {
		if err := m.AddVolume(v); err != nil {
			return fmt.Errorf("demo volume: %w", err)
		}
	}

	bodies := []Body{
		{
			ID:          "rock",
			Kind:        BodyStatic,
			Shape:       ShapeBox,
			Position:    mgl32.Vec3{10, -10, ground(10, -10) + 2},
			HalfExtents: mgl32.Vec3{4, 3, 2},
			SurfaceID:   1,
		},
		{
			ID:        "boulder",
			Kind:      BodyStatic,
			Shape:     ShapeSphere,
			Position:  mgl32.Vec3{-15, 20, ground(-15, 20) + 3},
			Radius:    3,
			SurfaceID: 1,
		},
		{
			ID:        "drone",
			Kind:      BodyDynamic,
			Shape:     ShapeSphere,
			Position:  mgl32.Vec3{0, 0, ground(0, 0) + 20},
			Radius:    1.5,
			SurfaceID: 2,
		},
	}
	for _, b := range bodies {
		if err := m.AddBody(b); err != nil {
			return fmt.Errorf("demo body: %w", err)
		}
	}

	m.AddWindZone(WindZone{
		ID:   "valley",
		Min:  mgl32.Vec3{-120, -120, -50},
		Max:  mgl32.Vec3{0, 0, 40},
		Wind: mgl32.Vec3{0, 1.5, 0},
	})

	m.logger.Printf("[World] Демо-мир создан: объемов %d, тел %d", len(volumes), len(bodies))
	return nil
}
