package world

import (
	"github.com/go-gl/mathgl/mgl32"
)

// ShapeType форма объема или тела
type ShapeType int

const (
	// ShapeGlobal объем без границ, действует во всем мире
	ShapeGlobal ShapeType = iota
	ShapeBox
	ShapeSphere
	ShapeCylinder
)

func (s ShapeType) String() string {
	switch s {
	case ShapeBox:
		return "box"
	case ShapeSphere:
		return "sphere"
	case ShapeCylinder:
		return "cylinder"
	default:
		return "global"
	}
}

// Medium среда объема
type Medium int

const (
	MediumNone Medium = iota
	MediumWater
	MediumAir
)

// FieldMode направление сил объема
type FieldMode int

const (
	FieldRadial FieldMode = iota
	FieldDirectional
	FieldRotated
)

// Volume объем сил или воды в физическом мире
type Volume struct {
	ID       string     `json:"id"`
	Owner    string     `json:"owner,omitempty"`
	Shape    ShapeType  `json:"shape"`
	Position mgl32.Vec3 `json:"position"`
	Rotation mgl32.Quat `json:"rotation"`
	// HalfExtents для бокса - половинные размеры, для сферы X - радиус,
	// для цилиндра X - радиус, Z - половина высоты
	HalfExtents mgl32.Vec3 `json:"half_extents"`

	Gravity    mgl32.Vec3 `json:"gravity"`
	HasGravity bool       `json:"has_gravity"`
	Medium     Medium     `json:"medium"`
	Flow       mgl32.Vec3 `json:"flow"`
	WaterLevel float32    `json:"water_level"` // высота поверхности воды (нормаль +Z)

	Mode        FieldMode `json:"mode"`
	Falloff0    float32   `json:"falloff0"`
	OutdoorOnly bool      `json:"outdoor_only"`
}

// BodyKind категория тела для трассировки
type BodyKind int

const (
	BodyStatic BodyKind = iota
	BodyDynamic
)

// Body твердое тело (сфера или осе-ориентированный бокс)
type Body struct {
	ID          string     `json:"id"`
	Kind        BodyKind   `json:"kind"`
	Shape       ShapeType  `json:"shape"`
	Position    mgl32.Vec3 `json:"position"`
	HalfExtents mgl32.Vec3 `json:"half_extents"`
	Radius      float32    `json:"radius"`
	SurfaceID   int        `json:"surface_id"`
}

// WindZone бокс локального ветра
type WindZone struct {
	ID   string     `json:"id"`
	Min  mgl32.Vec3 `json:"min"`
	Max  mgl32.Vec3 `json:"max"`
	Wind mgl32.Vec3 `json:"wind"`
}

// Coverage покрытие региона объемом
type Coverage int

const (
	CoverageNone    Coverage = iota // объем не задевает регион
	CoverageUniform                 // внутри региона действие одинаково
	CoverageVaried                  // действие меняется по региону
)
