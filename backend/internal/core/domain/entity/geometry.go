package entity

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// WaterLevelUnknown высота "отсутствующей" воды: любая разумная точка мира выше нее
const WaterLevelUnknown float32 = -1e6

// AABB представляет осе-ориентированный ограничивающий параллелепипед
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// NewAABB создает бокс по двум углам
func NewAABB(min, max mgl32.Vec3) AABB {
	return AABB{Min: min, Max: max}
}

// AABBFromCenter создает бокс по центру и половинным размерам
func AABBFromCenter(center, halfSize mgl32.Vec3) AABB {
	return AABB{Min: center.Sub(halfSize), Max: center.Add(halfSize)}
}

// EmptyAABB возвращает "сброшенный" бокс, который не пересекается ни с чем
func EmptyAABB() AABB {
	inf := float32(math.Inf(1))
	return AABB{
		Min: mgl32.Vec3{inf, inf, inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}
}

// IsEmpty сообщает, что бокс вырожден (min > max хотя бы по одной оси)
func (b AABB) IsEmpty() bool {
	return b.Min.X() > b.Max.X() || b.Min.Y() > b.Max.Y() || b.Min.Z() > b.Max.Z()
}

// Size возвращает полный размер бокса
func (b AABB) Size() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}

// HalfSize возвращает половинный размер бокса
func (b AABB) HalfSize() mgl32.Vec3 {
	return b.Size().Mul(0.5)
}

// Center возвращает центр бокса
func (b AABB) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Intersects проверяет пересечение двух боксов (касание считается пересечением)
func (b AABB) Intersects(o AABB) bool {
	for i := 0; i < 3; i++ {
		if b.Max[i] < o.Min[i] || o.Max[i] < b.Min[i] {
			return false
		}
	}
	return true
}

// Contains проверяет, что точка лежит внутри бокса
func (b AABB) Contains(p mgl32.Vec3) bool {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] || p[i] > b.Max[i] {
			return false
		}
	}
	return true
}

// Extend расширяет бокс так, чтобы он включал точку
func (b AABB) Extend(p mgl32.Vec3) AABB {
	for i := 0; i < 3; i++ {
		b.Min[i] = float32(math.Min(float64(b.Min[i]), float64(p[i])))
		b.Max[i] = float32(math.Max(float64(b.Max[i]), float64(p[i])))
	}
	return b
}

// Inflate раздувает бокс на r по всем осям
func (b AABB) Inflate(r float32) AABB {
	d := mgl32.Vec3{r, r, r}
	return AABB{Min: b.Min.Sub(d), Max: b.Max.Add(d)}
}

// Corners возвращает восемь углов бокса
func (b AABB) Corners() [8]mgl32.Vec3 {
	var corners [8]mgl32.Vec3
	for i := 0; i < 8; i++ {
		p := b.Min
		if i&1 != 0 {
			p[0] = b.Max[0]
		}
		if i&2 != 0 {
			p[1] = b.Max[1]
		}
		if i&4 != 0 {
			p[2] = b.Max[2]
		}
		corners[i] = p
	}
	return corners
}

// Plane задает плоскость уравнением n·p + D = 0.
// Для водной плоскости нормаль смотрит из воды наружу: отрицательное
// расстояние означает, что точка под водой.
type Plane struct {
	Normal mgl32.Vec3
	D      float32
}

// PlaneFromPoint строит плоскость по нормали и точке на ней
func PlaneFromPoint(normal, point mgl32.Vec3) Plane {
	n := normal.Normalize()
	return Plane{Normal: n, D: -n.Dot(point)}
}

// NoWaterPlane возвращает плоскость "воды нет": поверхность далеко внизу
func NoWaterPlane() Plane {
	return PlaneFromPoint(mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 0, WaterLevelUnknown})
}

// Distance возвращает знаковое расстояние от точки до плоскости
func (p Plane) Distance(pt mgl32.Vec3) float32 {
	return p.Normal.Dot(pt) + p.D
}

// Project проецирует точку на плоскость
func (p Plane) Project(pt mgl32.Vec3) mgl32.Vec3 {
	return pt.Sub(p.Normal.Mul(p.Distance(pt)))
}

// BoxDistances возвращает минимальное и максимальное знаковое расстояние
// от точек бокса до плоскости
func (p Plane) BoxDistances(b AABB) (float32, float32) {
	center := p.Distance(b.Center())
	half := b.HalfSize()
	var extent float32
	for i := 0; i < 3; i++ {
		extent += float32(math.Abs(float64(p.Normal[i] * half[i])))
	}
	return center - extent, center + extent
}

// ClassifyBox определяет положение бокса относительно водной плоскости:
// целиком над водой - False, целиком под водой - True, пересекает - Unknown
func (p Plane) ClassifyBox(b AABB) Trinary {
	lo, hi := p.BoxDistances(b)
	switch {
	case lo > 0:
		return False
	case hi < 0:
		return True
	default:
		return Unknown
	}
}
