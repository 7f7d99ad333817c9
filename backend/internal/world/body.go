package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"x-fields/backend/internal/core/domain/entity"
)

// BodyHit результат трассировки луча по телу
type BodyHit struct {
	Dist   float32
	Point  mgl32.Vec3
	Normal mgl32.Vec3
}

// Bounds возвращает мировые границы тела
func (b *Body) Bounds() entity.AABB {
	if b.Shape == ShapeSphere {
		return entity.AABBFromCenter(b.Position, mgl32.Vec3{b.Radius, b.Radius, b.Radius})
	}
	return entity.AABBFromCenter(b.Position, b.HalfExtents)
}

// RayCast ищет пересечение отрезка start..start+move с поверхностью тела.
// Луч, начинающийся внутри тела, не дает попадания.
func (b *Body) RayCast(start, move mgl32.Vec3) (BodyHit, bool) {
	length := move.Len()
	if length == 0 {
		return BodyHit{}, false
	}
	dir := move.Mul(1 / length)

	if b.Shape == ShapeSphere {
		return b.raySphere(start, dir, length)
	}
	return b.rayBox(start, dir, length)
}

func (b *Body) raySphere(start, dir mgl32.Vec3, length float32) (BodyHit, bool) {
	oc := start.Sub(b.Position)
	c := oc.LenSqr() - b.Radius*b.Radius
	if c <= 0 {
		return BodyHit{}, false
	}
	half := oc.Dot(dir)
	disc := half*half - c
	if half > 0 || disc < 0 {
		return BodyHit{}, false
	}

	dist := -half - float32(math.Sqrt(float64(disc)))
	if dist < 0 || dist > length {
		return BodyHit{}, false
	}
	point := start.Add(dir.Mul(dist))
	return BodyHit{Dist: dist, Point: point, Normal: point.Sub(b.Position).Normalize()}, true
}

// rayBox метод плит для осе-ориентированного бокса, нормаль берется
// по оси входной плиты
func (b *Body) rayBox(start, dir mgl32.Vec3, length float32) (BodyHit, bool) {
	box := b.Bounds()
	if box.Contains(start) {
		return BodyHit{}, false
	}

	tMin, tMax := float32(0), length
	axis, sign := -1, float32(0)

	for i := 0; i < 3; i++ {
		if dir[i] == 0 {
			if start[i] < box.Min[i] || start[i] > box.Max[i] {
				return BodyHit{}, false
			}
			continue
		}
		inv := 1 / dir[i]
		t1 := (box.Min[i] - start[i]) * inv
		t2 := (box.Max[i] - start[i]) * inv
		faceSign := float32(-1)
		if t1 > t2 {
			t1, t2 = t2, t1
			faceSign = 1
		}
		if t1 > tMin {
			tMin, axis, sign = t1, i, faceSign
		}
		if t2 < tMax {
			tMax = t2
		}
		if tMin > tMax {
			return BodyHit{}, false
		}
	}
	if axis < 0 {
		return BodyHit{}, false
	}

	var normal mgl32.Vec3
	normal[axis] = sign
	return BodyHit{Dist: tMin, Point: start.Add(dir.Mul(tMin)), Normal: normal}, true
}
