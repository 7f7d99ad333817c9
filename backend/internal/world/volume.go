package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"x-fields/backend/internal/core/domain/entity"
)

// maxFalloffScale ограничение масштаба затухания при falloff0 -> 1
const maxFalloffScale float32 = 1e9

// orientation возвращает нормализованный поворот (нулевой считается единичным)
func (v *Volume) orientation() mgl32.Quat {
	if v.Rotation == (mgl32.Quat{}) {
		return mgl32.QuatIdent()
	}
	return v.Rotation.Normalize()
}

// GeometryHalf возвращает половинные размеры геометрии в локальных осях
func (v *Volume) GeometryHalf() mgl32.Vec3 {
	switch v.Shape {
	case ShapeSphere:
		r := v.HalfExtents.X()
		return mgl32.Vec3{r, r, r}
	case ShapeCylinder:
		r := v.HalfExtents.X()
		return mgl32.Vec3{r, r, v.HalfExtents.Z()}
	default:
		return v.HalfExtents
	}
}

// HasForces сообщает, задает ли объем гравитацию или ветер
func (v *Volume) HasForces() bool {
	return v.HasGravity || v.Medium == MediumAir
}

// Bounds возвращает мировые границы объема
func (v *Volume) Bounds() entity.AABB {
	if v.Shape == ShapeGlobal {
		inf := float32(math.Inf(1))
		return entity.AABB{
			Min: mgl32.Vec3{-inf, -inf, -inf},
			Max: mgl32.Vec3{inf, inf, inf},
		}
	}
	rot := v.orientation()
	local := entity.AABBFromCenter(mgl32.Vec3{}, v.GeometryHalf())
	box := entity.EmptyAABB()
	for _, c := range local.Corners() {
		box = box.Extend(v.Position.Add(rot.Rotate(c)))
	}
	return box
}

// LocalDistance возвращает нормированное расстояние точки от центра
// (1 - граница объема) и смещение точки от центра в мировых осях
func (v *Volume) LocalDistance(p mgl32.Vec3) (float32, mgl32.Vec3) {
	rel := p.Sub(v.Position)
	if v.Shape == ShapeGlobal {
		return 0, rel
	}

	half := v.GeometryHalf()
	local := v.orientation().Inverse().Rotate(rel)
	local = mgl32.Vec3{local.X() / half.X(), local.Y() / half.Y(), local.Z() / half.Z()}
	if local.LenSqr() == 0 {
		return 0, rel
	}

	switch v.Shape {
	case ShapeBox:
		return absMax3(local), rel
	case ShapeCylinder:
		radial := mgl32.Vec2{local.X(), local.Y()}.Len()
		return float32(math.Max(float64(radial), math.Abs(float64(local.Z())))), rel
	default:
		return local.Len(), rel
	}
}

func absMax3(v mgl32.Vec3) float32 {
	return float32(math.Max(math.Max(
		math.Abs(float64(v.X())),
		math.Abs(float64(v.Y()))),
		math.Abs(float64(v.Z()))))
}

// falloffScale возвращает 1/(1-falloff0) с насыщением
func (v *Volume) falloffScale() float32 {
	den := 1 - v.Falloff0
	if den <= 0 || den*maxFalloffScale <= 1 {
		return maxFalloffScale
	}
	return 1 / den
}

// Contains проверяет, что точка внутри объема
func (v *Volume) Contains(p mgl32.Vec3) bool {
	d, _ := v.LocalDistance(p)
	return d <= 1
}

// WaterPlane возвращает поверхность воды объема
func (v *Volume) WaterPlane() entity.Plane {
	return entity.PlaneFromPoint(mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 0, v.WaterLevel})
}

// ForcesAt вычисляет гравитацию и ветер объема в точке.
// inside == false, если точка вне объема.
func (v *Volume) ForcesAt(p mgl32.Vec3) (gravity, wind mgl32.Vec3, inside bool) {
	d, rel := v.LocalDistance(p)
	if d > 1 {
		return mgl32.Vec3{}, mgl32.Vec3{}, false
	}

	strength := (1 - d) * v.falloffScale()
	if strength > 1 {
		strength = 1
	}

	gravity, wind = v.Gravity, v.Flow
	switch {
	case v.Mode == FieldRotated:
		rot := v.orientation()
		gravity, wind = rot.Rotate(gravity), rot.Rotate(wind)
	case v.Mode == FieldRadial && d > 0:
		// Радиальное поле: величина берется из Z-компоненты
		dir := rel.Normalize()
		gravity, wind = dir.Mul(gravity.Z()), dir.Mul(wind.Z())
	}

	return gravity.Mul(strength), wind.Mul(strength), true
}

// CoverageOf определяет, как объем действует в регионе. Регион покрыт
// однородно, если целиком лежит в зоне полной силы и поле не радиальное.
func (v *Volume) CoverageOf(region entity.AABB) Coverage {
	if v.Shape == ShapeGlobal {
		return CoverageUniform
	}
	if region.IsEmpty() || !v.Bounds().Intersects(region) {
		return CoverageNone
	}

	threshold := float32(1)
	if v.HasForces() {
		if v.Mode == FieldRadial {
			return CoverageVaried
		}
		threshold = 1 - 1/v.falloffScale()
	}

	for _, c := range region.Corners() {
		if d, _ := v.LocalDistance(c); d > threshold {
			return CoverageVaried
		}
	}
	return CoverageUniform
}
