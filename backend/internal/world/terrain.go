package world

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"x-fields/backend/internal/core/domain/entity"
)

// Константы демо-террейна
const (
	DemoTerrainGridSize = 64  // Число узлов по каждой оси
	DemoTerrainCellSize = 4.0 // Шаг сетки в метрах

	DemoTerrainMinHeight = -20.0
	DemoTerrainMaxHeight = 30.0

	// Число шагов бисекции при уточнении пересечения луча
	terrainBisectSteps = 16
)

var ErrTerrainSize = errors.New("terrain: heights do not match grid size")

// Terrain карта высот с осью Z вверх. Узел (i, j) лежит в точке
// Origin + (i*CellSize, j*CellSize, Heights[j*Width+i]).
type Terrain struct {
	Width    int
	Depth    int
	CellSize float32
	Origin   mgl32.Vec3
	Heights  []float32

	bounds entity.AABB // считается один раз в NewTerrain
}

// TerrainHit результат трассировки луча по террейну
type TerrainHit struct {
	Dist   float32 // расстояние от начала луча
	Point  mgl32.Vec3
	Normal mgl32.Vec3
}

// NewTerrain создает террейн и проверяет размеры сетки
func NewTerrain(width, depth int, cellSize float32, origin mgl32.Vec3, heights []float32) (*Terrain, error) {
	if width < 2 || depth < 2 || cellSize <= 0 {
		return nil, fmt.Errorf("terrain: invalid grid %dx%d cell %.2f", width, depth, cellSize)
	}
	if len(heights) != width*depth {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrTerrainSize, len(heights), width*depth)
	}
	t := &Terrain{
		Width:    width,
		Depth:    depth,
		CellSize: cellSize,
		Origin:   origin,
		Heights:  heights,
	}
	t.bounds = t.measure()
	return t, nil
}

// Bounds возвращает мировые границы террейна
func (t *Terrain) Bounds() entity.AABB {
	return t.bounds
}

func (t *Terrain) measure() entity.AABB {
	lo, hi := float32(math.Inf(1)), float32(math.Inf(-1))
	for _, h := range t.Heights {
		lo = float32(math.Min(float64(lo), float64(h)))
		hi = float32(math.Max(float64(hi), float64(h)))
	}
	size := mgl32.Vec3{float32(t.Width-1) * t.CellSize, float32(t.Depth-1) * t.CellSize, 0}
	return entity.AABB{
		Min: t.Origin.Add(mgl32.Vec3{0, 0, lo}),
		Max: t.Origin.Add(mgl32.Vec3{size.X(), size.Y(), hi}),
	}
}

func (t *Terrain) at(i, j int) float32 {
	return t.Heights[j*t.Width+i]
}

// Height возвращает высоту в мировой точке (x, y) билинейной интерполяцией.
// false, если точка вне сетки.
func (t *Terrain) Height(x, y float32) (float32, bool) {
	gx := (x - t.Origin.X()) / t.CellSize
	gy := (y - t.Origin.Y()) / t.CellSize
	maxX, maxY := float32(t.Width-1), float32(t.Depth-1)
	if !(gx >= 0 && gy >= 0 && gx <= maxX && gy <= maxY) {
		return 0, false
	}

	i := int(gx)
	j := int(gy)
	if i >= t.Width-1 {
		i = t.Width - 2
	}
	if j >= t.Depth-1 {
		j = t.Depth - 2
	}
	fx, fy := gx-float32(i), gy-float32(j)

	h0 := t.at(i, j) + (t.at(i+1, j)-t.at(i, j))*fx
	h1 := t.at(i, j+1) + (t.at(i+1, j+1)-t.at(i, j+1))*fx
	return t.Origin.Z() + h0 + (h1-h0)*fy, true
}

// Normal возвращает нормаль поверхности по центральным разностям
func (t *Terrain) Normal(x, y float32) mgl32.Vec3 {
	step := t.CellSize * 0.5
	sample := func(px, py float32) float32 {
		h, ok := t.Height(px, py)
		if !ok {
			h, _ = t.Height(
				mgl32.Clamp(px, t.Origin.X(), t.Origin.X()+float32(t.Width-1)*t.CellSize),
				mgl32.Clamp(py, t.Origin.Y(), t.Origin.Y()+float32(t.Depth-1)*t.CellSize))
		}
		return h
	}
	dx := (sample(x+step, y) - sample(x-step, y)) / (2 * step)
	dy := (sample(x, y+step) - sample(x, y-step)) / (2 * step)
	return mgl32.Vec3{-dx, -dy, 1}.Normalize()
}

// RayTrace ищет первое пересечение отрезка start..start+move с поверхностью
// сверху вниз. Отрезок сначала обрезается по границам террейна, затем
// проходится шагами в полклетки, точка уточняется бисекцией.
func (t *Terrain) RayTrace(start, move mgl32.Vec3) (TerrainHit, bool) {
	length := move.Len()
	if !(length > 0) || math.IsInf(float64(length), 0) {
		return TerrainHit{}, false
	}
	dir := move.Mul(1 / length)

	step := t.CellSize * 0.5
	from, to, ok := clipSegment(t.bounds.Inflate(step), start, dir, length)
	if !ok {
		return TerrainHit{}, false
	}

	above := func(dist float32) (float32, bool) {
		p := start.Add(dir.Mul(dist))
		h, ok := t.Height(p.X(), p.Y())
		return p.Z() - h, ok
	}

	steps := int(math.Ceil(float64((to - from) / step)))

	prevValid := false
	var prevDist, prevAbove float32
	for s := 0; s <= steps; s++ {
		dist := float32(math.Min(float64(from+float32(s)*step), float64(to)))
		a, ok := above(dist)
		if !ok {
			prevValid = false
			continue
		}

		if prevValid && prevAbove > 0 && a <= 0 {
			lo, hi := prevDist, dist
			for k := 0; k < terrainBisectSteps; k++ {
				mid := (lo + hi) * 0.5
				if m, ok := above(mid); !ok || m > 0 {
					lo = mid
				} else {
					hi = mid
				}
			}
			point := start.Add(dir.Mul(hi))
			return TerrainHit{Dist: hi, Point: point, Normal: t.Normal(point.X(), point.Y())}, true
		}

		prevValid, prevDist, prevAbove = true, dist, a
	}
	return TerrainHit{}, false
}

// clipSegment возвращает участок [from, to] луча start+dir*d, d в [0, length],
// лежащий внутри бокса (метод слэбов)
func clipSegment(box entity.AABB, start, dir mgl32.Vec3, length float32) (float32, float32, bool) {
	t0, t1 := 0.0, float64(length)
	for axis := 0; axis < 3; axis++ {
		s, d := float64(start[axis]), float64(dir[axis])
		lo, hi := float64(box.Min[axis]), float64(box.Max[axis])
		if d == 0 {
			if !(s >= lo && s <= hi) {
				return 0, 0, false
			}
			continue
		}
		a, b := (lo-s)/d, (hi-s)/d
		if a > b {
			a, b = b, a
		}
		t0, t1 = math.Max(t0, a), math.Min(t1, b)
		// NaN в координатах тоже отсекается здесь
		if !(t0 <= t1) {
			return 0, 0, false
		}
	}
	return float32(t0), float32(t1), true
}

// perlinNoise2D - псевдо-шум на хеш-функции
func perlinNoise2D(x, y float64) float64 {
	h := x*12.9898 + y*78.233
	sinH := math.Abs(math.Sin(h) * 43758.5453)
	return sinH - math.Floor(sinH)
}

// smoothNoise - сглаженный шум с билинейной интерполяцией по smoothstep
func smoothNoise(x, y float64) float64 {
	x0, y0 := math.Floor(x), math.Floor(y)
	sx := (x - x0) * (x - x0) * (3.0 - 2.0*(x-x0))
	sy := (y - y0) * (y - y0) * (3.0 - 2.0*(y-y0))

	lerp := func(a, b, t float64) float64 { return a + t*(b-a) }
	top := lerp(perlinNoise2D(x0, y0), perlinNoise2D(x0+1, y0), sx)
	bottom := lerp(perlinNoise2D(x0, y0+1), perlinNoise2D(x0+1, y0+1), sx)
	return lerp(top, bottom, sy)
}

// GenerateHeights генерирует карту высот w*d: фрактальный шум, несколько гор
// и понижение к краям, где образуются низины под воду
func GenerateHeights(w, d int, minHeight, maxHeight float32) []float32 {
	data := make([]float32, w*d)

	octaves := []struct{ scale, amplitude float64 }{
		{1.0, 0.5}, {0.5, 0.25}, {0.25, 0.125}, {0.125, 0.0625},
	}

	// Фиксированные позиции гор для воспроизводимости
	peaks := []struct{ x, y float64 }{
		{0.25, 0.3}, {0.7, 0.75}, {0.45, 0.65}, {0.8, 0.25},
	}
	type mountain struct{ x, y, height, radius float64 }
	mountains := make([]mountain, len(peaks))
	for i, p := range peaks {
		mountains[i] = mountain{
			x:      p.x * float64(w),
			y:      p.y * float64(d),
			height: 0.5 + 0.5*perlinNoise2D(float64(i)*0.1, 0.5),
			radius: float64(w) * (0.08 + 0.12*perlinNoise2D(0.5, float64(i)*0.1)),
		}
	}

	cx, cy := float64(w)/2, float64(d)/2
	inner := math.Min(cx, cy) * 0.8
	heightRange := float64(maxHeight - minHeight)

	for j := 0; j < d; j++ {
		for i := 0; i < w; i++ {
			nx := float64(i) / float64(w-1)
			ny := float64(j) / float64(d-1)

			elevation := 0.0
			for _, o := range octaves {
				elevation += smoothNoise(nx*o.scale*10, ny*o.scale*10) * o.amplitude
			}
			elevation = (elevation + 0.5) * 0.5

			for _, m := range mountains {
				dist := math.Hypot(float64(i)-m.x, float64(j)-m.y)
				if dist < m.radius {
					falloff := 1 - dist/m.radius
					elevation += m.height * falloff * falloff * 0.8
				}
			}

			// Низины по краям карты
			if r := math.Hypot(float64(i)-cx, float64(j)-cy); r > inner {
				edge := math.Min(1, (r-inner)/(math.Max(cx, cy)-inner))
				elevation -= edge * 0.5
			}

			data[j*w+i] = float32(elevation*heightRange) + minHeight
		}
	}

	return data
}
