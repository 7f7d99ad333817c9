package world

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/klauspost/compress/zstd"
)

// Description сериализуемое описание мира для синхронизации
type Description struct {
	Revision  uint64       `json:"revision"`
	Volumes   []Volume     `json:"volumes"`
	Bodies    []Body       `json:"bodies"`
	WindZones []WindZone   `json:"wind_zones"`
	Terrain   *TerrainBlob `json:"terrain,omitempty"`
}

// TerrainBlob карта высот, сжатая zstd (float32 little-endian)
type TerrainBlob struct {
	Width    int        `json:"width"`
	Depth    int        `json:"depth"`
	CellSize float32    `json:"cell_size"`
	Origin   mgl32.Vec3 `json:"origin"`
	Heights  []byte     `json:"heights_zstd"`
}

// EncodeTerrain упаковывает террейн в blob
func EncodeTerrain(t *Terrain) (*TerrainBlob, error) {
	raw := make([]byte, 4*len(t.Heights))
	for i, h := range t.Heights {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(h))
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("terrain encoder: %w", err)
	}
	defer enc.Close()

	return &TerrainBlob{
		Width:    t.Width,
		Depth:    t.Depth,
		CellSize: t.CellSize,
		Origin:   t.Origin,
		Heights:  enc.EncodeAll(raw, nil),
	}, nil
}

// DecodeTerrain распаковывает blob в террейн
func DecodeTerrain(blob *TerrainBlob) (*Terrain, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("terrain decoder: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(blob.Heights, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress heights: %w", err)
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTerrainSize, len(raw))
	}

	heights := make([]float32, len(raw)/4)
	for i := range heights {
		heights[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return NewTerrain(blob.Width, blob.Depth, blob.CellSize, blob.Origin, heights)
}

// Describe снимает описание текущего состояния мира
func (m *Manager) Describe() (Description, error) {
	m.mu.RLock()
	desc := Description{
		Revision:  m.revision,
		Volumes:   make([]Volume, 0, len(m.volumeOrder)),
		Bodies:    make([]Body, 0, len(m.bodyOrder)),
		WindZones: append([]WindZone(nil), m.windZones...),
	}
	for _, id := range m.volumeOrder {
		desc.Volumes = append(desc.Volumes, *m.volumes[id])
	}
	for _, id := range m.bodyOrder {
		desc.Bodies = append(desc.Bodies, *m.bodies[id])
	}
	terrain := m.terrain
	m.mu.RUnlock()

	if terrain != nil {
		blob, err := EncodeTerrain(terrain)
		if err != nil {
			return Description{}, err
		}
		desc.Terrain = blob
	}
	return desc, nil
}

// Load заменяет содержимое мира описанием за одно изменение ревизии
func (m *Manager) Load(desc Description) error {
	var terrain *Terrain
	if desc.Terrain != nil {
		t, err := DecodeTerrain(desc.Terrain)
		if err != nil {
			return fmt.Errorf("load terrain: %w", err)
		}
		terrain = t
	}

	volumes := make(map[string]*Volume, len(desc.Volumes))
	volumeOrder := make([]string, 0, len(desc.Volumes))
	for i := range desc.Volumes {
		v := desc.Volumes[i]
		if _, dup := volumes[v.ID]; dup || v.ID == "" {
			return fmt.Errorf("load volume %q: duplicate or empty id", v.ID)
		}
		volumes[v.ID] = &v
		volumeOrder = append(volumeOrder, v.ID)
	}

	bodies := make(map[string]*Body, len(desc.Bodies))
	bodyOrder := make([]string, 0, len(desc.Bodies))
	for i := range desc.Bodies {
		b := desc.Bodies[i]
		if _, dup := bodies[b.ID]; dup || b.ID == "" {
			return fmt.Errorf("load body %q: duplicate or empty id", b.ID)
		}
		bodies[b.ID] = &b
		bodyOrder = append(bodyOrder, b.ID)
	}

	m.mu.Lock()
	m.volumes, m.volumeOrder = volumes, volumeOrder
	m.bodies, m.bodyOrder = bodies, bodyOrder
	m.windZones = append([]WindZone(nil), desc.WindZones...)
	m.terrain = terrain
	listeners := m.bump()
	m.mu.Unlock()

	m.logger.Printf("[World] Загружено описание мира: объемов %d, тел %d, зон ветра %d",
		len(volumeOrder), len(bodyOrder), len(desc.WindZones))
	fire(listeners, ChangeVolume, "")
	return nil
}
