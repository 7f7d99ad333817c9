package transport

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"google.golang.org/protobuf/encoding/protowire"

	"x-fields/backend/internal/world"
)

// Ответ Describe передается как wrapperspb.BytesValue, внутри которого лежит
// сообщение protobuf со следующей схемой:
//
//	message DescribeResponse { uint64 revision = 1; bool changed = 2; Description description = 3; }
//	message Description { uint64 revision = 1; repeated Volume volumes = 2; repeated Body bodies = 3;
//	                      repeated WindZone wind_zones = 4; TerrainBlob terrain = 5; }
//	message Volume { string id = 1; string owner = 2; int32 shape = 3; Vec3 position = 4; Quat rotation = 5;
//	                 Vec3 half_extents = 6; Vec3 gravity = 7; bool has_gravity = 8; int32 medium = 9;
//	                 Vec3 flow = 10; float water_level = 11; int32 mode = 12; float falloff0 = 13;
//	                 bool outdoor_only = 14; }
//	message Body { string id = 1; int32 kind = 2; int32 shape = 3; Vec3 position = 4; Vec3 half_extents = 5;
//	               float radius = 6; int64 surface_id = 7; }
//	message WindZone { string id = 1; Vec3 min = 2; Vec3 max = 3; Vec3 wind = 4; }
//	message TerrainBlob { int32 width = 1; int32 depth = 2; float cell_size = 3; Vec3 origin = 4; bytes heights = 5; }
//
// Vec3 и Quat кодируются как packed repeated float (3 и 4 значения, W первым).

var ErrMalformedWire = errors.New("transport: malformed world sync message")

// MarshalWire кодирует ответ в protobuf
func (r *DescribeResponse) MarshalWire() []byte {
	var b []byte
	b = appendVarint(b, 1, r.Revision)
	b = appendBool(b, 2, r.Changed)
	if r.Description != nil {
		b = appendMessage(b, 3, appendDescription(nil, r.Description))
	}
	return b
}

// UnmarshalWire разбирает ответ, закодированный MarshalWire
func (r *DescribeResponse) UnmarshalWire(data []byte) error {
	*r = DescribeResponse{}
	err := walkFields(data, func(f wireField) error {
		switch f.num {
		case 1:
			r.Revision = f.u
		case 2:
			r.Changed = f.u != 0
		case 3:
			desc := new(world.Description)
			if err := decodeDescription(f.bytes, desc); err != nil {
				return fmt.Errorf("description: %w", err)
			}
			r.Description = desc
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedWire, err)
	}
	return nil
}

// Запись полей

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendInt(b []byte, num protowire.Number, v int) []byte {
	return appendVarint(b, num, uint64(int64(v)))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	return appendVarint(b, num, protowire.EncodeBool(v))
}

func appendFloat(b []byte, num protowire.Number, v float32) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(v))
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendFloats(b []byte, num protowire.Number, vs ...float32) []byte {
	packed := make([]byte, 0, 4*len(vs))
	for _, v := range vs {
		packed = protowire.AppendFixed32(packed, math.Float32bits(v))
	}
	return appendMessage(b, num, packed)
}

func appendVec(b []byte, num protowire.Number, v mgl32.Vec3) []byte {
	return appendFloats(b, num, v[0], v[1], v[2])
}

func appendDescription(b []byte, d *world.Description) []byte {
	b = appendVarint(b, 1, d.Revision)
	for i := range d.Volumes {
		b = appendMessage(b, 2, appendVolume(nil, &d.Volumes[i]))
	}
	for i := range d.Bodies {
		b = appendMessage(b, 3, appendBody(nil, &d.Bodies[i]))
	}
	for i := range d.WindZones {
		z := &d.WindZones[i]
		var zb []byte
		zb = appendString(zb, 1, z.ID)
		zb = appendVec(zb, 2, z.Min)
		zb = appendVec(zb, 3, z.Max)
		zb = appendVec(zb, 4, z.Wind)
		b = appendMessage(b, 4, zb)
	}
	if t := d.Terrain; t != nil {
		var tb []byte
		tb = appendInt(tb, 1, t.Width)
		tb = appendInt(tb, 2, t.Depth)
		tb = appendFloat(tb, 3, t.CellSize)
		tb = appendVec(tb, 4, t.Origin)
		tb = appendMessage(tb, 5, t.Heights)
		b = appendMessage(b, 5, tb)
	}
	return b
}

func appendVolume(b []byte, v *world.Volume) []byte {
	b = appendString(b, 1, v.ID)
	b = appendString(b, 2, v.Owner)
	b = appendInt(b, 3, int(v.Shape))
	b = appendVec(b, 4, v.Position)
	b = appendFloats(b, 5, v.Rotation.W, v.Rotation.V[0], v.Rotation.V[1], v.Rotation.V[2])
	b = appendVec(b, 6, v.HalfExtents)
	b = appendVec(b, 7, v.Gravity)
	b = appendBool(b, 8, v.HasGravity)
	b = appendInt(b, 9, int(v.Medium))
	b = appendVec(b, 10, v.Flow)
	b = appendFloat(b, 11, v.WaterLevel)
	b = appendInt(b, 12, int(v.Mode))
	b = appendFloat(b, 13, v.Falloff0)
	b = appendBool(b, 14, v.OutdoorOnly)
	return b
}

func appendBody(b []byte, body *world.Body) []byte {
	b = appendString(b, 1, body.ID)
	b = appendInt(b, 2, int(body.Kind))
	b = appendInt(b, 3, int(body.Shape))
	b = appendVec(b, 4, body.Position)
	b = appendVec(b, 5, body.HalfExtents)
	b = appendFloat(b, 6, body.Radius)
	b = appendInt(b, 7, body.SurfaceID)
	return b
}

// Чтение полей

// wireField одно поле сообщения: u для varint и fixed32, bytes для length-delimited
type wireField struct {
	num   protowire.Number
	typ   protowire.Type
	u     uint64
	bytes []byte
}

func (f wireField) float() float32 {
	return math.Float32frombits(uint32(f.u))
}

func (f wireField) int() int {
	return int(int64(f.u))
}

func (f wireField) floats(n int) ([]float32, error) {
	if f.typ != protowire.BytesType || len(f.bytes) != 4*n {
		return nil, fmt.Errorf("field %d: want %d packed floats", f.num, n)
	}
	out := make([]float32, n)
	data := f.bytes
	for i := range out {
		v, _ := protowire.ConsumeFixed32(data)
		out[i] = math.Float32frombits(v)
		data = data[4:]
	}
	return out, nil
}

func (f wireField) vec() (mgl32.Vec3, error) {
	vs, err := f.floats(3)
	if err != nil {
		return mgl32.Vec3{}, err
	}
	return mgl32.Vec3{vs[0], vs[1], vs[2]}, nil
}

// walkFields обходит поля сообщения; неизвестные типы полей пропускаются
func walkFields(data []byte, visit func(wireField) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		f := wireField{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.u, n = protowire.ConsumeVarint(data)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(data)
			f.u = uint64(v)
		case protowire.Fixed64Type:
			f.u, n = protowire.ConsumeFixed64(data)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(data)
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
		}
		if n < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
		}
		data = data[n:]

		if err := visit(f); err != nil {
			return err
		}
	}
	return nil
}

func decodeDescription(data []byte, d *world.Description) error {
	return walkFields(data, func(f wireField) error {
		switch f.num {
		case 1:
			d.Revision = f.u
		case 2:
			var v world.Volume
			if err := decodeVolume(f.bytes, &v); err != nil {
				return fmt.Errorf("volume: %w", err)
			}
			d.Volumes = append(d.Volumes, v)
		case 3:
			var body world.Body
			if err := decodeBody(f.bytes, &body); err != nil {
				return fmt.Errorf("body: %w", err)
			}
			d.Bodies = append(d.Bodies, body)
		case 4:
			var z world.WindZone
			if err := decodeWindZone(f.bytes, &z); err != nil {
				return fmt.Errorf("wind zone: %w", err)
			}
			d.WindZones = append(d.WindZones, z)
		case 5:
			t := new(world.TerrainBlob)
			if err := decodeTerrainBlob(f.bytes, t); err != nil {
				return fmt.Errorf("terrain: %w", err)
			}
			d.Terrain = t
		}
		return nil
	})
}

func decodeVolume(data []byte, v *world.Volume) error {
	v.Rotation = mgl32.QuatIdent()
	return walkFields(data, func(f wireField) error {
		var err error
		switch f.num {
		case 1:
			v.ID = string(f.bytes)
		case 2:
			v.Owner = string(f.bytes)
		case 3:
			v.Shape = world.ShapeType(f.int())
		case 4:
			v.Position, err = f.vec()
		case 5:
			var q []float32
			if q, err = f.floats(4); err == nil {
				v.Rotation = mgl32.Quat{W: q[0], V: mgl32.Vec3{q[1], q[2], q[3]}}
			}
		case 6:
			v.HalfExtents, err = f.vec()
		case 7:
			v.Gravity, err = f.vec()
		case 8:
			v.HasGravity = f.u != 0
		case 9:
			v.Medium = world.Medium(f.int())
		case 10:
			v.Flow, err = f.vec()
		case 11:
			v.WaterLevel = f.float()
		case 12:
			v.Mode = world.FieldMode(f.int())
		case 13:
			v.Falloff0 = f.float()
		case 14:
			v.OutdoorOnly = f.u != 0
		}
		return err
	})
}

func decodeBody(data []byte, body *world.Body) error {
	return walkFields(data, func(f wireField) error {
		var err error
		switch f.num {
		case 1:
			body.ID = string(f.bytes)
		case 2:
			body.Kind = world.BodyKind(f.int())
		case 3:
			body.Shape = world.ShapeType(f.int())
		case 4:
			body.Position, err = f.vec()
		case 5:
			body.HalfExtents, err = f.vec()
		case 6:
			body.Radius = f.float()
		case 7:
			body.SurfaceID = f.int()
		}
		return err
	})
}

func decodeWindZone(data []byte, z *world.WindZone) error {
	return walkFields(data, func(f wireField) error {
		var err error
		switch f.num {
		case 1:
			z.ID = string(f.bytes)
		case 2:
			z.Min, err = f.vec()
		case 3:
			z.Max, err = f.vec()
		case 4:
			z.Wind, err = f.vec()
		}
		return err
	})
}

func decodeTerrainBlob(data []byte, t *world.TerrainBlob) error {
	return walkFields(data, func(f wireField) error {
		var err error
		switch f.num {
		case 1:
			t.Width = f.int()
		case 2:
			t.Depth = f.int()
		case 3:
			t.CellSize = f.float()
		case 4:
			t.Origin, err = f.vec()
		case 5:
			t.Heights = append([]byte(nil), f.bytes...)
		}
		return err
	})
}
