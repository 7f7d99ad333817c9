package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/encoding/protowire"

	"x-fields/backend/internal/world"
)

const bufSize = 1 << 20

// startWorldSync поднимает сервер WorldSync поверх bufconn
func startWorldSync(t *testing.T, m *world.Manager) WorldSyncClient {
	t.Helper()
	lis := bufconn.Listen(bufSize)
	server, _ := ServeWorldSync(lis, m, nil)
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewWorldSyncClient(conn)
}

func TestWorldSync_Describe(t *testing.T) {
	m := world.NewManager(nil)
	if err := world.PopulateDemoWorld(m); err != nil {
		t.Fatal(err)
	}
	client := startWorldSync(t, m)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Describe(ctx, &DescribeRequest{})
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if !resp.Changed || resp.Description == nil {
		t.Fatalf("first request must carry the description")
	}
	if resp.Revision != m.Revision() || len(resp.Description.Volumes) != len(m.VolumeIDs()) {
		t.Errorf("description mismatch: revision %d volumes %d", resp.Revision, len(resp.Description.Volumes))
	}

	// Ревизия не изменилась: описание не передается
	resp, err = client.Describe(ctx, &DescribeRequest{KnownRevision: resp.Revision})
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if resp.Changed || resp.Description != nil {
		t.Errorf("unchanged revision must not resend the world")
	}

	m.MoveBody("drone", mgl32.Vec3{1, 2, 3})
	resp, err = client.Describe(ctx, &DescribeRequest{KnownRevision: resp.Revision})
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if !resp.Changed {
		t.Errorf("moved body must produce a new description")
	}
}

func TestDescribeResponse_WireRoundTrip(t *testing.T) {
	m := world.NewManager(nil)
	if err := world.PopulateDemoWorld(m); err != nil {
		t.Fatal(err)
	}
	desc, err := m.Describe()
	if err != nil {
		t.Fatal(err)
	}
	desc.Bodies = append(desc.Bodies, world.Body{ID: "marker", SurfaceID: -3, Radius: 0.25})

	var got DescribeResponse
	if err := got.UnmarshalWire((&DescribeResponse{Revision: desc.Revision, Changed: true, Description: &desc}).MarshalWire()); err != nil {
		t.Fatalf("UnmarshalWire: %v", err)
	}
	if !got.Changed || got.Revision != desc.Revision || got.Description == nil {
		t.Fatalf("header mismatch: %+v", got)
	}

	gd := got.Description
	if gd.Revision != desc.Revision {
		t.Errorf("description revision = %d, want %d", gd.Revision, desc.Revision)
	}
	if len(gd.Volumes) != len(desc.Volumes) || len(gd.Bodies) != len(desc.Bodies) || len(gd.WindZones) != len(desc.WindZones) {
		t.Fatalf("counts differ: %d/%d/%d, want %d/%d/%d",
			len(gd.Volumes), len(gd.Bodies), len(gd.WindZones),
			len(desc.Volumes), len(desc.Bodies), len(desc.WindZones))
	}
	for i := range desc.Volumes {
		if !reflect.DeepEqual(gd.Volumes[i], desc.Volumes[i]) {
			t.Errorf("volume %d = %+v, want %+v", i, gd.Volumes[i], desc.Volumes[i])
		}
	}
	for i := range desc.Bodies {
		if gd.Bodies[i] != desc.Bodies[i] {
			t.Errorf("body %d = %+v, want %+v", i, gd.Bodies[i], desc.Bodies[i])
		}
	}
	for i := range desc.WindZones {
		if gd.WindZones[i] != desc.WindZones[i] {
			t.Errorf("wind zone %d = %+v, want %+v", i, gd.WindZones[i], desc.WindZones[i])
		}
	}
	if !reflect.DeepEqual(gd.Terrain, desc.Terrain) {
		t.Errorf("terrain blob differs")
	}
}

func TestDescribeResponse_UnmarshalMalformed(t *testing.T) {
	full := (&DescribeResponse{Revision: 5, Changed: true, Description: &world.Description{
		Revision:  5,
		WindZones: []world.WindZone{{ID: "gust", Max: mgl32.Vec3{1, 1, 1}}},
	}}).MarshalWire()

	var resp DescribeResponse
	if err := resp.UnmarshalWire(full[:len(full)-3]); !errors.Is(err, ErrMalformedWire) {
		t.Errorf("truncated message: expected ErrMalformedWire, got %v", err)
	}

	// Vec3 из двух чисел вместо трех
	zone := protowire.AppendTag(nil, 2, protowire.BytesType)
	zone = protowire.AppendBytes(zone, make([]byte, 8))
	desc := protowire.AppendTag(nil, 4, protowire.BytesType)
	desc = protowire.AppendBytes(desc, zone)
	msg := protowire.AppendTag(nil, 3, protowire.BytesType)
	msg = protowire.AppendBytes(msg, desc)
	if err := resp.UnmarshalWire(msg); !errors.Is(err, ErrMalformedWire) {
		t.Errorf("short vector: expected ErrMalformedWire, got %v", err)
	}

	// Пустое сообщение - ответ без изменений
	if err := resp.UnmarshalWire(nil); err != nil || resp.Changed || resp.Description != nil {
		t.Errorf("empty message = %+v, %v", resp, err)
	}
}

func TestSnappyCompressor(t *testing.T) {
	payload := bytes.Repeat([]byte("heightmap "), 500)

	var buf bytes.Buffer
	w, err := snappyCompressor{}.Compress(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(payload); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if buf.Len() >= len(payload) {
		t.Errorf("repetitive payload must shrink: %d >= %d", buf.Len(), len(payload))
	}

	r, err := snappyCompressor{}.Decompress(&buf)
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("decompressed payload differs")
	}
}
