package world

import (
	"encoding/json"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestDescription_TransfersWorld(t *testing.T) {
	src := NewManager(nil)
	if err := PopulateDemoWorld(src); err != nil {
		t.Fatal(err)
	}

	desc, err := src.Describe()
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if desc.Terrain == nil || len(desc.Terrain.Heights) == 0 {
		t.Fatalf("terrain blob missing")
	}

	data, err := json.Marshal(desc)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Description
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	dst := NewManager(nil)
	if err := dst.Load(decoded); err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Одинаковые запросы к обоим мирам дают одинаковый результат
	probe := mgl32.Vec3{40, 20, 0}
	h1, ok1 := src.Terrain().Height(probe.X(), probe.Y())
	h2, ok2 := dst.Terrain().Height(probe.X(), probe.Y())
	if !ok1 || !ok2 || h1 != h2 {
		t.Errorf("terrain heights differ: %v vs %v", h1, h2)
	}

	v1, _ := src.Volume("updraft")
	v2, ok := dst.Volume("updraft")
	if !ok {
		t.Fatalf("updraft volume lost")
	}
	p := v1.Position.Add(mgl32.Vec3{2, 1, 5})
	_, w1, _ := v1.ForcesAt(p)
	_, w2, _ := v2.ForcesAt(p)
	if w1 != w2 {
		t.Errorf("volume forces differ after transfer: %v vs %v", w1, w2)
	}

	ids1, ids2 := src.VolumeIDs(), dst.VolumeIDs()
	if len(ids1) != len(ids2) {
		t.Fatalf("volume count differs")
	}
	for i := range ids1 {
		if ids1[i] != ids2[i] {
			t.Errorf("volume order differs at %d: %s vs %s", i, ids1[i], ids2[i])
		}
	}
}

func TestLoad_RejectsDuplicateIDs(t *testing.T) {
	m := NewManager(nil)
	err := m.Load(Description{Volumes: []Volume{{ID: "a"}, {ID: "a"}}})
	if err == nil {
		t.Fatalf("duplicate volume ids must be rejected")
	}
	if m.Revision() != 0 {
		t.Errorf("failed load must not change the world")
	}
}
