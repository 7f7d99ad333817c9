package physics

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeSyncer struct {
	results []bool
	err     error
	calls   int
}

func (f *fakeSyncer) Sync(ctx context.Context) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	if len(f.results) == 0 {
		return false, nil
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r, nil
}

func TestSyncClient_SyncOnceNotifiesOnChange(t *testing.T) {
	syncer := &fakeSyncer{results: []bool{true, false}}
	notified := 0
	client := NewSyncClient(syncer, time.Second, func() { notified++ }, nil)

	if !client.SyncOnce(context.Background()) {
		t.Fatalf("first sync must report a change")
	}
	if client.SyncOnce(context.Background()) {
		t.Fatalf("second sync must report no change")
	}
	if notified != 1 {
		t.Errorf("onChange calls = %d, want 1", notified)
	}
}

func TestSyncClient_ErrorIsSwallowed(t *testing.T) {
	syncer := &fakeSyncer{err: errors.New("unavailable")}
	notified := false
	client := NewSyncClient(syncer, time.Second, func() { notified = true }, nil)

	if client.SyncOnce(context.Background()) || notified {
		t.Fatalf("failed sync must not report a change")
	}
	if syncer.calls != 1 {
		t.Errorf("calls = %d, want 1", syncer.calls)
	}
}

func TestSyncClient_RunStopsOnCancel(t *testing.T) {
	syncer := &fakeSyncer{}
	client := NewSyncClient(syncer, time.Millisecond, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		client.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}
