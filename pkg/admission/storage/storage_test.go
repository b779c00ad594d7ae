package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"clubline-hq/saturn/pkg/admission/window"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()

	sqlite, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatalf("NewSQLiteBackend() error = %v", err)
	}

	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"sqlite": sqlite,
	}
}

func sampleStates(ts time.Time) []window.State {
	return []window.State{
		{
			Kind: window.KindHourly,
			Buckets: []window.BucketState{
				{Timestamp: ts, Cost: 12.5},
				{Timestamp: ts.Add(time.Minute), Cost: 3.0},
			},
		},
		{
			Kind:    window.KindMinutely,
			Buckets: []window.BucketState{{Timestamp: ts, Cost: 1.0}},
		},
	}
}

func TestBackend_SaveAndLoadAll(t *testing.T) {
	ts := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer backend.Close()
			ctx := context.Background()

			if err := backend.Save(ctx, "user:42", sampleStates(ts)); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			loaded, err := backend.LoadAll(ctx)
			if err != nil {
				t.Fatalf("LoadAll() error = %v", err)
			}

			states, ok := loaded["user:42"]
			if !ok || len(states) != 2 {
				t.Fatalf("LoadAll() = %v, want two window states for user:42", loaded)
			}
			if states[0].Buckets[0].Cost != 12.5 {
				t.Errorf("bucket cost = %v, want 12.5", states[0].Buckets[0].Cost)
			}
			if !states[0].Buckets[0].Timestamp.Equal(ts) {
				t.Errorf("bucket timestamp = %v, want %v", states[0].Buckets[0].Timestamp, ts)
			}
		})
	}
}

func TestBackend_SaveOverwrites(t *testing.T) {
	ts := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer backend.Close()
			ctx := context.Background()

			backend.Save(ctx, "user:42", sampleStates(ts))
			backend.Save(ctx, "user:42", []window.State{
				{
					Kind:    window.KindHourly,
					Buckets: []window.BucketState{{Timestamp: ts, Cost: 99.0}},
				},
			})

			loaded, _ := backend.LoadAll(ctx)
			states := loaded["user:42"]
			if len(states) != 1 || states[0].Buckets[0].Cost != 99.0 {
				t.Errorf("second Save() did not replace the first: %v", states)
			}
		})
	}
}

func TestBackend_Cleanup(t *testing.T) {
	ts := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer backend.Close()
			ctx := context.Background()

			backend.Save(ctx, "user:42", sampleStates(ts))

			removed, err := backend.Cleanup(ctx, time.Now().Add(time.Hour))
			if err != nil {
				t.Fatalf("Cleanup() error = %v", err)
			}
			if removed != 1 {
				t.Errorf("Cleanup() removed %d, want 1", removed)
			}

			loaded, _ := backend.LoadAll(ctx)
			if len(loaded) != 0 {
				t.Errorf("snapshots remain after cleanup: %v", loaded)
			}
		})
	}
}

func TestSQLiteBackend_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.db")
	ts := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	first, err := NewSQLiteBackend(path)
	if err != nil {
		t.Fatalf("NewSQLiteBackend() error = %v", err)
	}
	first.Save(ctx, "user:42", sampleStates(ts))
	first.Close()

	second, err := NewSQLiteBackend(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer second.Close()

	loaded, err := second.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() after reopen error = %v", err)
	}
	if len(loaded["user:42"]) != 2 {
		t.Errorf("snapshot lost across reopen: %v", loaded)
	}
}
