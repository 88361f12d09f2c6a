package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"movie-mate/config"
	"movie-mate/model"
	"movie-mate/remote"
	"movie-mate/scheduler"
	"movie-mate/storage"
)

func TestRatingSyncJobDropsRejectedRatings(t *testing.T) {
	var rated atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/movies/1/rate/" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"Movie not found"}`))
			return
		}
		rated.Add(1)
		w.Write([]byte(`{"message":"ok"}`))
	}))
	defer srv.Close()

	store := storage.NewSQLiteStorage(t.TempDir())
	if err := store.Initialize(); err != nil {
		t.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	for id, rating := range map[int]int{1: 4, 2: 5, 3: 3} {
		if err := store.SetRating(id, rating); err != nil {
			t.Fatalf("Failed to set rating: %v", err)
		}
	}
	if err := store.SetSession(model.Session{Token: "tok"}); err != nil {
		t.Fatalf("Failed to set session: %v", err)
	}

	remoteCfg := config.Default().Remote
	client := remote.NewClient(remote.Config{APIBaseURL: srv.URL + "/api", Timeout: time.Second})
	job := newRatingSyncJob(remoteCfg, store, client)

	result, err := job.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if result.Synced != 2 || result.Rejected != 1 || result.Pending != 0 {
		t.Errorf("Unexpected result %+v", result)
	}
	if rated.Load() != 2 {
		t.Errorf("Expected movies 2 and 3 upstream, got %d calls", rated.Load())
	}

	pending, err := store.GetPendingRatings()
	if err != nil {
		t.Fatalf("Failed to read pending ratings: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("Expected the queue to be drained, got %v", pending)
	}
}

func TestRatingSyncJobOffline(t *testing.T) {
	store := storage.NewSQLiteStorage(t.TempDir())
	if err := store.Initialize(); err != nil {
		t.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	job := newRatingSyncJob(config.Default().Remote, store, nil)
	result, err := job.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if result != (scheduler.SyncResult{}) {
		t.Errorf("Expected an idle pass offline, got %+v", result)
	}
}
