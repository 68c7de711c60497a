package instance

import "testing"

func TestGetIDPrefersWorkerID(t *testing.T) {
	t.Setenv("WORKER_ID", "settlement-worker-2")
	t.Setenv("DYNO", "web.1")
	if got := GetID(); got != "settlement-worker-2" {
		t.Fatalf("expected worker id, got %q", got)
	}
}

func TestGetIDFallsBackToDyno(t *testing.T) {
	t.Setenv("WORKER_ID", "")
	t.Setenv("DYNO", "web.1")
	if got := GetID(); got != "web.1" {
		t.Fatalf("expected dyno, got %q", got)
	}
}
