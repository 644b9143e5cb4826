package cron

import (
	"context"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	badgeJob := &stubJob{name: "badge-lifecycle"}
	cleanupJob := &stubJob{name: "notification-cleanup"}
	registry := NewRegistry(badgeJob, nil, cleanupJob)

	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0] != badgeJob || jobs[1] != cleanupJob {
		t.Fatalf("jobs returned out of order")
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	registry := NewRegistry(&stubJob{name: "badge-lifecycle"})
	if err := registry.Register(&stubJob{name: "badge-lifecycle"}); err == nil {
		t.Fatal("expected duplicate name error")
	}
	if err := registry.Register(nil); err == nil {
		t.Fatal("expected nil job error")
	}
	var zero Registry
	if err := zero.Register(&stubJob{name: "x"}); err != nil {
		t.Fatalf("zero registry should accept jobs: %v", err)
	}
	if len(NewRegistry(&stubJob{name: "a"}, &stubJob{name: "a"}).Jobs()) != 1 {
		t.Fatal("constructor should drop repeated names")
	}
}
