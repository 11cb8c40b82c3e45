package bot

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/edgard/readwiser/internal/bot/tasks"
	"github.com/edgard/readwiser/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerRegistersEnabledTasks(t *testing.T) {
	t.Parallel()

	cfg := &config.SchedulerConfig{
		Timezone: "Europe/Berlin",
		Tasks: map[string]config.TaskConfig{
			config.TaskDigest:         {Enabled: true, DayOfWeek: "sun", Hour: 9},
			config.TaskDailyQuote:     {Enabled: false, Hour: 8},
			config.TaskSQLMaintenance: {Enabled: true, DayOfWeek: "mon", Hour: 3, Minute: 30},
			"unknown":                 {Enabled: true},
		},
	}
	noop := func(context.Context) error { return nil }
	taskMap := map[string]tasks.ScheduledTaskFunc{
		config.TaskDigest:         noop,
		config.TaskDailyQuote:     noop,
		config.TaskSQLMaintenance: noop,
	}

	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	s, err := NewScheduler(testLogger(), cfg, taskMap, clock)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })

	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start() returned nil error")
	}

	var names []string
	for _, job := range s.Jobs() {
		names = append(names, job.Name())
	}
	sort.Strings(names)
	want := []string{config.TaskDigest, config.TaskSQLMaintenance}
	if len(names) != len(want) || names[0] != want[0] || names[1] != want[1] {
		t.Errorf("scheduled jobs = %v, want %v", names, want)
	}
}

func TestSchedulerRunsTask(t *testing.T) {
	t.Parallel()

	ran := make(chan struct{}, 1)
	taskMap := map[string]tasks.ScheduledTaskFunc{
		config.TaskDailyQuote: func(context.Context) error {
			ran <- struct{}{}
			return nil
		},
	}
	cfg := &config.SchedulerConfig{
		Timezone: "UTC",
		Tasks:    map[string]config.TaskConfig{config.TaskDailyQuote: {Enabled: true, Hour: 8}},
	}

	s, err := NewScheduler(testLogger(), cfg, taskMap, nil)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })

	jobs := s.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(jobs))
	}
	if err := jobs[0].RunNow(); err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("task did not run")
	}
}

func TestNewSchedulerRejectsBadTimezone(t *testing.T) {
	t.Parallel()

	cfg := &config.SchedulerConfig{Timezone: "Mars/Olympus"}
	if _, err := NewScheduler(testLogger(), cfg, nil, nil); err == nil {
		t.Error("NewScheduler() with invalid timezone returned nil error")
	}
}
