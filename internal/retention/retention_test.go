package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nextlevelbuilder/hrdesk/internal/config"
)

type fakePruner struct {
	processedBefore time.Time
	idleBefore      time.Time
	processedCalls  int
	sessionCalls    int
	err             error
}

func (p *fakePruner) PruneProcessed(_ context.Context, before time.Time) (int64, error) {
	p.processedCalls++
	p.processedBefore = before
	return 7, p.err
}

func (p *fakePruner) PruneSessions(_ context.Context, idleBefore time.Time) (int64, error) {
	p.sessionCalls++
	p.idleBefore = idleBefore
	return 2, nil
}

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newJob(t *testing.T, p *fakePruner, cfg config.RetentionConfig) *Job {
	t.Helper()
	j, err := New(p, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	j.now = func() time.Time { return fixedNow }
	return j
}

func TestRunOnceDefaults(t *testing.T) {
	p := &fakePruner{}
	res, err := newJob(t, p, config.RetentionConfig{}).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if res.Processed != 7 || res.Sessions != 2 {
		t.Fatalf("result = %+v", res)
	}
	if want := fixedNow.Add(-DefaultProcessedMaxAge); !p.processedBefore.Equal(want) {
		t.Fatalf("processed cutoff = %v, want %v", p.processedBefore, want)
	}
	if want := fixedNow.Add(-DefaultSessionIdleMaxAge); !p.idleBefore.Equal(want) {
		t.Fatalf("idle cutoff = %v, want %v", p.idleBefore, want)
	}
}

func TestRunOnceZeroAgeKeepsSessions(t *testing.T) {
	p := &fakePruner{}
	_, err := newJob(t, p, config.RetentionConfig{ProcessedMaxAge: "24h", SessionIdleMaxAge: "0"}).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if p.sessionCalls != 0 {
		t.Fatal("sessions pruned with idle age 0")
	}
	if want := fixedNow.Add(-24 * time.Hour); !p.processedBefore.Equal(want) {
		t.Fatalf("processed cutoff = %v", p.processedBefore)
	}
}

func TestRunOnceStopsOnError(t *testing.T) {
	p := &fakePruner{err: errors.New("disk full")}
	if _, err := newJob(t, p, config.RetentionConfig{}).RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if p.sessionCalls != 0 {
		t.Fatal("sessions pruned after processed-log failure")
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.RetentionConfig
	}{
		{"schedule", config.RetentionConfig{Schedule: "every tuesday"}},
		{"processed age", config.RetentionConfig{ProcessedMaxAge: "soon"}},
		{"idle age", config.RetentionConfig{SessionIdleMaxAge: "-1h"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(&fakePruner{}, tt.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if _, err := New(&fakePruner{}, config.RetentionConfig{Schedule: "bad"}); !errors.Is(err, ErrBadSchedule) {
		t.Fatalf("err = %v, want ErrBadSchedule", err)
	}
}

func TestNext(t *testing.T) {
	j := newJob(t, &fakePruner{}, config.RetentionConfig{Schedule: "0 4 * * *"})
	next, err := j.Next(fixedNow)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if want := time.Date(2026, 3, 11, 4, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	j := newJob(t, &fakePruner{}, config.RetentionConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
