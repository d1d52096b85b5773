package service

import (
	"testing"
	"time"

	"github.com/like-Ocean/AI-Classes/internal/model"
)

func finishedAttempt(id uint, number int, passed bool) model.TestAttempt {
	a := model.NewTestAttempt(1, 1, number, time.Unix(0, 0))
	a.ID = id
	a.Seal(time.Unix(60, 0), 0, passed, nil)
	return *a
}

func TestThrottleEvaluate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	policy := NewThrottlePolicy(2, 5*time.Minute)

	tests := []struct {
		name        string
		history     []model.TestAttempt
		number      int
		wantStreak  int
		wantBlocked bool
	}{
		{"first failure", nil, 1, 1, false},
		{"second failure in a row", []model.TestAttempt{finishedAttempt(1, 1, false)}, 2, 2, true},
		{"failure after pass", []model.TestAttempt{finishedAttempt(1, 1, false), finishedAttempt(2, 2, true)}, 3, 1, false},
		{"three failures", []model.TestAttempt{finishedAttempt(2, 2, false), finishedAttempt(1, 1, false)}, 3, 3, true},
		{"gap in numbering", []model.TestAttempt{finishedAttempt(1, 1, false)}, 3, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current := finishedAttempt(99, tt.number, false)
			history := append([]model.TestAttempt{current}, tt.history...)
			until, streak := policy.Evaluate(history, &current, now)
			if streak != tt.wantStreak {
				t.Fatalf("streak = %d, want %d", streak, tt.wantStreak)
			}
			if (until != nil) != tt.wantBlocked {
				t.Fatalf("blocked = %v, want %v", until != nil, tt.wantBlocked)
			}
			if until != nil && !until.Equal(now.Add(5*time.Minute)) {
				t.Fatalf("blockedUntil = %v, want %v", until, now.Add(5*time.Minute))
			}
		})
	}
}

func TestThrottleUpdate(t *testing.T) {
	policy := NewThrottlePolicy(0, -time.Second)
	streak, block := policy.Settings()
	if streak != DefaultFailStreak || block != DefaultBlockDuration {
		t.Fatalf("invalid settings not defaulted: %d %v", streak, block)
	}

	policy.Update(3, time.Minute)
	now := time.Now()
	current := finishedAttempt(3, 2, false)
	until, n := policy.Evaluate([]model.TestAttempt{finishedAttempt(1, 1, false)}, &current, now)
	if until != nil || n != 2 {
		t.Fatalf("streak of 2 with limit 3: until=%v n=%d", until, n)
	}
}
