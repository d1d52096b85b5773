package service

import (
	"sort"
	"sync"
	"time"

	"github.com/like-Ocean/AI-Classes/internal/config"
	"github.com/like-Ocean/AI-Classes/internal/model"
)

const (
	DefaultFailStreak    = 2
	DefaultBlockDuration = 5 * time.Minute
)

// ThrottlePolicy turns a run of failed attempts into a cooldown.
// Settings can be swapped at runtime by the config watcher.
type ThrottlePolicy struct {
	mu            sync.RWMutex
	failStreak    int
	blockDuration time.Duration
}

func NewThrottlePolicy(failStreak int, blockDuration time.Duration) *ThrottlePolicy {
	p := &ThrottlePolicy{}
	p.Update(failStreak, blockDuration)
	return p
}

func NewThrottlePolicyFromConfig(cfg config.ThrottleConfig) *ThrottlePolicy {
	return NewThrottlePolicy(cfg.FailStreak, cfg.BlockDuration())
}

func (p *ThrottlePolicy) Update(failStreak int, blockDuration time.Duration) {
	if failStreak < 1 {
		failStreak = DefaultFailStreak
	}
	if blockDuration < 0 {
		blockDuration = DefaultBlockDuration
	}
	p.mu.Lock()
	p.failStreak = failStreak
	p.blockDuration = blockDuration
	p.mu.Unlock()
}

func (p *ThrottlePolicy) Settings() (int, time.Duration) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.failStreak, p.blockDuration
}

// Evaluate is called for an attempt that just failed. history holds the
// user's other attempts on the same test in any order. The streak starts
// at 1 for the current attempt and grows while the attempt numbered one
// lower also failed; a pass, a gap in numbering or the start of history
// ends it.
func (p *ThrottlePolicy) Evaluate(history []model.TestAttempt, current *model.TestAttempt, now time.Time) (*time.Time, int) {
	failStreak, blockFor := p.Settings()

	prior := make([]model.TestAttempt, 0, len(history))
	for _, a := range history {
		if a.ID != current.ID && a.AttemptNumber < current.AttemptNumber {
			prior = append(prior, a)
		}
	}
	sort.Slice(prior, func(i, j int) bool {
		return prior[i].AttemptNumber > prior[j].AttemptNumber
	})

	streak := 1
	for _, a := range prior {
		if a.AttemptNumber != current.AttemptNumber-streak || !a.Failed() {
			break
		}
		streak++
	}

	if streak >= failStreak {
		until := now.Add(blockFor)
		return &until, streak
	}
	return nil, streak
}
