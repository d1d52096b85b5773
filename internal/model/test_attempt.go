package model

import "time"

// activeSlot marks an unfinished attempt. Together with the unique index
// on (user_id, test_id, active_slot) it allows at most one unfinished
// attempt per user and test; finished attempts carry NULL, which never
// collides.
const activeSlot = 1

// swagger:model TestAttempt
type TestAttempt struct {
	HistoryModel

	UserID            uint       `gorm:"not null;uniqueIndex:uq_attempt_number,priority:1;uniqueIndex:uq_attempt_active,priority:1" json:"userId"`
	TestID            uint       `gorm:"not null;uniqueIndex:uq_attempt_number,priority:2;uniqueIndex:uq_attempt_active,priority:2" json:"testId"`
	AttemptNumber     int        `gorm:"not null;uniqueIndex:uq_attempt_number,priority:3" json:"attemptNumber"`
	ActiveSlot        *int       `gorm:"uniqueIndex:uq_attempt_active,priority:3" json:"-"`
	StartedAt         time.Time  `gorm:"not null" json:"startedAt"`
	FinishedAt        *time.Time `json:"finishedAt"`
	Score             *int       `json:"score"`
	Passed            *bool      `json:"passed"`
	BlockedUntil      *time.Time `gorm:"index" json:"blockedUntil"`
	CurrentQuestionID *uint      `json:"currentQuestionId"`

	QuestionAttempts []QuestionAttempt `gorm:"foreignKey:TestAttemptID" json:"-"`
}

func (TestAttempt) TableName() string {
	return "test_attempts"
}

// NewTestAttempt builds an in-progress attempt.
func NewTestAttempt(userID, testID uint, number int, startedAt time.Time) *TestAttempt {
	slot := activeSlot
	return &TestAttempt{
		UserID:        userID,
		TestID:        testID,
		AttemptNumber: number,
		ActiveSlot:    &slot,
		StartedAt:     startedAt,
	}
}

func (a *TestAttempt) InProgress() bool {
	return a.FinishedAt == nil
}

// Seal records the outcome and releases the active slot.
func (a *TestAttempt) Seal(finishedAt time.Time, score int, passed bool, blockedUntil *time.Time) {
	a.FinishedAt = &finishedAt
	a.Score = &score
	a.Passed = &passed
	a.BlockedUntil = blockedUntil
	a.ActiveSlot = nil
}

// Failed reports a finished attempt that did not pass.
func (a *TestAttempt) Failed() bool {
	return a.FinishedAt != nil && a.Passed != nil && !*a.Passed
}

// BlockedAt reports whether this attempt still blocks new starts at now.
func (a *TestAttempt) BlockedAt(now time.Time) bool {
	return a.BlockedUntil != nil && a.BlockedUntil.After(now)
}
