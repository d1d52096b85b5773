package util

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotEnrolled            = errors.New("not enrolled in this course")
	ErrTestNotFound           = errors.New("test not found or not published")
	ErrAttemptNotFound        = errors.New("test attempt not found")
	ErrQuestionNotInTest      = errors.New("question not found in this test")
	ErrAlreadyActiveAttempt   = errors.New("an unfinished attempt already exists for this test")
	ErrBlocked                = errors.New("blocked from starting this test")
	ErrAttemptAlreadyFinished = errors.New("test attempt already finished")
	ErrAttemptNotFinished     = errors.New("test attempt not finished yet")
	ErrDuplicateAnswer        = errors.New("question already answered in this attempt")
	ErrIncompleteAttempt      = errors.New("not all questions answered")
	ErrInvalidAnswer          = errors.New("invalid answer payload")
)

// BlockedError carries the cooldown expiry of a rejected start.
type BlockedError struct {
	Until time.Time
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked from taking this test until %s", e.Until.UTC().Format(time.RFC3339))
}

func (e *BlockedError) Is(target error) bool {
	return target == ErrBlocked
}

// IncompleteAttemptError reports progress of a premature finish.
type IncompleteAttemptError struct {
	Answered int
	Required int
}

func (e *IncompleteAttemptError) Error() string {
	return fmt.Sprintf("you must answer all questions, answered: %d/%d", e.Answered, e.Required)
}

func (e *IncompleteAttemptError) Is(target error) bool {
	return target == ErrIncompleteAttempt
}
