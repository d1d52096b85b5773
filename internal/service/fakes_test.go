package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/like-Ocean/AI-Classes/internal/model"
	"github.com/like-Ocean/AI-Classes/internal/util"
)

type fakeTestStore struct {
	tests map[uint]*model.Test
}

func (f *fakeTestStore) FindPublishedTest(_ context.Context, ref TestRef) (*model.Test, error) {
	t, ok := f.tests[ref.TestID]
	if !ok || !t.IsPublished() || t.CourseID != ref.CourseID || t.ModuleID != ref.ModuleID || t.MaterialID != ref.MaterialID {
		return nil, util.ErrTestNotFound
	}
	return t, nil
}

func (f *fakeTestStore) FindTestByID(_ context.Context, id uint) (*model.Test, error) {
	t, ok := f.tests[id]
	if !ok {
		return nil, util.ErrTestNotFound
	}
	return t, nil
}

type fakeEnrollments map[uint]map[uint]bool

func (f fakeEnrollments) IsEnrolled(_ context.Context, userID, courseID uint) (bool, error) {
	return f[userID][courseID], nil
}

// fakeAttemptRepo keeps rows in memory and mirrors the unique indexes of
// the real schema. Transaction serialises callers and rolls back on error.
type fakeAttemptRepo struct {
	txMu sync.Mutex

	mu        sync.Mutex
	attempts  map[uint]model.TestAttempt
	answers   map[uint]model.QuestionAttempt
	nextID    uint
	failWrite error
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{
		attempts: map[uint]model.TestAttempt{},
		answers:  map[uint]model.QuestionAttempt{},
	}
}

func (f *fakeAttemptRepo) Transaction(ctx context.Context, fn func(tx AttemptRepository) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()

	f.mu.Lock()
	attempts := make(map[uint]model.TestAttempt, len(f.attempts))
	for k, v := range f.attempts {
		attempts[k] = v
	}
	answers := make(map[uint]model.QuestionAttempt, len(f.answers))
	for k, v := range f.answers {
		answers[k] = v
	}
	next := f.nextID
	f.mu.Unlock()

	if err := fn(f); err != nil {
		f.mu.Lock()
		f.attempts, f.answers, f.nextID = attempts, answers, next
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeAttemptRepo) id() uint {
	f.nextID++
	return f.nextID
}

func (f *fakeAttemptRepo) FindActive(_ context.Context, userID, testID uint) (*model.TestAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.attempts {
		if a.UserID == userID && a.TestID == testID && a.InProgress() {
			a := a
			return &a, nil
		}
	}
	return nil, nil
}

func (f *fakeAttemptRepo) FindBlocking(_ context.Context, userID, testID uint, now time.Time) (*model.TestAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var found *model.TestAttempt
	for _, a := range f.attempts {
		if a.UserID == userID && a.TestID == testID && a.BlockedAt(now) {
			if found == nil || a.BlockedUntil.After(*found.BlockedUntil) {
				a := a
				found = &a
			}
		}
	}
	return found, nil
}

func (f *fakeAttemptRepo) MaxAttemptNumber(_ context.Context, userID, testID uint) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	max := 0
	for _, a := range f.attempts {
		if a.UserID == userID && a.TestID == testID && a.AttemptNumber > max {
			max = a.AttemptNumber
		}
	}
	return max, nil
}

func (f *fakeAttemptRepo) CreateAttempt(_ context.Context, attempt *model.TestAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.attempts {
		if a.UserID != attempt.UserID || a.TestID != attempt.TestID {
			continue
		}
		if a.AttemptNumber == attempt.AttemptNumber || (a.ActiveSlot != nil && attempt.ActiveSlot != nil) {
			return util.ErrAlreadyActiveAttempt
		}
	}
	attempt.ID = f.id()
	f.attempts[attempt.ID] = *attempt
	return nil
}

func (f *fakeAttemptRepo) FindAttempt(_ context.Context, id uint) (*model.TestAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[id]
	if !ok {
		return nil, util.ErrAttemptNotFound
	}
	return &a, nil
}

func (f *fakeAttemptRepo) FindAttemptForUpdate(ctx context.Context, id uint) (*model.TestAttempt, error) {
	return f.FindAttempt(ctx, id)
}

func (f *fakeAttemptRepo) SaveAttempt(_ context.Context, attempt *model.TestAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite != nil {
		return f.failWrite
	}
	f.attempts[attempt.ID] = *attempt
	return nil
}

func (f *fakeAttemptRepo) UpdateCurrentQuestion(_ context.Context, attemptID, questionID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite != nil {
		return f.failWrite
	}
	a, ok := f.attempts[attemptID]
	if !ok {
		return util.ErrAttemptNotFound
	}
	a.CurrentQuestionID = &questionID
	f.attempts[attemptID] = a
	return nil
}

func (f *fakeAttemptRepo) ListAttempts(_ context.Context, userID, testID uint) ([]model.TestAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.TestAttempt
	for _, a := range f.attempts {
		if a.UserID == userID && a.TestID == testID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptNumber > out[j].AttemptNumber })
	return out, nil
}

func (f *fakeAttemptRepo) FindQuestionAttempt(_ context.Context, attemptID, questionID uint) (*model.QuestionAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, qa := range f.answers {
		if qa.TestAttemptID == attemptID && qa.QuestionID == questionID {
			qa := qa
			return &qa, nil
		}
	}
	return nil, nil
}

func (f *fakeAttemptRepo) CreateQuestionAttempt(_ context.Context, qa *model.QuestionAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.answers {
		if existing.TestAttemptID == qa.TestAttemptID && existing.QuestionID == qa.QuestionID {
			return util.ErrDuplicateAnswer
		}
	}
	qa.ID = f.id()
	f.answers[qa.ID] = *qa
	return nil
}

func (f *fakeAttemptRepo) ListQuestionAttempts(_ context.Context, attemptID uint) ([]model.QuestionAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.QuestionAttempt
	for _, qa := range f.answers {
		if qa.TestAttemptID == attemptID {
			out = append(out, qa)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeAttemptRepo) answerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.answers)
}
