package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/like-Ocean/AI-Classes/internal/model"
	"github.com/like-Ocean/AI-Classes/internal/util"
)

const (
	student  uint = 7
	stranger uint = 8
)

var ref = TestRef{CourseID: 1, ModuleID: 2, MaterialID: 3, TestID: 10}

type fixture struct {
	svc   *TestAttemptService
	repo  *fakeAttemptRepo
	test  *model.Test
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	limit := 600
	test := &model.Test{
		CourseID: 1, ModuleID: 2, MaterialID: 3,
		Title:            "Go basics",
		NumQuestions:     3,
		TimeLimitSeconds: &limit,
		PassThreshold:    60,
		Status:           model.TestStatusPublished,
		Questions: []model.Question{
			*question(model.QuestionSingle, 101, option(1, true), option(2, false)),
			*question(model.QuestionMultiple, 102, option(3, true), option(4, true), option(5, false)),
			*question(model.QuestionText, 103),
		},
	}
	test.ID = 10
	for i := range test.Questions {
		test.Questions[i].TestID = test.ID
		test.Questions[i].Position = i + 1
	}

	f := &fixture{
		repo:  newFakeAttemptRepo(),
		test:  test,
		clock: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	enrollments := fakeEnrollments{
		student:  {1: true},
		stranger: {1: true},
	}
	f.svc = NewTestAttemptService(
		&fakeTestStore{tests: map[uint]*model.Test{test.ID: test}},
		enrollments,
		f.repo,
		NewThrottlePolicy(2, 5*time.Minute),
		WithClock(func() time.Time { return f.clock }),
	)
	return f
}

func (f *fixture) start(t *testing.T) *model.TestAttempt {
	t.Helper()
	v, err := f.svc.Start(context.Background(), student, ref)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return v.TestAttempt
}

func (f *fixture) answer(t *testing.T, attemptID, questionID uint, p model.AnswerPayload) *model.QuestionAttempt {
	t.Helper()
	qa, err := f.svc.SubmitAnswer(context.Background(), student, ref, attemptID, questionID, p, false)
	if err != nil {
		t.Fatalf("SubmitAnswer(%d): %v", questionID, err)
	}
	return qa
}

// answerAll submits perfect selections when pass is true and wrong ones otherwise.
func (f *fixture) answerAll(t *testing.T, attemptID uint, pass bool) {
	t.Helper()
	if pass {
		f.answer(t, attemptID, 101, model.SelectionAnswer(1))
		f.answer(t, attemptID, 102, model.SelectionAnswer(3, 4))
	} else {
		f.answer(t, attemptID, 101, model.SelectionAnswer(2))
		f.answer(t, attemptID, 102, model.SelectionAnswer(5))
	}
	f.answer(t, attemptID, 103, model.TextAnswer("goroutines are cheap"))
}

func (f *fixture) finish(t *testing.T, attemptID uint) *FinishResult {
	t.Helper()
	res, err := f.svc.Finish(context.Background(), student, ref, attemptID)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	return res
}

func TestStartCreatesNumberedAttempt(t *testing.T) {
	f := newFixture(t)

	v, err := f.svc.Start(context.Background(), student, ref)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if v.AttemptNumber != 1 || !v.InProgress() || v.Score != nil || v.Passed != nil {
		t.Fatalf("unexpected attempt: %+v", v.TestAttempt)
	}
	if !v.StartedAt.Equal(f.clock) {
		t.Fatalf("startedAt = %v, want %v", v.StartedAt, f.clock)
	}
	if v.DeadlineAt == nil || !v.DeadlineAt.Equal(f.clock.Add(10*time.Minute)) {
		t.Fatalf("deadlineAt = %v", v.DeadlineAt)
	}
	if v.RemainingSeconds == nil || *v.RemainingSeconds != 600 {
		t.Fatalf("remainingSeconds = %v", v.RemainingSeconds)
	}
}

func TestStartRejectsSecondActiveAttempt(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	_, err := f.svc.Start(context.Background(), student, ref)
	if !errors.Is(err, util.ErrAlreadyActiveAttempt) {
		t.Fatalf("err = %v, want ErrAlreadyActiveAttempt", err)
	}

	// Other users are unaffected.
	if _, err := f.svc.Start(context.Background(), stranger, ref); err != nil {
		t.Fatalf("Start for another user: %v", err)
	}
}

func TestStartConcurrentOnlyOneWins(t *testing.T) {
	f := newFixture(t)

	const n = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, active := 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Start(context.Background(), student, ref)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, util.ErrAlreadyActiveAttempt):
				active++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if wins != 1 || active != n-1 {
		t.Fatalf("wins=%d active=%d", wins, active)
	}
}

func TestStartRequiresEnrollmentAndPublishedTest(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Start(context.Background(), 99, ref); !errors.Is(err, util.ErrNotEnrolled) {
		t.Fatalf("err = %v, want ErrNotEnrolled", err)
	}

	wrongModule := ref
	wrongModule.ModuleID = 5
	if _, err := f.svc.Start(context.Background(), student, wrongModule); !errors.Is(err, util.ErrTestNotFound) {
		t.Fatalf("err = %v, want ErrTestNotFound", err)
	}

	f.test.Status = model.TestStatusDraft
	if _, err := f.svc.Start(context.Background(), student, ref); !errors.Is(err, util.ErrTestNotFound) {
		t.Fatalf("err = %v, want ErrTestNotFound for draft", err)
	}
}

func TestSubmitAnswerGradesAndMovesCursor(t *testing.T) {
	f := newFixture(t)
	a := f.start(t)

	qa := f.answer(t, a.ID, 102, model.SelectionAnswer(3, 5))
	if qa.IsCorrect || qa.PartialScore != 0.25 {
		t.Fatalf("grading = (%v, %v), want (false, 0.25)", qa.IsCorrect, qa.PartialScore)
	}
	payload, err := qa.Payload()
	if err != nil || payload.Kind != model.AnswerSelection || len(payload.SelectedOptionIDs) != 2 {
		t.Fatalf("stored payload = %+v, %v", payload, err)
	}

	stored, _ := f.repo.FindAttempt(context.Background(), a.ID)
	if stored.CurrentQuestionID == nil || *stored.CurrentQuestionID != 102 {
		t.Fatalf("currentQuestionId = %v, want 102", stored.CurrentQuestionID)
	}

	// Out of order is fine.
	f.answer(t, a.ID, 101, model.SelectionAnswer(1))
	stored, _ = f.repo.FindAttempt(context.Background(), a.ID)
	if *stored.CurrentQuestionID != 101 {
		t.Fatalf("currentQuestionId = %d, want 101", *stored.CurrentQuestionID)
	}
}

func TestSubmitAnswerRejectsDuplicate(t *testing.T) {
	f := newFixture(t)
	a := f.start(t)
	first := f.answer(t, a.ID, 101, model.SelectionAnswer(2))

	_, err := f.svc.SubmitAnswer(context.Background(), student, ref, a.ID, 101, model.SelectionAnswer(1), true)
	if !errors.Is(err, util.ErrDuplicateAnswer) {
		t.Fatalf("err = %v, want ErrDuplicateAnswer", err)
	}

	kept, _ := f.repo.FindQuestionAttempt(context.Background(), a.ID, 101)
	if kept.ID != first.ID || kept.IsCorrect || kept.HintUsed {
		t.Fatalf("first answer changed: %+v", kept)
	}
}

func TestSubmitAnswerFailures(t *testing.T) {
	f := newFixture(t)
	a := f.start(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		user     uint
		attempt  uint
		question uint
		answer   model.AnswerPayload
		want     error
	}{
		{"unknown attempt", student, 999, 101, model.SelectionAnswer(1), util.ErrAttemptNotFound},
		{"someone else's attempt", stranger, a.ID, 101, model.SelectionAnswer(1), util.ErrAttemptNotFound},
		{"question of another test", student, a.ID, 555, model.SelectionAnswer(1), util.ErrQuestionNotInTest},
		{"text for a choice question", student, a.ID, 101, model.TextAnswer("1"), util.ErrInvalidAnswer},
		{"selection for a text question", student, a.ID, 103, model.SelectionAnswer(1), util.ErrInvalidAnswer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SubmitAnswer(ctx, tt.user, ref, tt.attempt, tt.question, tt.answer, false)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if n := f.repo.answerCount(); n != 0 {
		t.Fatalf("%d answers stored after failures", n)
	}
}

func TestSubmitAnswerRollsBackOnWriteFailure(t *testing.T) {
	f := newFixture(t)
	a := f.start(t)

	boom := errors.New("disk full")
	f.repo.failWrite = boom
	_, err := f.svc.SubmitAnswer(context.Background(), student, ref, a.ID, 101, model.SelectionAnswer(1), false)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if n := f.repo.answerCount(); n != 0 {
		t.Fatalf("answer survived a failed transaction")
	}

	f.repo.failWrite = nil
	f.answer(t, a.ID, 101, model.SelectionAnswer(1))
}

func TestFinishRequiresAllAnswers(t *testing.T) {
	f := newFixture(t)
	a := f.start(t)
	f.answer(t, a.ID, 101, model.SelectionAnswer(1))

	_, err := f.svc.Finish(context.Background(), student, ref, a.ID)
	var incomplete *util.IncompleteAttemptError
	if !errors.As(err, &incomplete) || !errors.Is(err, util.ErrIncompleteAttempt) {
		t.Fatalf("err = %v, want IncompleteAttemptError", err)
	}
	if incomplete.Answered != 1 || incomplete.Required != 3 {
		t.Fatalf("counts = %d/%d, want 1/3", incomplete.Answered, incomplete.Required)
	}

	stored, _ := f.repo.FindAttempt(context.Background(), a.ID)
	if !stored.InProgress() {
		t.Fatal("attempt finished despite missing answers")
	}
}

func TestFinishPassing(t *testing.T) {
	f := newFixture(t)
	a := f.start(t)
	f.answerAll(t, a.ID, true)
	f.clock = f.clock.Add(3 * time.Minute)

	res := f.finish(t, a.ID)
	// Two full credits and a neutral text answer: round(2/3*100).
	if *res.Attempt.Score != 67 || !*res.Attempt.Passed {
		t.Fatalf("score=%d passed=%v", *res.Attempt.Score, *res.Attempt.Passed)
	}
	if res.Blocked || res.ConsecutiveFails != 0 || res.Attempt.BlockedUntil != nil {
		t.Fatalf("passing attempt throttled: %+v", res)
	}
	if !res.Attempt.FinishedAt.Equal(f.clock) {
		t.Fatalf("finishedAt = %v, want %v", res.Attempt.FinishedAt, f.clock)
	}
	if !strings.Contains(res.Message, "passed") {
		t.Fatalf("message = %q", res.Message)
	}

	// Finished attempts are sealed.
	if _, err := f.svc.SubmitAnswer(context.Background(), student, ref, a.ID, 101, model.SelectionAnswer(1), false); !errors.Is(err, util.ErrAttemptAlreadyFinished) {
		t.Fatalf("submit after finish: %v", err)
	}
	if _, err := f.svc.Finish(context.Background(), student, ref, a.ID); !errors.Is(err, util.ErrAttemptAlreadyFinished) {
		t.Fatalf("finish twice: %v", err)
	}

	// A finished attempt frees the slot for a new one.
	if next := f.start(t); next.AttemptNumber != 2 {
		t.Fatalf("next attempt number = %d, want 2", next.AttemptNumber)
	}
}

func TestFinishFailuresBlockAfterStreak(t *testing.T) {
	f := newFixture(t)

	first := f.start(t)
	f.answerAll(t, first.ID, false)
	res := f.finish(t, first.ID)
	if *res.Attempt.Passed || *res.Attempt.Score != 0 {
		t.Fatalf("first attempt should fail with 0: %+v", res.Attempt)
	}
	if res.Blocked || res.ConsecutiveFails != 1 {
		t.Fatalf("first failure: blocked=%v fails=%d", res.Blocked, res.ConsecutiveFails)
	}
	if !strings.Contains(res.Message, "1 attempt(s) left") {
		t.Fatalf("message = %q", res.Message)
	}

	second := f.start(t)
	f.answerAll(t, second.ID, false)
	res = f.finish(t, second.ID)
	want := f.clock.Add(5 * time.Minute)
	if !res.Blocked || res.ConsecutiveFails != 2 || !res.Attempt.BlockedUntil.Equal(want) {
		t.Fatalf("second failure: %+v until=%v", res, res.Attempt.BlockedUntil)
	}

	f.clock = f.clock.Add(4 * time.Minute)
	_, err := f.svc.Start(context.Background(), student, ref)
	var blocked *util.BlockedError
	if !errors.As(err, &blocked) || !errors.Is(err, util.ErrBlocked) {
		t.Fatalf("err = %v, want BlockedError", err)
	}
	if !blocked.Until.Equal(want) {
		t.Fatalf("blocked until %v, want %v", blocked.Until, want)
	}

	f.clock = f.clock.Add(time.Minute)
	third := f.start(t)
	if third.AttemptNumber != 3 {
		t.Fatalf("attempt number after block = %d, want 3", third.AttemptNumber)
	}
}

func TestFinishAfterPassResetsStreak(t *testing.T) {
	f := newFixture(t)

	a := f.start(t)
	f.answerAll(t, a.ID, false)
	f.finish(t, a.ID)

	a = f.start(t)
	f.answerAll(t, a.ID, true)
	f.finish(t, a.ID)

	a = f.start(t)
	f.answerAll(t, a.ID, false)
	res := f.finish(t, a.ID)
	if res.Blocked || res.ConsecutiveFails != 1 {
		t.Fatalf("streak not reset by pass: %+v", res)
	}
}

func TestGetResult(t *testing.T) {
	f := newFixture(t)
	a := f.start(t)
	ctx := context.Background()

	if _, err := f.svc.GetResult(ctx, student, a.ID); !errors.Is(err, util.ErrAttemptNotFinished) {
		t.Fatalf("err = %v, want ErrAttemptNotFinished", err)
	}

	f.answer(t, a.ID, 101, model.SelectionAnswer(1))
	f.answer(t, a.ID, 102, model.SelectionAnswer(3))
	f.answer(t, a.ID, 103, model.TextAnswer("text"))
	f.finish(t, a.ID)

	if _, err := f.svc.GetResult(ctx, stranger, a.ID); !errors.Is(err, util.ErrAttemptNotFound) {
		t.Fatalf("err = %v, want ErrAttemptNotFound for another user", err)
	}

	r, err := f.svc.GetResult(ctx, student, a.ID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if r.TotalQuestions != 3 || r.CorrectAnswers != 1 || r.Score != 50 || r.Passed {
		t.Fatalf("totals = %+v", r)
	}
	if len(r.Questions) != 3 || r.Questions[1].QuestionID != 102 || r.Questions[1].PartialPercent != 50 {
		t.Fatalf("questions = %+v", r.Questions)
	}
	if got := r.Questions[1].CorrectOptionIDs; len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Fatalf("correct options = %v", got)
	}
	if r.Questions[2].Answer.Kind != model.AnswerText || r.Questions[2].Answer.Text != "text" {
		t.Fatalf("text answer = %+v", r.Questions[2].Answer)
	}
}

func TestListMyAttemptsNewestFirst(t *testing.T) {
	f := newFixture(t)
	a := f.start(t)
	f.answerAll(t, a.ID, true)
	f.finish(t, a.ID)
	f.start(t)

	list, err := f.svc.ListMyAttempts(context.Background(), student, ref)
	if err != nil {
		t.Fatalf("ListMyAttempts: %v", err)
	}
	if len(list) != 2 || list[0].AttemptNumber != 2 || list[1].AttemptNumber != 1 {
		t.Fatalf("list = %+v", list)
	}
	if list[0].TestTitle != "Go basics" || list[0].FinishedAt != nil || list[1].Score == nil {
		t.Fatalf("summaries = %+v", list)
	}
}

func TestGetTestForStudentHidesCorrectness(t *testing.T) {
	f := newFixture(t)

	v, err := f.svc.GetTestForStudent(context.Background(), student, ref)
	if err != nil {
		t.Fatalf("GetTestForStudent: %v", err)
	}
	if len(v.Questions) != 3 || len(v.Questions[1].Options) != 3 {
		t.Fatalf("view = %+v", v)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "isCorrect") {
		t.Fatalf("correctness leaked: %s", raw)
	}
}
