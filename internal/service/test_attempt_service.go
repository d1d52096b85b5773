package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/like-Ocean/AI-Classes/internal/model"
	"github.com/like-Ocean/AI-Classes/internal/util"
	"github.com/like-Ocean/AI-Classes/pkg/logger"
	"github.com/like-Ocean/AI-Classes/pkg/monitoring"
	"github.com/like-Ocean/AI-Classes/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TestRef locates a test through the course content chain.
type TestRef struct {
	CourseID   uint
	ModuleID   uint
	MaterialID uint
	TestID     uint
}

// TestStore serves read-only test definitions with questions and options
// loaded, questions ordered by position.
type TestStore interface {
	// FindPublishedTest returns util.ErrTestNotFound unless the test exists,
	// is published and belongs to the referenced course/module/material.
	FindPublishedTest(ctx context.Context, ref TestRef) (*model.Test, error)
	FindTestByID(ctx context.Context, id uint) (*model.Test, error)
}

type EnrollmentChecker interface {
	IsEnrolled(ctx context.Context, userID, courseID uint) (bool, error)
}

// AttemptRepository is durable storage for attempts and answers.
// Implementations enforce the storage guards: CreateAttempt fails with
// util.ErrAlreadyActiveAttempt when an unfinished attempt exists (or the
// attempt number is taken), CreateQuestionAttempt with
// util.ErrDuplicateAnswer when the question is already answered.
type AttemptRepository interface {
	// Transaction runs fn in one unit of work; nothing fn wrote survives an error.
	Transaction(ctx context.Context, fn func(tx AttemptRepository) error) error

	FindActive(ctx context.Context, userID, testID uint) (*model.TestAttempt, error)
	FindBlocking(ctx context.Context, userID, testID uint, now time.Time) (*model.TestAttempt, error)
	MaxAttemptNumber(ctx context.Context, userID, testID uint) (int, error)
	CreateAttempt(ctx context.Context, attempt *model.TestAttempt) error
	FindAttempt(ctx context.Context, id uint) (*model.TestAttempt, error)
	// FindAttemptForUpdate also locks the row until the transaction ends.
	FindAttemptForUpdate(ctx context.Context, id uint) (*model.TestAttempt, error)
	SaveAttempt(ctx context.Context, attempt *model.TestAttempt) error
	UpdateCurrentQuestion(ctx context.Context, attemptID, questionID uint) error
	// ListAttempts returns the user's attempts on a test, highest attempt number first.
	ListAttempts(ctx context.Context, userID, testID uint) ([]model.TestAttempt, error)

	FindQuestionAttempt(ctx context.Context, attemptID, questionID uint) (*model.QuestionAttempt, error)
	CreateQuestionAttempt(ctx context.Context, qa *model.QuestionAttempt) error
	ListQuestionAttempts(ctx context.Context, attemptID uint) ([]model.QuestionAttempt, error)
}

type TestAttemptService struct {
	Tests       TestStore
	Enrollments EnrollmentChecker
	Attempts    AttemptRepository
	Throttle    *ThrottlePolicy
	now         func() time.Time
}

type Option func(*TestAttemptService)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *TestAttemptService) { s.now = now }
}

func NewTestAttemptService(tests TestStore, enrollments EnrollmentChecker, attempts AttemptRepository, throttle *ThrottlePolicy, opts ...Option) *TestAttemptService {
	if throttle == nil {
		throttle = NewThrottlePolicy(DefaultFailStreak, DefaultBlockDuration)
	}
	s := &TestAttemptService{
		Tests:       tests,
		Enrollments: enrollments,
		Attempts:    attempts,
		Throttle:    throttle,
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *TestAttemptService) clock() time.Time {
	return s.now().UTC()
}

// loadTest checks enrollment and resolves a takeable test.
func (s *TestAttemptService) loadTest(ctx context.Context, userID uint, ref TestRef) (*model.Test, error) {
	ok, err := s.Enrollments.IsEnrolled(ctx, userID, ref.CourseID)
	if err != nil {
		return nil, fmt.Errorf("check enrollment: %w", err)
	}
	if !ok {
		return nil, util.ErrNotEnrolled
	}
	return s.Tests.FindPublishedTest(ctx, ref)
}

// lockOwnedAttempt loads and locks an attempt of userID on testID.
// Attempts of other users or tests are reported as not found.
func lockOwnedAttempt(ctx context.Context, tx AttemptRepository, attemptID, userID, testID uint) (*model.TestAttempt, error) {
	attempt, err := tx.FindAttemptForUpdate(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID || attempt.TestID != testID {
		return nil, util.ErrAttemptNotFound
	}
	if !attempt.InProgress() {
		return nil, util.ErrAttemptAlreadyFinished
	}
	return attempt, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *TestAttemptService) GetTestForStudent(ctx context.Context, userID uint, ref TestRef) (*StudentTestView, error) {
	test, err := s.loadTest(ctx, userID, ref)
	if err != nil {
		return nil, err
	}
	return NewStudentTestView(test), nil
}

// Start opens a new attempt. It fails with util.ErrAlreadyActiveAttempt
// while another attempt is unfinished and with *util.BlockedError while a
// cooldown from earlier failures is running.
func (s *TestAttemptService) Start(ctx context.Context, userID uint, ref TestRef) (view *AttemptView, err error) {
	ctx, span := tracing.Start(ctx, "TestAttemptService.Start")
	span.SetAttributes(attribute.Int64("user.id", int64(userID)), attribute.Int64("test.id", int64(ref.TestID)))
	defer func() { endSpan(span, err) }()

	test, err := s.loadTest(ctx, userID, ref)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	var attempt *model.TestAttempt
	err = s.Attempts.Transaction(ctx, func(tx AttemptRepository) error {
		active, err := tx.FindActive(ctx, userID, test.ID)
		if err != nil {
			return err
		}
		if active != nil {
			return util.ErrAlreadyActiveAttempt
		}

		blocking, err := tx.FindBlocking(ctx, userID, test.ID, now)
		if err != nil {
			return err
		}
		if blocking != nil {
			return &util.BlockedError{Until: *blocking.BlockedUntil}
		}

		last, err := tx.MaxAttemptNumber(ctx, userID, test.ID)
		if err != nil {
			return err
		}

		attempt = model.NewTestAttempt(userID, test.ID, last+1, now)
		return tx.CreateAttempt(ctx, attempt)
	})
	if err != nil {
		monitoring.AttemptStartRejected.WithLabelValues(rejectReason(err)).Inc()
		logger.Log.Info("test attempt start rejected",
			zap.Uint("userId", userID),
			zap.Uint("testId", test.ID),
			zap.Error(err),
		)
		return nil, err
	}

	monitoring.AttemptsStarted.Inc()
	logger.Log.Info("test attempt started",
		zap.Uint("userId", userID),
		zap.Uint("testId", test.ID),
		zap.Uint("attemptId", attempt.ID),
		zap.Int("attemptNumber", attempt.AttemptNumber),
	)
	return NewAttemptView(attempt, test, now), nil
}

// SubmitAnswer grades and stores one answer. Answers are immutable: a
// second submission for the same question fails with util.ErrDuplicateAnswer
// and leaves the first one untouched. Questions may be answered in any order.
func (s *TestAttemptService) SubmitAnswer(ctx context.Context, userID uint, ref TestRef, attemptID, questionID uint, answer model.AnswerPayload, hintUsed bool) (qa *model.QuestionAttempt, err error) {
	ctx, span := tracing.Start(ctx, "TestAttemptService.SubmitAnswer")
	span.SetAttributes(attribute.Int64("attempt.id", int64(attemptID)), attribute.Int64("question.id", int64(questionID)))
	defer func() { endSpan(span, err) }()

	test, err := s.loadTest(ctx, userID, ref)
	if err != nil {
		return nil, err
	}

	var question *model.Question
	err = s.Attempts.Transaction(ctx, func(tx AttemptRepository) error {
		attempt, err := lockOwnedAttempt(ctx, tx, attemptID, userID, test.ID)
		if err != nil {
			return err
		}

		q, ok := test.Question(questionID)
		if !ok {
			return util.ErrQuestionNotInTest
		}
		question = q
		if err := checkAnswerKind(q, answer); err != nil {
			return err
		}

		existing, err := tx.FindQuestionAttempt(ctx, attempt.ID, questionID)
		if err != nil {
			return err
		}
		if existing != nil {
			return util.ErrDuplicateAnswer
		}

		grading := GradeAnswer(q, answer)
		qa, err = model.NewQuestionAttempt(attempt.ID, questionID, answer, grading, hintUsed)
		if err != nil {
			return err
		}
		if err := tx.CreateQuestionAttempt(ctx, qa); err != nil {
			return err
		}
		return tx.UpdateCurrentQuestion(ctx, attempt.ID, questionID)
	})
	if err != nil {
		return nil, err
	}

	monitoring.AnswersSubmitted.WithLabelValues(string(question.Type)).Inc()
	if question.Type != model.QuestionText {
		monitoring.PartialScores.Observe(qa.PartialScore)
	}
	logger.Log.Debug("answer submitted",
		zap.Uint("userId", userID),
		zap.Uint("attemptId", attemptID),
		zap.Uint("questionId", questionID),
		zap.Bool("isCorrect", qa.IsCorrect),
		zap.Float64("partialScore", qa.PartialScore),
	)
	return qa, nil
}

func checkAnswerKind(q *model.Question, answer model.AnswerPayload) error {
	want := model.AnswerSelection
	if q.Type == model.QuestionText {
		want = model.AnswerText
	}
	if answer.Kind != want {
		return fmt.Errorf("%w: question %d expects a %s answer", util.ErrInvalidAnswer, q.ID, want)
	}
	return nil
}

// Finish seals a fully answered attempt: score, pass/fail and, after a
// run of failures, a cooldown on new starts.
func (s *TestAttemptService) Finish(ctx context.Context, userID uint, ref TestRef, attemptID uint) (res *FinishResult, err error) {
	ctx, span := tracing.Start(ctx, "TestAttemptService.Finish")
	span.SetAttributes(attribute.Int64("attempt.id", int64(attemptID)))
	defer func() { endSpan(span, err) }()

	test, err := s.loadTest(ctx, userID, ref)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	res = &FinishResult{}
	err = s.Attempts.Transaction(ctx, func(tx AttemptRepository) error {
		attempt, err := lockOwnedAttempt(ctx, tx, attemptID, userID, test.ID)
		if err != nil {
			return err
		}

		answers, err := tx.ListQuestionAttempts(ctx, attempt.ID)
		if err != nil {
			return err
		}
		required := len(test.Questions)
		if len(answers) < required {
			return &util.IncompleteAttemptError{Answered: len(answers), Required: required}
		}

		score := AttemptScore(answers, required)
		passed := score >= test.PassThreshold

		var blockedUntil *time.Time
		if !passed {
			history, err := tx.ListAttempts(ctx, userID, test.ID)
			if err != nil {
				return err
			}
			blockedUntil, res.ConsecutiveFails = s.Throttle.Evaluate(history, attempt, now)
		}

		attempt.Seal(now, score, passed, blockedUntil)
		if err := tx.SaveAttempt(ctx, attempt); err != nil {
			return err
		}
		res.Attempt = attempt
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Blocked = res.Attempt.BlockedUntil != nil
	res.Message = s.finishMessage(res)

	outcome := "passed"
	if !*res.Attempt.Passed {
		outcome = "failed"
	}
	monitoring.AttemptsFinished.WithLabelValues(outcome).Inc()
	if res.Blocked {
		monitoring.AttemptBlocks.Inc()
	}
	logger.Log.Info("test attempt finished",
		zap.Uint("userId", userID),
		zap.Uint("testId", test.ID),
		zap.Uint("attemptId", attemptID),
		zap.Int("score", *res.Attempt.Score),
		zap.Bool("passed", *res.Attempt.Passed),
		zap.Int("consecutiveFails", res.ConsecutiveFails),
		zap.Bool("blocked", res.Blocked),
	)
	return res, nil
}

// AttemptScore is the rounded percentage of summed partial scores over
// the test's question count.
func AttemptScore(answers []model.QuestionAttempt, questionCount int) int {
	if questionCount <= 0 {
		return 0
	}
	total := 0.0
	for _, a := range answers {
		total += a.PartialScore
	}
	return int(math.Round(total / float64(questionCount) * 100))
}

func (s *TestAttemptService) finishMessage(res *FinishResult) string {
	if *res.Attempt.Passed {
		return "Congratulations! Test passed successfully."
	}
	failStreak, blockFor := s.Throttle.Settings()
	if res.Blocked {
		return fmt.Sprintf("Test failed %d times in a row. You are blocked until %s. Please review the material.",
			res.ConsecutiveFails, res.Attempt.BlockedUntil.Format(time.RFC3339))
	}
	left := failStreak - res.ConsecutiveFails
	return fmt.Sprintf("Test failed. You have %d attempt(s) left before a %s cooldown.", left, blockFor)
}

// GetResult reports a finished attempt of userID question by question.
func (s *TestAttemptService) GetResult(ctx context.Context, userID, attemptID uint) (*AttemptResult, error) {
	attempt, err := s.Attempts.FindAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, util.ErrAttemptNotFound
	}
	if attempt.InProgress() {
		return nil, util.ErrAttemptNotFinished
	}

	test, err := s.Tests.FindTestByID(ctx, attempt.TestID)
	if err != nil {
		return nil, err
	}
	answers, err := s.Attempts.ListQuestionAttempts(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}
	return NewAttemptResult(attempt, test, answers), nil
}

// ListMyAttempts returns the caller's attempts on a test, newest first.
func (s *TestAttemptService) ListMyAttempts(ctx context.Context, userID uint, ref TestRef) ([]AttemptSummary, error) {
	test, err := s.loadTest(ctx, userID, ref)
	if err != nil {
		return nil, err
	}
	attempts, err := s.Attempts.ListAttempts(ctx, userID, test.ID)
	if err != nil {
		return nil, err
	}
	out := make([]AttemptSummary, 0, len(attempts))
	for i := range attempts {
		out = append(out, NewAttemptSummary(&attempts[i], test))
	}
	return out, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, util.ErrAlreadyActiveAttempt):
		return "active_attempt"
	case errors.Is(err, util.ErrBlocked):
		return "blocked"
	default:
		return "error"
	}
}
