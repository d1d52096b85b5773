package service

import (
	"math"
	"time"

	"github.com/like-Ocean/AI-Classes/internal/model"
)

// StudentOptionView hides whether an option is correct.
type StudentOptionView struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

type StudentQuestionView struct {
	ID       uint                `json:"id"`
	Text     string              `json:"text"`
	Type     model.QuestionType  `json:"type"`
	Position int                 `json:"position"`
	HintText *string             `json:"hintText,omitempty"`
	Options  []StudentOptionView `json:"options"`
}

type StudentTestView struct {
	ID               uint                  `json:"id"`
	Title            string                `json:"title"`
	NumQuestions     int                   `json:"numQuestions"`
	TimeLimitSeconds *int                  `json:"timeLimitSeconds,omitempty"`
	PassThreshold    int                   `json:"passThreshold"`
	Questions        []StudentQuestionView `json:"questions"`
}

func NewStudentTestView(t *model.Test) *StudentTestView {
	v := &StudentTestView{
		ID:               t.ID,
		Title:            t.Title,
		NumQuestions:     t.NumQuestions,
		TimeLimitSeconds: t.TimeLimitSeconds,
		PassThreshold:    t.PassThreshold,
		Questions:        make([]StudentQuestionView, 0, len(t.Questions)),
	}
	for _, q := range t.Questions {
		qv := StudentQuestionView{
			ID:       q.ID,
			Text:     q.Text,
			Type:     q.Type,
			Position: q.Position,
			HintText: q.HintText,
			Options:  make([]StudentOptionView, 0, len(q.Options)),
		}
		for _, o := range q.Options {
			qv.Options = append(qv.Options, StudentOptionView{ID: o.ID, Text: o.Text})
		}
		v.Questions = append(v.Questions, qv)
	}
	return v
}

// AttemptView is an attempt plus its advisory deadline. The time limit is
// informational; nothing rejects answers past DeadlineAt.
type AttemptView struct {
	*model.TestAttempt
	DeadlineAt       *time.Time `json:"deadlineAt,omitempty"`
	RemainingSeconds *int       `json:"remainingSeconds,omitempty"`
}

func NewAttemptView(a *model.TestAttempt, t *model.Test, now time.Time) *AttemptView {
	v := &AttemptView{TestAttempt: a}
	if t.TimeLimitSeconds == nil || *t.TimeLimitSeconds <= 0 {
		return v
	}
	deadline := a.StartedAt.Add(time.Duration(*t.TimeLimitSeconds) * time.Second)
	v.DeadlineAt = &deadline
	if a.InProgress() {
		left := int(deadline.Sub(now) / time.Second)
		if left < 0 {
			left = 0
		}
		v.RemainingSeconds = &left
	}
	return v
}

type FinishResult struct {
	Attempt          *model.TestAttempt `json:"attempt"`
	ConsecutiveFails int                `json:"consecutiveFails"`
	Blocked          bool               `json:"blocked"`
	Message          string             `json:"message"`
}

type QuestionResult struct {
	QuestionID       uint                `json:"questionId"`
	QuestionText     string              `json:"questionText"`
	QuestionType     model.QuestionType  `json:"questionType"`
	Answer           model.AnswerPayload `json:"answer"`
	CorrectOptionIDs []uint              `json:"correctOptionIds"`
	IsCorrect        bool                `json:"isCorrect"`
	HintUsed         bool                `json:"hintUsed"`
	// PartialPercent is the partial score as a whole percentage.
	PartialPercent int `json:"partialScore"`
}

type AttemptResult struct {
	AttemptID      uint             `json:"attemptId"`
	TestID         uint             `json:"testId"`
	TestTitle      string           `json:"testTitle"`
	AttemptNumber  int              `json:"attemptNumber"`
	StartedAt      time.Time        `json:"startedAt"`
	FinishedAt     *time.Time       `json:"finishedAt"`
	Score          int              `json:"score"`
	Passed         bool             `json:"passed"`
	TotalQuestions int              `json:"totalQuestions"`
	CorrectAnswers int              `json:"correctAnswers"`
	Questions      []QuestionResult `json:"questions"`
}

// NewAttemptResult lists answers in question order. Questions without a
// stored answer are skipped.
func NewAttemptResult(a *model.TestAttempt, t *model.Test, answers []model.QuestionAttempt) *AttemptResult {
	byQuestion := make(map[uint]*model.QuestionAttempt, len(answers))
	for i := range answers {
		byQuestion[answers[i].QuestionID] = &answers[i]
	}

	r := &AttemptResult{
		AttemptID:      a.ID,
		TestID:         t.ID,
		TestTitle:      t.Title,
		AttemptNumber:  a.AttemptNumber,
		StartedAt:      a.StartedAt,
		FinishedAt:     a.FinishedAt,
		TotalQuestions: len(t.Questions),
		Questions:      make([]QuestionResult, 0, len(answers)),
	}
	if a.Score != nil {
		r.Score = *a.Score
	}
	if a.Passed != nil {
		r.Passed = *a.Passed
	}

	for i := range t.Questions {
		q := &t.Questions[i]
		qa, ok := byQuestion[q.ID]
		if !ok {
			continue
		}
		payload, err := qa.Payload()
		if err != nil {
			payload = model.AnswerPayload{}
		}
		if qa.IsCorrect {
			r.CorrectAnswers++
		}
		r.Questions = append(r.Questions, QuestionResult{
			QuestionID:       q.ID,
			QuestionText:     q.Text,
			QuestionType:     q.Type,
			Answer:           payload,
			CorrectOptionIDs: q.CorrectOptionIDs(),
			IsCorrect:        qa.IsCorrect,
			HintUsed:         qa.HintUsed,
			PartialPercent:   int(math.Round(qa.PartialScore * 100)),
		})
	}
	return r
}

type AttemptSummary struct {
	ID            uint       `json:"id"`
	TestID        uint       `json:"testId"`
	TestTitle     string     `json:"testTitle"`
	AttemptNumber int        `json:"attemptNumber"`
	StartedAt     time.Time  `json:"startedAt"`
	FinishedAt    *time.Time `json:"finishedAt"`
	Score         *int       `json:"score"`
	Passed        *bool      `json:"passed"`
	BlockedUntil  *time.Time `json:"blockedUntil,omitempty"`
}

func NewAttemptSummary(a *model.TestAttempt, t *model.Test) AttemptSummary {
	return AttemptSummary{
		ID:            a.ID,
		TestID:        a.TestID,
		TestTitle:     t.Title,
		AttemptNumber: a.AttemptNumber,
		StartedAt:     a.StartedAt,
		FinishedAt:    a.FinishedAt,
		Score:         a.Score,
		Passed:        a.Passed,
		BlockedUntil:  a.BlockedUntil,
	}
}
