package model

import (
	"encoding/json"
	"fmt"

	"github.com/like-Ocean/AI-Classes/internal/util"
	"gorm.io/datatypes"
)

type AnswerKind string

const (
	AnswerSelection AnswerKind = "selection"
	AnswerText      AnswerKind = "text"
)

// AnswerPayload is the raw learner answer: either a set of selected option
// ids or free text. On the wire it is {"selected_option_ids": [...]} or
// {"text": "..."}.
type AnswerPayload struct {
	Kind              AnswerKind
	SelectedOptionIDs []uint
	Text              string
}

func SelectionAnswer(ids ...uint) AnswerPayload {
	if ids == nil {
		ids = []uint{}
	}
	return AnswerPayload{Kind: AnswerSelection, SelectedOptionIDs: ids}
}

func TextAnswer(text string) AnswerPayload {
	return AnswerPayload{Kind: AnswerText, Text: text}
}

type answerWire struct {
	SelectedOptionIDs *[]uint `json:"selected_option_ids,omitempty"`
	Text              *string `json:"text,omitempty"`
}

func (p AnswerPayload) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case AnswerSelection:
		ids := p.SelectedOptionIDs
		if ids == nil {
			ids = []uint{}
		}
		return json.Marshal(answerWire{SelectedOptionIDs: &ids})
	case AnswerText:
		text := p.Text
		return json.Marshal(answerWire{Text: &text})
	}
	return nil, fmt.Errorf("%w: unknown answer kind %q", util.ErrInvalidAnswer, p.Kind)
}

func (p *AnswerPayload) UnmarshalJSON(data []byte) error {
	var w answerWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", util.ErrInvalidAnswer, err)
	}
	switch {
	case w.SelectedOptionIDs != nil && w.Text != nil:
		return fmt.Errorf("%w: both selected_option_ids and text given", util.ErrInvalidAnswer)
	case w.SelectedOptionIDs != nil:
		*p = SelectionAnswer(*w.SelectedOptionIDs...)
	case w.Text != nil:
		*p = TextAnswer(*w.Text)
	default:
		return fmt.Errorf("%w: expected selected_option_ids or text", util.ErrInvalidAnswer)
	}
	return nil
}

// Grading is the derived outcome of one answer.
type Grading struct {
	IsCorrect    bool
	PartialScore float64 // 0.0-1.0
}

// swagger:model QuestionAttempt
type QuestionAttempt struct {
	HistoryModel

	TestAttemptID uint           `gorm:"not null;uniqueIndex:uq_question_attempt,priority:1" json:"testAttemptId"`
	QuestionID    uint           `gorm:"not null;uniqueIndex:uq_question_attempt,priority:2" json:"questionId"`
	Answer        datatypes.JSON `json:"answer" swaggertype:"object"`
	PartialScore  float64        `gorm:"not null;default:0" json:"partialScore"`
	IsCorrect     bool           `gorm:"not null;default:false" json:"isCorrect"`
	HintUsed      bool           `gorm:"not null;default:false" json:"hintUsed"`
}

func (QuestionAttempt) TableName() string {
	return "question_attempts"
}

// NewQuestionAttempt stores the payload and its grading.
func NewQuestionAttempt(attemptID, questionID uint, answer AnswerPayload, g Grading, hintUsed bool) (*QuestionAttempt, error) {
	raw, err := json.Marshal(answer)
	if err != nil {
		return nil, err
	}
	return &QuestionAttempt{
		TestAttemptID: attemptID,
		QuestionID:    questionID,
		Answer:        datatypes.JSON(raw),
		PartialScore:  g.PartialScore,
		IsCorrect:     g.IsCorrect,
		HintUsed:      hintUsed,
	}, nil
}

func (qa *QuestionAttempt) Payload() (AnswerPayload, error) {
	var p AnswerPayload
	err := json.Unmarshal(qa.Answer, &p)
	return p, err
}

func (qa *QuestionAttempt) Grading() Grading {
	return Grading{IsCorrect: qa.IsCorrect, PartialScore: qa.PartialScore}
}
