package service

import (
	"github.com/like-Ocean/AI-Classes/internal/model"
)

// multiSelectPenalty is the weight of each wrongly selected option,
// relative to one correct option.
const multiSelectPenalty = 0.5

// ScoreQuestion grades a selection answer against the question's correct
// options. It is pure: same inputs, same outputs.
//
// single: full credit only for the exact correct set, otherwise zero.
// multiple: exact set scores 1.0; otherwise recall minus half a point per
// wrong selection, both relative to the number of correct options, floored
// at zero. A question without correct options scores zero unless the
// answer is empty too, which counts as the exact set.
// text: never auto-graded, returns the neutral (false, 0).
func ScoreQuestion(q *model.Question, selected []uint) (bool, float64) {
	switch q.Type {
	case model.QuestionSingle:
		if sameSet(correctSet(q), toSet(selected)) {
			return true, 1.0
		}
		return false, 0.0

	case model.QuestionMultiple:
		correct := correctSet(q)
		chosen := toSet(selected)
		if sameSet(correct, chosen) {
			return true, 1.0
		}
		if len(correct) == 0 {
			return false, 0.0
		}

		hits, misses := 0, 0
		for id := range chosen {
			if _, ok := correct[id]; ok {
				hits++
			} else {
				misses++
			}
		}
		total := float64(len(correct))
		score := float64(hits)/total - multiSelectPenalty*float64(misses)/total
		if score < 0 {
			score = 0
		}
		return false, score
	}

	return false, 0.0
}

// GradeAnswer applies ScoreQuestion to a stored answer payload. Free text
// and mismatched payload kinds get the neutral grading.
func GradeAnswer(q *model.Question, answer model.AnswerPayload) model.Grading {
	if q.Type == model.QuestionText || answer.Kind != model.AnswerSelection {
		return model.Grading{}
	}
	ok, partial := ScoreQuestion(q, answer.SelectedOptionIDs)
	return model.Grading{IsCorrect: ok, PartialScore: partial}
}

func correctSet(q *model.Question) map[uint]struct{} {
	return toSet(q.CorrectOptionIDs())
}

func toSet(ids []uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func sameSet(a, b map[uint]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}
