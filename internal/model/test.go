package model

type QuestionType string

const (
	QuestionSingle   QuestionType = "single"
	QuestionMultiple QuestionType = "multiple"
	QuestionText     QuestionType = "text"
)

const (
	TestStatusDraft     = "draft"
	TestStatusPublished = "published"
)

// swagger:model Test
type Test struct {
	BaseModel

	CourseID         uint       `gorm:"index;not null" json:"courseId"`
	ModuleID         uint       `gorm:"index;not null" json:"moduleId"`
	MaterialID       uint       `gorm:"index" json:"materialId"`
	Title            string     `gorm:"size:255;not null" json:"title"`
	NumQuestions     int        `gorm:"not null" json:"numQuestions"`
	TimeLimitSeconds *int       `json:"timeLimitSeconds,omitempty"` // advisory, not enforced server-side
	PassThreshold    int        `gorm:"not null" json:"passThreshold"` // percent, 0-100
	Status           string     `gorm:"size:20;not null;default:'draft'" json:"status"`
	Questions        []Question `gorm:"foreignKey:TestID" json:"questions,omitempty"`
}

func (Test) TableName() string {
	return "tests"
}

func (t *Test) IsPublished() bool {
	return t.Status == TestStatusPublished
}

// Question looks up a question of this test by id.
func (t *Test) Question(id uint) (*Question, bool) {
	for i := range t.Questions {
		if t.Questions[i].ID == id {
			return &t.Questions[i], true
		}
	}
	return nil, false
}

// swagger:model Question
type Question struct {
	BaseModel

	TestID   uint           `gorm:"index;not null" json:"testId"`
	Text     string         `gorm:"type:text;not null" json:"text"`
	Type     QuestionType   `gorm:"size:20;not null" json:"type"`
	Position int            `gorm:"not null" json:"position"` // display order only
	HintText *string        `gorm:"type:text" json:"hintText,omitempty"`
	Options  []AnswerOption `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// CorrectOptionIDs returns the ids flagged correct, in option order.
func (q *Question) CorrectOptionIDs() []uint {
	ids := make([]uint, 0, len(q.Options))
	for _, o := range q.Options {
		if o.IsCorrect {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

// swagger:model AnswerOption
type AnswerOption struct {
	BaseModel

	QuestionID uint   `gorm:"index;not null" json:"questionId"`
	Text       string `gorm:"type:text;not null" json:"text"`
	IsCorrect  bool   `gorm:"not null;default:false" json:"isCorrect"`
}

func (AnswerOption) TableName() string {
	return "answer_options"
}
