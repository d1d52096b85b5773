package repository

import (
	"context"
	"errors"
	"time"

	"github.com/like-Ocean/AI-Classes/internal/model"
	"github.com/like-Ocean/AI-Classes/internal/service"
	"github.com/like-Ocean/AI-Classes/internal/util"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TestAttemptRepository persists attempts and their answers. The unique
// indexes declared on the models back the service's guards; duplicate key
// errors come back as the matching domain errors.
type TestAttemptRepository struct {
	DB *gorm.DB
}

func NewTestAttemptRepository(db *gorm.DB) *TestAttemptRepository {
	return &TestAttemptRepository{DB: db}
}

func (r *TestAttemptRepository) Transaction(ctx context.Context, fn func(tx service.AttemptRepository) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&TestAttemptRepository{DB: tx})
	})
}

func (r *TestAttemptRepository) FindActive(ctx context.Context, userID, testID uint) (*model.TestAttempt, error) {
	var a model.TestAttempt
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND test_id = ? AND finished_at IS NULL", userID, testID).
		Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindBlocking returns the attempt with the latest block still running at now.
func (r *TestAttemptRepository) FindBlocking(ctx context.Context, userID, testID uint, now time.Time) (*model.TestAttempt, error) {
	var a model.TestAttempt
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND test_id = ? AND blocked_until > ?", userID, testID, now).
		Order("blocked_until DESC").
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *TestAttemptRepository) MaxAttemptNumber(ctx context.Context, userID, testID uint) (int, error) {
	var max int
	err := r.DB.WithContext(ctx).Model(&model.TestAttempt{}).
		Where("user_id = ? AND test_id = ?", userID, testID).
		Select("COALESCE(MAX(attempt_number), 0)").
		Scan(&max).Error
	return max, err
}

func (r *TestAttemptRepository) CreateAttempt(ctx context.Context, attempt *model.TestAttempt) error {
	err := r.DB.WithContext(ctx).Create(attempt).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return util.ErrAlreadyActiveAttempt
	}
	return err
}

func (r *TestAttemptRepository) FindAttempt(ctx context.Context, id uint) (*model.TestAttempt, error) {
	var a model.TestAttempt
	if err := r.DB.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, notFound(err, util.ErrAttemptNotFound)
	}
	return &a, nil
}

// FindAttemptForUpdate takes a row lock on dialects that support it.
func (r *TestAttemptRepository) FindAttemptForUpdate(ctx context.Context, id uint) (*model.TestAttempt, error) {
	var a model.TestAttempt
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&a, id).Error
	if err != nil {
		return nil, notFound(err, util.ErrAttemptNotFound)
	}
	return &a, nil
}

func (r *TestAttemptRepository) SaveAttempt(ctx context.Context, attempt *model.TestAttempt) error {
	err := r.DB.WithContext(ctx).Save(attempt).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return util.ErrAlreadyActiveAttempt
	}
	return err
}

func (r *TestAttemptRepository) UpdateCurrentQuestion(ctx context.Context, attemptID, questionID uint) error {
	res := r.DB.WithContext(ctx).Model(&model.TestAttempt{}).
		Where("id = ?", attemptID).
		Update("current_question_id", questionID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrAttemptNotFound
	}
	return nil
}

// ListAttempts orders by attempt number, which follows start order.
func (r *TestAttemptRepository) ListAttempts(ctx context.Context, userID, testID uint) ([]model.TestAttempt, error) {
	var attempts []model.TestAttempt
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND test_id = ?", userID, testID).
		Order("attempt_number DESC").
		Find(&attempts).Error
	return attempts, err
}

func (r *TestAttemptRepository) FindQuestionAttempt(ctx context.Context, attemptID, questionID uint) (*model.QuestionAttempt, error) {
	var qa model.QuestionAttempt
	err := r.DB.WithContext(ctx).
		Where("test_attempt_id = ? AND question_id = ?", attemptID, questionID).
		Take(&qa).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &qa, nil
}

func (r *TestAttemptRepository) CreateQuestionAttempt(ctx context.Context, qa *model.QuestionAttempt) error {
	err := r.DB.WithContext(ctx).Create(qa).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return util.ErrDuplicateAnswer
	}
	return err
}

func (r *TestAttemptRepository) ListQuestionAttempts(ctx context.Context, attemptID uint) ([]model.QuestionAttempt, error) {
	var answers []model.QuestionAttempt
	err := r.DB.WithContext(ctx).
		Where("test_attempt_id = ?", attemptID).
		Order("id ASC").
		Find(&answers).Error
	return answers, err
}
