package repository

import (
	"context"
	"errors"

	"github.com/like-Ocean/AI-Classes/internal/model"
	"github.com/like-Ocean/AI-Classes/internal/service"
	"github.com/like-Ocean/AI-Classes/internal/util"
	"gorm.io/gorm"
)

type TestRepository struct {
	DB *gorm.DB
}

func NewTestRepository(db *gorm.DB) *TestRepository {
	return &TestRepository{DB: db}
}

func (r *TestRepository) withContent(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		})
}

func (r *TestRepository) FindPublishedTest(ctx context.Context, ref service.TestRef) (*model.Test, error) {
	var t model.Test
	err := r.withContent(ctx).
		Where("id = ? AND course_id = ? AND module_id = ? AND material_id = ? AND status = ?",
			ref.TestID, ref.CourseID, ref.ModuleID, ref.MaterialID, model.TestStatusPublished).
		First(&t).Error
	if err != nil {
		return nil, notFound(err, util.ErrTestNotFound)
	}
	return &t, nil
}

func (r *TestRepository) FindTestByID(ctx context.Context, id uint) (*model.Test, error) {
	var t model.Test
	if err := r.withContent(ctx).First(&t, id).Error; err != nil {
		return nil, notFound(err, util.ErrTestNotFound)
	}
	return &t, nil
}

// Create stores a test with its questions and options.
func (r *TestRepository) Create(ctx context.Context, t *model.Test) error {
	return r.DB.WithContext(ctx).Create(t).Error
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
