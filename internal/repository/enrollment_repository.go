package repository

import (
	"context"

	"github.com/like-Ocean/AI-Classes/internal/model"
	"gorm.io/gorm"
)

type EnrollmentRepository struct {
	DB *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: db}
}

func (r *EnrollmentRepository) IsEnrolled(ctx context.Context, userID, courseID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.CourseEnrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	return count > 0, err
}

func (r *EnrollmentRepository) Enroll(ctx context.Context, userID, courseID uint) error {
	return r.DB.WithContext(ctx).Create(&model.CourseEnrollment{UserID: userID, CourseID: courseID}).Error
}
