package model

// CourseEnrollment is owned by the enrollment service; the attempt engine only reads it.
type CourseEnrollment struct {
	BaseModel
	UserID   uint `gorm:"uniqueIndex:uq_enrollment_user_course;not null" json:"userId"`
	CourseID uint `gorm:"uniqueIndex:uq_enrollment_user_course;not null" json:"courseId"`
}

func (CourseEnrollment) TableName() string {
	return "course_enrollments"
}
