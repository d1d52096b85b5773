// Seeds a published test and an enrollment for local development, then
// prints a bearer token for the enrolled user.
//
// Usage: go run ./scripts/seed_demo -fixture scripts/seed_demo/demo_test.yaml

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/like-Ocean/AI-Classes/internal/config"
	"github.com/like-Ocean/AI-Classes/internal/model"
	"github.com/like-Ocean/AI-Classes/internal/repository"
	"github.com/like-Ocean/AI-Classes/internal/util"
	"github.com/like-Ocean/AI-Classes/pkg/database"
	"github.com/like-Ocean/AI-Classes/pkg/logger"
	"gopkg.in/yaml.v3"
)

type fixture struct {
	UserID uint `yaml:"user_id"`
	Test   struct {
		CourseID         uint   `yaml:"course_id"`
		ModuleID         uint   `yaml:"module_id"`
		MaterialID       uint   `yaml:"material_id"`
		Title            string `yaml:"title"`
		TimeLimitSeconds *int   `yaml:"time_limit_seconds"`
		PassThreshold    int    `yaml:"pass_threshold"`
		Questions        []struct {
			Text    string             `yaml:"text"`
			Type    model.QuestionType `yaml:"type"`
			Hint    *string            `yaml:"hint"`
			Options []struct {
				Text    string `yaml:"text"`
				Correct bool   `yaml:"correct"`
			} `yaml:"options"`
		} `yaml:"questions"`
	} `yaml:"test"`
}

func (f *fixture) model() *model.Test {
	t := &model.Test{
		CourseID:         f.Test.CourseID,
		ModuleID:         f.Test.ModuleID,
		MaterialID:       f.Test.MaterialID,
		Title:            f.Test.Title,
		NumQuestions:     len(f.Test.Questions),
		TimeLimitSeconds: f.Test.TimeLimitSeconds,
		PassThreshold:    f.Test.PassThreshold,
		Status:           model.TestStatusPublished,
	}
	for i, q := range f.Test.Questions {
		mq := model.Question{Text: q.Text, Type: q.Type, Position: i + 1, HintText: q.Hint}
		for _, o := range q.Options {
			mq.Options = append(mq.Options, model.AnswerOption{Text: o.Text, IsCorrect: o.Correct})
		}
		t.Questions = append(t.Questions, mq)
	}
	return t
}

func main() {
	configDir := flag.String("config", "configs", "directory holding config.yaml")
	fixturePath := flag.String("fixture", "scripts/seed_demo/demo_test.yaml", "test definition to seed")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger.InitLogger(cfg)

	data, err := os.ReadFile(*fixturePath)
	if err != nil {
		log.Fatalf("read fixture: %v", err)
	}
	var fx fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		log.Fatalf("parse fixture: %v", err)
	}

	db, err := database.InitDB(&cfg.Database, true)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}

	ctx := context.Background()
	test := fx.model()
	if err := repository.NewTestRepository(db).Create(ctx, test); err != nil {
		log.Fatalf("create test: %v", err)
	}
	enrollments := repository.NewEnrollmentRepository(db)
	if ok, err := enrollments.IsEnrolled(ctx, fx.UserID, test.CourseID); err != nil {
		log.Fatalf("check enrollment: %v", err)
	} else if !ok {
		if err := enrollments.Enroll(ctx, fx.UserID, test.CourseID); err != nil {
			log.Fatalf("enroll: %v", err)
		}
	}

	token, err := util.GenerateJWT(fx.UserID, "student", "", cfg.JWT.Secret, 24*time.Hour)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}

	log.Printf("seeded test %d: /api/courses/%d/modules/%d/materials/%d/tests/%d",
		test.ID, test.CourseID, test.ModuleID, test.MaterialID, test.ID)
	log.Printf("token for user %d: %s", fx.UserID, token)
}
