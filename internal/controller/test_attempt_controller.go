package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/like-Ocean/AI-Classes/internal/model"
	"github.com/like-Ocean/AI-Classes/internal/service"
	"github.com/like-Ocean/AI-Classes/internal/util"
)

type TestAttemptController struct {
	Service *service.TestAttemptService
}

func NewTestAttemptController(svc *service.TestAttemptService) *TestAttemptController {
	return &TestAttemptController{Service: svc}
}

// SubmitAnswerReq carries one answer; answer is {"selected_option_ids": [...]} or {"text": "..."}.
type SubmitAnswerReq struct {
	QuestionID uint                `json:"question_id" binding:"required"`
	Answer     model.AnswerPayload `json:"answer" swaggertype:"object"`
	HintUsed   bool                `json:"hint_used"`
}

func testRefFromPath(ctx *gin.Context) (service.TestRef, bool) {
	var ref service.TestRef
	var ok bool
	if ref.CourseID, ok = util.ParseID(ctx.Param("courseId")); !ok {
		return ref, false
	}
	if ref.ModuleID, ok = util.ParseID(ctx.Param("moduleId")); !ok {
		return ref, false
	}
	if ref.MaterialID, ok = util.ParseID(ctx.Param("materialId")); !ok {
		return ref, false
	}
	if ref.TestID, ok = util.ParseID(ctx.Param("testId")); !ok {
		return ref, false
	}
	return ref, true
}

func reason(r string) gin.H {
	return gin.H{"reason": r}
}

// respondError maps domain errors to a status and a stable reason code.
func respondError(ctx *gin.Context, err error) {
	var blocked *util.BlockedError
	var incomplete *util.IncompleteAttemptError

	switch {
	case errors.As(err, &blocked):
		util.ErrorWithData(ctx, http.StatusForbidden, err.Error(), gin.H{
			"reason":       "blocked",
			"blockedUntil": blocked.Until,
		})
	case errors.As(err, &incomplete):
		util.ErrorWithData(ctx, http.StatusBadRequest, err.Error(), gin.H{
			"reason":   "incomplete_attempt",
			"answered": incomplete.Answered,
			"required": incomplete.Required,
		})
	case errors.Is(err, util.ErrTestNotFound), errors.Is(err, util.ErrAttemptNotFound):
		util.ErrorWithData(ctx, http.StatusNotFound, err.Error(), reason("not_found"))
	case errors.Is(err, util.ErrQuestionNotInTest):
		util.ErrorWithData(ctx, http.StatusNotFound, err.Error(), reason("question_not_in_test"))
	case errors.Is(err, util.ErrNotEnrolled):
		util.ErrorWithData(ctx, http.StatusForbidden, err.Error(), reason("not_enrolled"))
	case errors.Is(err, util.ErrAlreadyActiveAttempt):
		util.ErrorWithData(ctx, http.StatusConflict, err.Error(), reason("active_attempt_exists"))
	case errors.Is(err, util.ErrDuplicateAnswer):
		util.ErrorWithData(ctx, http.StatusConflict, err.Error(), reason("duplicate_answer"))
	case errors.Is(err, util.ErrAttemptAlreadyFinished):
		util.ErrorWithData(ctx, http.StatusConflict, err.Error(), reason("attempt_finished"))
	case errors.Is(err, util.ErrAttemptNotFinished):
		util.ErrorWithData(ctx, http.StatusBadRequest, err.Error(), reason("attempt_not_finished"))
	case errors.Is(err, util.ErrInvalidAnswer):
		util.ErrorWithData(ctx, http.StatusBadRequest, err.Error(), reason("invalid_request"))
	default:
		util.LogInternalError(ctx, err)
	}
}

func invalidRequest(ctx *gin.Context, message string) {
	util.ErrorWithData(ctx, http.StatusBadRequest, message, reason("invalid_request"))
}

// @Summary Get a test for taking
// @Description Questions in display order; options carry no correctness flags.
// @Tags attempts
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "Course ID"
// @Param moduleId path int true "Module ID"
// @Param materialId path int true "Material ID"
// @Param testId path int true "Test ID"
// @Success 200 {object} util.Response{data=service.StudentTestView}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /courses/{courseId}/modules/{moduleId}/materials/{materialId}/tests/{testId} [get]
func (c *TestAttemptController) GetTest(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	ref, ok := testRefFromPath(ctx)
	if !ok {
		invalidRequest(ctx, "invalid path id")
		return
	}

	view, err := c.Service.GetTestForStudent(ctx.Request.Context(), user.UserID, ref)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary Start an attempt
// @Tags attempts
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "Course ID"
// @Param moduleId path int true "Module ID"
// @Param materialId path int true "Material ID"
// @Param testId path int true "Test ID"
// @Success 201 {object} util.Response{data=service.AttemptView}
// @Failure 403 {object} util.Response "not enrolled or blocked"
// @Failure 409 {object} util.Response "an attempt is already in progress"
// @Router /courses/{courseId}/modules/{moduleId}/materials/{materialId}/tests/{testId}/attempts [post]
func (c *TestAttemptController) Start(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	ref, ok := testRefFromPath(ctx)
	if !ok {
		invalidRequest(ctx, "invalid path id")
		return
	}

	attempt, err := c.Service.Start(ctx.Request.Context(), user.UserID, ref)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, attempt)
}

// @Summary List my attempts on a test
// @Tags attempts
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "Course ID"
// @Param moduleId path int true "Module ID"
// @Param materialId path int true "Material ID"
// @Param testId path int true "Test ID"
// @Success 200 {object} util.Response{data=[]service.AttemptSummary}
// @Router /courses/{courseId}/modules/{moduleId}/materials/{materialId}/tests/{testId}/attempts [get]
func (c *TestAttemptController) ListMine(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	ref, ok := testRefFromPath(ctx)
	if !ok {
		invalidRequest(ctx, "invalid path id")
		return
	}

	attempts, err := c.Service.ListMyAttempts(ctx.Request.Context(), user.UserID, ref)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}

// @Summary Submit an answer
// @Description Each question can be answered once per attempt, in any order.
// @Tags attempts
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "Course ID"
// @Param moduleId path int true "Module ID"
// @Param materialId path int true "Material ID"
// @Param testId path int true "Test ID"
// @Param attemptId path int true "Attempt ID"
// @Param body body SubmitAnswerReq true "Answer"
// @Success 201 {object} util.Response{data=model.QuestionAttempt}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response "already answered or attempt finished"
// @Router /courses/{courseId}/modules/{moduleId}/materials/{materialId}/tests/{testId}/attempts/{attemptId}/answers [post]
func (c *TestAttemptController) SubmitAnswer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	ref, ok := testRefFromPath(ctx)
	if !ok {
		invalidRequest(ctx, "invalid path id")
		return
	}
	attemptID, ok := util.ParseID(ctx.Param("attemptId"))
	if !ok {
		invalidRequest(ctx, "invalid attempt id")
		return
	}

	var req SubmitAnswerReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		invalidRequest(ctx, err.Error())
		return
	}

	qa, err := c.Service.SubmitAnswer(ctx.Request.Context(), user.UserID, ref, attemptID, req.QuestionID, req.Answer, req.HintUsed)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, qa)
}

// @Summary Finish an attempt
// @Description Scores the attempt. Repeated failures block new attempts for a while.
// @Tags attempts
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "Course ID"
// @Param moduleId path int true "Module ID"
// @Param materialId path int true "Material ID"
// @Param testId path int true "Test ID"
// @Param attemptId path int true "Attempt ID"
// @Success 200 {object} util.Response{data=service.FinishResult}
// @Failure 400 {object} util.Response "unanswered questions"
// @Failure 409 {object} util.Response "attempt already finished"
// @Router /courses/{courseId}/modules/{moduleId}/materials/{materialId}/tests/{testId}/attempts/{attemptId}/finish [post]
func (c *TestAttemptController) Finish(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	ref, ok := testRefFromPath(ctx)
	if !ok {
		invalidRequest(ctx, "invalid path id")
		return
	}
	attemptID, ok := util.ParseID(ctx.Param("attemptId"))
	if !ok {
		invalidRequest(ctx, "invalid attempt id")
		return
	}

	res, err := c.Service.Finish(ctx.Request.Context(), user.UserID, ref, attemptID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// @Summary Get the result of a finished attempt
// @Tags attempts
// @Produce json
// @Security ApiKeyAuth
// @Param attemptId path int true "Attempt ID"
// @Success 200 {object} util.Response{data=service.AttemptResult}
// @Failure 400 {object} util.Response "attempt not finished"
// @Failure 404 {object} util.Response
// @Router /attempts/{attemptId}/result [get]
func (c *TestAttemptController) GetResult(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	attemptID, ok := util.ParseID(ctx.Param("attemptId"))
	if !ok {
		invalidRequest(ctx, "invalid attempt id")
		return
	}

	result, err := c.Service.GetResult(ctx.Request.Context(), user.UserID, attemptID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
