package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// InstructionsProvider summarises an exam for the pre-exam screen.
type InstructionsProvider interface {
	Instructions(ctx context.Context, name string, now time.Time) (*model.ExamInstructions, error)
}

// StudentPortalHandler handles student-facing HTTP endpoints.
type StudentPortalHandler struct {
	exams InstructionsProvider
	now   func() time.Time
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(exams InstructionsProvider) *StudentPortalHandler {
	return &StudentPortalHandler{exams: exams, now: time.Now}
}

// GetInstructions godoc
// GET /api/v1/student/exams/:exam_name/instructions
// Returns duration, question count, languages and schedule status.
func (h *StudentPortalHandler) GetInstructions(c *gin.Context) {
	info, err := h.exams.Instructions(c.Request.Context(), c.Param("exam_name"), h.now())
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	case err != nil:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	case info.QuestionCount == 0:
		response.Fail(c, http.StatusNotFound, response.ErrNoContent)
		return
	}

	response.Success(c, http.StatusOK, info)
}
