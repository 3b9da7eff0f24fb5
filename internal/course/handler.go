package course

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/emandor/course_service/internal/apperr"
	"github.com/emandor/course_service/internal/middleware"
	"github.com/emandor/course_service/internal/telemetry"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// GetCourse handles GET /api/course/:userId.
func (h *Handler) GetCourse(c *fiber.Ctx) error {
	uid, err := strconv.ParseInt(c.Params("userId"), 10, 64)
	if err != nil || uid <= 0 {
		return apperr.Validation("course.get", "userId must be a positive integer")
	}

	out, err := h.svc.Overview(c.UserContext(), uid)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

type completeRequest struct {
	UserID   flexID `json:"userId"`
	LessonID flexID `json:"lessonId"`
}

// flexID accepts 3 as well as "3"; browsers post either.
type flexID int64

func (i *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(bytes.TrimSpace(b), `"`)
	if len(b) == 0 || string(b) == "null" {
		*i = 0
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*i = flexID(n)
	return nil
}

// Complete handles POST /api/complete.
func (h *Handler) Complete(c *fiber.Ctx) error {
	const op = "progress.complete"
	var req completeRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return &apperr.Error{Kind: apperr.KindValidation, Op: op, Public: "invalid JSON body", Err: err}
	}

	p, first, err := h.svc.Complete(c.UserContext(), int64(req.UserID), int64(req.LessonID))
	if err != nil {
		return err
	}

	telemetry.Req(middleware.RequestIDFrom(c)).Info().
		Int64("user_id", p.UserID).
		Int64("lesson_id", p.LessonID).
		Bool("first", first).
		Msg("progress_recorded")

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Progress saved",
	})
}
