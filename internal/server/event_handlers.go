package server

import (
	"strings"
	"time"

	"warden/internal/detectors"
	"warden/internal/models"
	"warden/internal/scanner"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// IngestEventRequest is a content event submitted by a content domain.
type IngestEventRequest struct {
	ID          string    `json:"id"`
	ActorID     string    `json:"actor_id"`
	SubjectType string    `json:"subject_type"`
	SubjectID   string    `json:"subject_id"`
	Text        string    `json:"text"`
	TrustScore  *int      `json:"trust_score,omitempty"`
	Surface     string    `json:"surface,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	// Scores are classifier label scores such as hate or toxicity.
	Scores map[string]float64 `json:"scores,omitempty"`
	// URLRisk maps link hosts to reputation risk.
	URLRisk map[string]float64 `json:"url_risk,omitempty"`
}

func (r IngestEventRequest) event() detectors.ContentEvent {
	ev := detectors.ContentEvent{
		ID:          strings.TrimSpace(r.ID),
		ActorID:     strings.TrimSpace(r.ActorID),
		SubjectType: strings.TrimSpace(r.SubjectType),
		SubjectID:   strings.TrimSpace(r.SubjectID),
		Text:        r.Text,
		TrustScore:  r.TrustScore,
		Surface:     strings.TrimSpace(r.Surface),
		CreatedAt:   r.CreatedAt,
		Scores:      r.Scores,
		URLRisk:     r.URLRisk,
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	return ev
}

// IngestEvent godoc
// @Summary Ingest a content event
// @Description Runs the detector suite and policy over a content event and enforces the decision.
// @Description With async=true the event is queued on the ingress stream instead.
// @Tags events
// @Accept json
// @Produce json
// @Param async query bool false "Queue instead of evaluating inline"
// @Param request body IngestEventRequest true "Content event"
// @Success 200 {object} service.PipelineResult
// @Success 202 {object} object{stream_id=string,event_id=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /events [post]
func (s *Server) IngestEvent(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req IngestEventRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	ev := req.event()
	if ev.ActorID == "" || ev.SubjectType == "" || ev.SubjectID == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("actor_id, subject_type and subject_id are required"))
	}

	if c.QueryBool("async", false) {
		if s.streams == nil {
			return models.RespondWithError(c, fiber.StatusServiceUnavailable,
				models.NewInternalError(errStreamsUnavailable))
		}
		id, err := s.streams.Publish(ctx, s.config.ScanIngressStream, scanner.TextEventFields(ev))
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"stream_id": id,
			"event_id":  ev.ID,
		})
	}

	res, err := s.pipeline.Process(ctx, ev)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}
