package server

import (
	"strings"

	"warden/internal/middleware"
	"warden/internal/models"
	"warden/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CaseDetail is a case with its recorded actions.
type CaseDetail struct {
	Case    *models.ModerationCase     `json:"case"`
	Actions []*models.ModerationAction `json:"actions"`
}

type noteRequest struct {
	Note string `json:"note"`
}

// SubmitReport godoc
// @Summary Report a subject
// @Description Files a report against a subject, opening or joining its case.
// @Tags reports
// @Accept json
// @Produce json
// @Param request body service.SubmitReportInput true "Report"
// @Success 201 {object} models.ModerationReport
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /reports [post]
func (s *Server) SubmitReport(c *fiber.Ctx) error {
	var in service.SubmitReportInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.ReporterID = middleware.ActorID(c)

	rep, err := s.cases.SubmitReport(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(rep)
}

// ListCases godoc
// @Summary List moderation cases
// @Tags cases
// @Produce json
// @Param status query string false "Filter by status"
// @Param subject_type query string false "Filter by subject type"
// @Param assigned_to query string false "Filter by assignee"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {array} models.ModerationCase
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /cases [get]
func (s *Server) ListCases(c *fiber.Ctx) error {
	page := parsePagination(c, 50)
	filter := models.CaseFilter{
		Status:      models.CaseStatus(strings.ToLower(strings.TrimSpace(c.Query("status")))),
		SubjectType: strings.TrimSpace(c.Query("subject_type")),
		AssignedTo:  strings.TrimSpace(c.Query("assigned_to")),
		Limit:       page.Limit,
		Offset:      page.Offset,
	}
	cases, err := s.cases.ListCases(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	if cases == nil {
		cases = []*models.ModerationCase{}
	}
	return c.JSON(cases)
}

// GetCase godoc
// @Summary Get a case with its actions
// @Tags cases
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} CaseDetail
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /cases/{id} [get]
func (s *Server) GetCase(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id, err := parseParam(c, "id")
	if err != nil {
		return nil
	}
	mc, err := s.cases.GetCase(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	actions, err := s.cases.ListCaseActions(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if actions == nil {
		actions = []*models.ModerationAction{}
	}
	return c.JSON(CaseDetail{Case: mc, Actions: actions})
}

// GetCaseAudit godoc
// @Summary List a case's audit trail
// @Tags cases
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {array} models.AuditLogEntry
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /cases/{id}/audit [get]
func (s *Server) GetCaseAudit(c *fiber.Ctx) error {
	id, err := parseParam(c, "id")
	if err != nil {
		return nil
	}
	entries, err := s.cases.ListAudit(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	if entries == nil {
		entries = []*models.AuditLogEntry{}
	}
	return c.JSON(entries)
}

// AssignCase godoc
// @Summary Assign a case
// @Description Assigns the case to assignee_id, or to the caller when omitted.
// @Tags cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param request body object{assignee_id=string} false "Assignee"
// @Success 200 {object} models.ModerationCase
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /cases/{id}/assign [post]
func (s *Server) AssignCase(c *fiber.Ctx) error {
	id, err := parseParam(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		AssigneeID string `json:"assignee_id"`
	}
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return nil
		}
	}
	actor := middleware.ActorID(c)
	assignee := strings.TrimSpace(req.AssigneeID)
	if assignee == "" {
		assignee = actor
	}

	mc, err := s.cases.AssignCase(c.UserContext(), id, assignee, actor)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(mc)
}

// EscalateCase godoc
// @Summary Escalate a case
// @Tags cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param request body object{note=string} false "Escalation note"
// @Success 200 {object} models.ModerationCase
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /cases/{id}/escalate [post]
func (s *Server) EscalateCase(c *fiber.Ctx) error {
	id, req, err := s.caseNote(c)
	if err != nil {
		return nil
	}
	mc, err := s.cases.EscalateCase(c.UserContext(), id, middleware.ActorID(c), req.Note)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(mc)
}

// DismissCase godoc
// @Summary Dismiss a case
// @Tags cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param request body object{note=string} false "Dismissal note"
// @Success 200 {object} models.ModerationCase
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /cases/{id}/dismiss [post]
func (s *Server) DismissCase(c *fiber.Ctx) error {
	id, req, err := s.caseNote(c)
	if err != nil {
		return nil
	}
	mc, err := s.cases.DismissCase(c.UserContext(), id, middleware.ActorID(c), req.Note)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(mc)
}

// PerformCaseAction godoc
// @Summary Apply a moderation action to a case
// @Tags cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param request body service.PerformActionInput true "Action"
// @Success 200 {object} models.ModerationCase
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /cases/{id}/actions [post]
func (s *Server) PerformCaseAction(c *fiber.Ctx) error {
	id, err := parseParam(c, "id")
	if err != nil {
		return nil
	}
	var in service.PerformActionInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.CaseID = id
	in.ActorID = middleware.ActorID(c)

	mc, err := s.cases.PerformCaseAction(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(mc)
}

// SubmitAppeal godoc
// @Summary Appeal a case decision
// @Description Only the owner of the case's subject may appeal an actioned case.
// @Tags appeals
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param request body object{note=string} true "Appeal note"
// @Success 201 {object} models.ModerationAppeal
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /cases/{id}/appeals [post]
func (s *Server) SubmitAppeal(c *fiber.Ctx) error {
	id, req, err := s.caseNote(c)
	if err != nil {
		return nil
	}
	appeal, err := s.cases.SubmitAppeal(c.UserContext(), id, middleware.ActorID(c), req.Note)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(appeal)
}

// ResolveAppeal godoc
// @Summary Resolve an appeal
// @Description Accepting reverses the case's reversible actions; rejecting closes it.
// @Tags appeals
// @Accept json
// @Produce json
// @Param id path string true "Appeal ID"
// @Param request body object{accept=bool,note=string} true "Resolution"
// @Success 200 {object} models.ModerationAppeal
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /appeals/{id}/resolve [post]
func (s *Server) ResolveAppeal(c *fiber.Ctx) error {
	id, err := parseParam(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Accept *bool  `json:"accept"`
		Note   string `json:"note"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.Accept == nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("accept is required"))
	}

	appeal, err := s.cases.ResolveAppeal(c.UserContext(), id, *req.Accept, middleware.ActorID(c), req.Note)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(appeal)
}

// caseNote parses the case id and an optional {note} body.
func (s *Server) caseNote(c *fiber.Ctx) (string, noteRequest, error) {
	var req noteRequest
	id, err := parseParam(c, "id")
	if err != nil {
		return "", req, err
	}
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return "", req, err
		}
	}
	req.Note = strings.TrimSpace(req.Note)
	return id, req, nil
}
