package server

import (
	"strings"
	"time"

	"warden/internal/middleware"
	"warden/internal/models"
	"warden/internal/notifications"
	"warden/internal/restrictions"

	"github.com/gofiber/fiber/v2"
)

// CreateRestrictionRequest applies a restriction by hand.
type CreateRestrictionRequest struct {
	UserID     string     `json:"user_id"`
	Scope      string     `json:"scope"`
	Mode       string     `json:"mode"`
	TTLMinutes int        `json:"ttl_minutes,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CaseID     string     `json:"case_id,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

// ReputationView is a user's reputation, trust and recent history.
type ReputationView struct {
	Reputation *models.ReputationScore   `json:"reputation"`
	Trust      int                       `json:"trust"`
	Events     []*models.ReputationEvent `json:"events"`
}

// GetRestrictionFlags godoc
// @Summary Check a user's restriction flags in a scope
// @Tags restrictions
// @Produce json
// @Param userID path string true "User ID"
// @Param scope path string true "Scope"
// @Success 200 {object} restrictions.Flags
// @Security BearerAuth
// @Router /restrictions/{userID}/{scope} [get]
func (s *Server) GetRestrictionFlags(c *fiber.Ctx) error {
	userID, err := parseParam(c, "userID")
	if err != nil {
		return nil
	}
	scope, err := parseParam(c, "scope")
	if err != nil {
		return nil
	}
	flags, err := s.restrictions.CheckFlags(c.UserContext(), userID, scope)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(flags)
}

// ListRestrictions godoc
// @Summary List a user's active restrictions
// @Tags restrictions
// @Produce json
// @Param userID path string true "User ID"
// @Success 200 {array} models.Restriction
// @Security BearerAuth
// @Router /restrictions/{userID} [get]
func (s *Server) ListRestrictions(c *fiber.Ctx) error {
	userID, err := parseParam(c, "userID")
	if err != nil {
		return nil
	}
	active, err := s.restrictions.ListActive(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	if active == nil {
		active = []*models.Restriction{}
	}
	return c.JSON(active)
}

// CreateRestriction godoc
// @Summary Apply a restriction
// @Description Persists the restriction and sets its flags with the same TTL.
// @Tags restrictions
// @Accept json
// @Produce json
// @Param request body CreateRestrictionRequest true "Restriction"
// @Success 201 {object} models.Restriction
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /restrictions [post]
func (s *Server) CreateRestriction(c *fiber.Ctx) error {
	var req CreateRestrictionRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.TTLMinutes < 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("ttl_minutes must not be negative"))
	}

	r, err := s.restrictions.Apply(c.UserContext(), restrictions.ApplyInput{
		UserID:    strings.TrimSpace(req.UserID),
		Scope:     strings.TrimSpace(req.Scope),
		Mode:      models.RestrictionMode(strings.ToLower(strings.TrimSpace(req.Mode))),
		TTL:       time.Duration(req.TTLMinutes) * time.Minute,
		ExpiresAt: req.ExpiresAt,
		CaseID:    strings.TrimSpace(req.CaseID),
		Reason:    strings.TrimSpace(req.Reason),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(r)
}

// RevokeRestriction godoc
// @Summary Revoke a restriction
// @Tags restrictions
// @Produce json
// @Param id path string true "Restriction ID"
// @Success 200 {object} object{message=string}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /restrictions/{id} [delete]
func (s *Server) RevokeRestriction(c *fiber.Ctx) error {
	id, err := parseParam(c, "id")
	if err != nil {
		return nil
	}
	if err := s.restrictions.Revoke(c.UserContext(), id, middleware.ActorID(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Restriction revoked"})
}

// GetReputation godoc
// @Summary Get a user's reputation and trust
// @Tags reputation
// @Produce json
// @Param userID path string true "User ID"
// @Param limit query int false "Number of events"
// @Success 200 {object} ReputationView
// @Security BearerAuth
// @Router /reputation/{userID} [get]
func (s *Server) GetReputation(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID, err := parseParam(c, "userID")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 20)

	score, err := s.reputation.Get(ctx, userID)
	if err != nil {
		return respondError(c, err)
	}
	trustScore, err := s.trust.Score(ctx, userID)
	if err != nil {
		return respondError(c, err)
	}
	events, err := s.reputation.Events(ctx, userID, page.Limit)
	if err != nil {
		return respondError(c, err)
	}
	if events == nil {
		events = []*models.ReputationEvent{}
	}
	return c.JSON(ReputationView{Reputation: score, Trust: trustScore, Events: events})
}

// GetNotifications godoc
// @Summary List the caller's recent notifications
// @Tags notifications
// @Produce json
// @Param limit query int false "Number of notifications"
// @Success 200 {array} notifications.Notification
// @Security BearerAuth
// @Router /notifications [get]
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	items, err := s.notifier.Inbox(c.UserContext(), middleware.ActorID(c), int64(page.Limit))
	if err != nil {
		return respondError(c, err)
	}
	if items == nil {
		items = []notifications.Notification{}
	}
	return c.JSON(items)
}

// GetFeatureFlags returns configured feature flags and evaluated state for the caller.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	if s.featureFlags == nil {
		return c.JSON(fiber.Map{
			"raw":       map[string]string{},
			"evaluated": map[string]bool{},
		})
	}

	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(middleware.ActorID(c)),
	})
}
