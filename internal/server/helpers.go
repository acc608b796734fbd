package server

import (
	"errors"
	"strings"
	"unicode"

	"warden/internal/enforcement"
	"warden/internal/models"
	"warden/internal/repository"
	"warden/internal/restrictions"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

var errStreamsUnavailable = errors.New("streams unavailable")

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const (
	maxPaginationLimit = 100
	maxIDLen           = 128
)

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{
		Limit:  limit,
		Offset: offset,
	}
}

// parseParam extracts a non-empty route parameter of bounded length.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// The error message is derived from the parameter name (e.g. "id" -> "Invalid ID",
// "userID" -> "Invalid user ID", "appealId" -> "Invalid appeal ID").
func parseParam(c *fiber.Ctx, param string) (string, error) {
	v := strings.TrimSpace(c.Params(param))
	if v == "" || len(v) > maxIDLen {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return "", errResponseWritten
	}
	return v, nil
}

// humanizeParam converts a route param name into a human-readable label.
func humanizeParam(param string) string {
	if strings.EqualFold(param, "id") {
		return "ID"
	}
	for _, suffix := range []string{"ID", "Id"} {
		if strings.HasSuffix(param, suffix) {
			words := splitCamel(param[:len(param)-len(suffix)])
			return strings.ToLower(strings.Join(words, " ")) + " ID"
		}
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// parseBody decodes the JSON request body into dst, answering 400 on failure.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}

// statusFor extends models.StatusFor with the package-level errors that
// are not AppErrors.
func statusFor(err error) int {
	switch {
	case errors.Is(err, restrictions.ErrInvalidMode),
		errors.Is(err, enforcement.ErrUnsupportedAction):
		return fiber.StatusBadRequest
	case errors.Is(err, repository.ErrRestrictionNotFound),
		errors.Is(err, repository.ErrAttachmentNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, repository.ErrActionAlreadyRecorded):
		return fiber.StatusConflict
	}
	return models.StatusFor(err)
}

// respondError writes err with the status its type maps to.
func respondError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		var appErr *models.AppError
		if !errors.As(err, &appErr) {
			err = models.NewInternalError(err)
		}
	}
	return models.RespondWithError(c, status, err)
}
