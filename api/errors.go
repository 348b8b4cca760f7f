package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Matteo-Daniele/useTeam-PT/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

func statusForKind(k domain.Kind) int {
	switch k {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindLimitExceeded:
		return http.StatusForbidden
	case domain.KindDuplicateName:
		return http.StatusConflict
	case domain.KindCrossBoardMove:
		return http.StatusUnprocessableEntity
	case domain.KindCollaborator:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError translates a failure into the JSON error body. Domain
// errors carry a user-displayable message; anything else becomes an
// opaque 500 so storage details never leak to clients.
func writeError(c echo.Context, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return c.JSON(statusForKind(de.Kind), errorResponse{Error: de.Message})
	}
	c.Logger().Error(err)
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
}
