package httpserver

import (
	"errors"
	"net/http"

	"shoporders/internal/domain"
	"github.com/gin-gonic/gin"
)

type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeData(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

// writeError maps the domain error taxonomy onto HTTP statuses. Messages come
// from the error itself so handlers never duplicate the wording.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	var gwErr *domain.GatewayError
	switch {
	case errors.Is(err, domain.ErrAuthRequired):
		status, message = http.StatusUnauthorized, err.Error()
	case errors.Is(err, domain.ErrForbidden):
		status, message = http.StatusForbidden, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		status, message = http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrProductGone):
		status, message = http.StatusBadRequest, err.Error()
	case errors.As(err, &gwErr):
		message = err.Error()
		switch gwErr.Kind {
		case domain.GatewayTimeout:
			status = http.StatusGatewayTimeout
		case domain.GatewayUnreachable:
			status = http.StatusServiceUnavailable
		default:
			status = http.StatusBadGateway
		}
	case errors.Is(err, domain.ErrUpstreamGateway):
		status, message = http.StatusBadGateway, err.Error()
	}

	c.AbortWithStatusJSON(status, envelope{Success: false, Message: message})
}
