package handlers

import (
	"errors"
	"net/http"

	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/Dhoini/channel-access-bot/pkg/logger"
	"github.com/Dhoini/channel-access-bot/pkg/res"
	"github.com/gin-gonic/gin"
)

// writeError единственное место, где доменные ошибки превращаются в HTTP-коды.
// Текст неожиданных ошибок наружу не отдаётся.
func writeError(c *gin.Context, log *logger.Logger, err error) {
	status := http.StatusInternalServerError
	body := res.ErrorResponse{Error: "internal server error"}

	var verr *domain.ValidationError
	var verrs domain.ValidationErrors
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		body = res.ErrorResponse{Error: "invalid request data", Details: map[string]string{verr.Field: verr.Message}}
	case errors.As(err, &verrs):
		status = http.StatusBadRequest
		details := make(map[string]string, len(verrs))
		for _, e := range verrs {
			details[e.Field] = e.Message
		}
		body = res.ErrorResponse{Error: "invalid request data", Details: details}
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
		body.Error = "invalid request data"
	case errors.Is(err, domain.ErrUnauthenticated):
		status = http.StatusUnauthorized
		body.Error = "unauthenticated"
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		body.Error = err.Error()
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrStaleTransition):
		status = http.StatusConflict
		body.Error = err.Error()
	case errors.Is(err, domain.ErrDuplicate):
		status = http.StatusConflict
		body.Error = "duplicate record"
	}

	if status == http.StatusInternalServerError {
		log.Errorw("Request failed", "path", c.FullPath(), "error", err)
	}
	_ = c.Error(err)
	res.JsonErrorResponse(c.Writer, body, status, log)
	c.Abort()
}
