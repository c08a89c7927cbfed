package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/KevinKickass/OpenGCodeCore/internal/transport"
	"github.com/KevinKickass/OpenGCodeCore/internal/types"
	"github.com/gin-gonic/gin"
)

var kindStatus = map[types.Kind]int{
	types.KindConfiguration:        http.StatusUnprocessableEntity,
	types.KindLookup:               http.StatusNotFound,
	types.KindUnsupportedOperation: http.StatusNotImplemented,
	types.KindParameter:            http.StatusBadRequest,
	types.KindStateStack:           http.StatusConflict,
	types.KindResponseValidation:   http.StatusBadGateway,
}

// statusFor maps an error to its HTTP status. Unclassified errors come from
// the device link.
func statusFor(err error) int {
	if kind, ok := types.KindOf(err); ok {
		return kindStatus[kind]
	}
	switch {
	case errors.Is(err, transport.ErrNotConnected):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// fail writes an AREA_NNN error response for err.
func (s *Server) fail(c *gin.Context, area, message string, err error, details any) {
	status := statusFor(err)
	if details == nil {
		details = err.Error()
	}
	if kind, ok := types.KindOf(err); ok {
		c.Header("X-Error-Kind", string(kind))
	}
	c.JSON(status, types.NewErrorResponse(fmt.Sprintf("%s_%d", area, status), message, details))
}

func badRequest(c *gin.Context, area, message string, err error) {
	c.JSON(http.StatusBadRequest, types.NewErrorResponse(area+"_400", message, err.Error()))
}
