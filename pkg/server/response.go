package server

import (
	"net/http"

	"opsagent/pkg/models"

	"github.com/labstack/echo/v4"
)

// RespondOK writes a success envelope. The status code inside the envelope
// always matches the HTTP status.
func RespondOK(ctx echo.Context, data interface{}, message string) error {
	return ctx.JSON(http.StatusOK, models.Response{
		Success:    true,
		StatusCode: http.StatusOK,
		Data:       data,
		Message:    message,
	})
}

// RespondError writes a failure envelope with the given 4xx/5xx status.
func RespondError(ctx echo.Context, status int, errMsg string) error {
	return ctx.JSON(status, models.Response{
		Success:    false,
		StatusCode: status,
		Error:      errMsg,
	})
}
