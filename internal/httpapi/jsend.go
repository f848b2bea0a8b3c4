package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	jsendSuccess = "success"
	jsendFail    = "fail"
	jsendError   = "error"
)

// envelope is the jsend body every handler answers with. Code is only set
// on server errors.
type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

func respond(c echo.Context, httpStatus int, body envelope) error {
	return c.JSON(httpStatus, body)
}

func success(c echo.Context, data any) error {
	return respond(c, http.StatusOK, envelope{Status: jsendSuccess, Data: data})
}

func successWithStatus(c echo.Context, httpStatus int, data any) error {
	return respond(c, httpStatus, envelope{Status: jsendSuccess, Data: data})
}

func fail(c echo.Context, httpStatus int, message string, data any) error {
	return respond(c, httpStatus, envelope{Status: jsendFail, Message: message, Data: data})
}

func failValidation(c echo.Context, fieldErrors map[string]string) error {
	return fail(c, http.StatusBadRequest, "Validation failed", map[string]any{"validation_errors": fieldErrors})
}

func internalError(c echo.Context, message string) error {
	return internalErrorWithData(c, message, nil)
}

// internalErrorWithData carries a payload such as a failed run report.
func internalErrorWithData(c echo.Context, message string, data any) error {
	return respond(c, http.StatusInternalServerError, envelope{
		Status:  jsendError,
		Message: message,
		Data:    data,
		Code:    http.StatusInternalServerError,
	})
}
