package handler

import (
	"github.com/labstack/echo/v4"
)

// Every endpoint answers with the same envelope: the HTTP status code
// repeated in the body, the payload, a human-readable message, and an
// error detail that is nil on success.
type envelope struct {
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
	Error   interface{} `json:"error"`
}

func respond(c echo.Context, code int, data interface{}, message string) error {
	if data == nil {
		data = []interface{}{}
	}
	return c.JSON(code, envelope{Code: code, Data: data, Message: message})
}

func respondError(c echo.Context, code int, message string, detail interface{}) error {
	return c.JSON(code, envelope{Code: code, Data: []interface{}{}, Message: message, Error: detail})
}

// fieldErrors collects per-field validation failures for 422 responses.
type fieldErrors map[string][]string

func (f fieldErrors) add(field, msg string) {
	f[field] = append(f[field], msg)
}

func (f fieldErrors) empty() bool { return len(f) == 0 }
