package api

import (
	"fmt"

	"github.com/studywise/studywise-go/internal/response"
)

// Error is a backend-reported failure carrying the envelope's typed code and
// human-readable message.
type Error struct {
	Status  int
	Code    response.ErrCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: %s (%d): %s", e.Code, e.Status, e.Message)
}

func newError(status int, body *response.ErrorBody) *Error {
	e := &Error{Status: status, Code: response.ErrInternal}
	if body != nil {
		e.Code = body.Code
		e.Message = body.Message
	}
	if e.Message == "" {
		e.Message = response.Message(e.Code)
	}
	return e
}
