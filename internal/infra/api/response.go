package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator"

	"telegram-private-group/internal/domain"
)

// Response is the JSON envelope of every endpoint.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

const (
	StatusOK    = "OK"
	StatusError = "Error"
)

func OK(data any) Response { return Response{Status: StatusOK, Data: data} }

func Error(msg string) Response { return Response{Status: StatusError, Error: msg} }

// ValidationError joins the failed rules into one readable message.
func ValidationError(errs validator.ValidationErrors) Response {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "hexadecimal":
			msgs = append(msgs, fmt.Sprintf("field %s must be hexadecimal", err.Field()))
		case "len":
			msgs = append(msgs, fmt.Sprintf("field %s must be %s characters long", err.Field(), err.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("field %s must be at most %s characters long", err.Field(), err.Param()))
		case "ne":
			msgs = append(msgs, fmt.Sprintf("field %s must not be %s", err.Field(), err.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is not valid", err.Field()))
		}
	}
	return Response{Status: StatusError, Error: strings.Join(msgs, ", ")}
}

// statusFor maps domain errors to HTTP codes. Anything unknown is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrPlanNotFound),
		errors.Is(err, domain.ErrSubscriptionNotFound),
		errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateTransaction),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrPlanInUse):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidTransaction),
		errors.Is(err, domain.ErrPlanRequired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorCode is the stable machine-readable name of a domain error.
func errorCode(err error) string {
	for _, e := range []struct {
		err  error
		code string
	}{
		{domain.ErrUserNotFound, "user_not_found"},
		{domain.ErrPlanNotFound, "plan_not_found"},
		{domain.ErrSubscriptionNotFound, "subscription_not_found"},
		{domain.ErrDuplicateTransaction, "duplicate_transaction"},
		{domain.ErrInvalidTransaction, "invalid_transaction"},
		{domain.ErrPlanRequired, "plan_required"},
		{domain.ErrAlreadyExists, "already_exists"},
		{domain.ErrPlanInUse, "plan_in_use"},
		{domain.ErrInvalidArgument, "invalid_argument"},
	} {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return "internal error"
}
