package app

import (
	"errors"
	"fmt"
	"net/http"

	"todolists/internal/lists"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

const (
	listNotFoundMessage = "The specified list was not found."
	todoNotFoundMessage = "The specified todo was not found."
)

// fromListsError turns the lists package's errors into user-facing ones.
func fromListsError(err error) error {
	var ve *lists.ValidationError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ve):
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", ve.Message)
	case errors.Is(err, lists.ErrTodoNotFound):
		return domainError(http.StatusNotFound, "NOT_FOUND", todoNotFoundMessage)
	case errors.Is(err, lists.ErrNotFound):
		return domainError(http.StatusNotFound, "NOT_FOUND", listNotFoundMessage)
	default:
		return err
	}
}

func mapError(err error) (status int, code, message string) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error"
}

func isNotFound(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Status == http.StatusNotFound
}
