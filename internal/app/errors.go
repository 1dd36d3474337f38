package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ehtisham-afzal/outline/internal/export"
	"github.com/ehtisham-afzal/outline/internal/state"
	"github.com/ehtisham-afzal/outline/internal/store"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func notFound(what string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", what+" not found", nil)
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var rejected *state.RejectedError
	if errors.As(err, &rejected) {
		return http.StatusUnprocessableEntity, "TRANSACTION_REJECTED", rejected.Err.Error(), map[string]any{"step": rejected.Step}
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict, "DUPLICATE", "Document already exists", nil
	case errors.Is(err, store.ErrVersionConflict):
		return http.StatusConflict, "VERSION_CONFLICT", "Document changed since base version", nil
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest, "UNSUPPORTED_FORMAT", err.Error(), nil
	case errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
		return http.StatusNotImplemented, "EXPORT_UNAVAILABLE", err.Error(), nil
	case errors.Is(err, export.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", err.Error(), nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
