package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tillworks/quota/internal/engine"
	"github.com/tillworks/quota/internal/remote"
	"github.com/tillworks/quota/internal/stores"
	"github.com/tillworks/quota/internal/validation"
)

// Problem is an RFC 7807 Problem Details body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// ProblemWithErrors carries field-level validation errors alongside the
// standard problem members.
type ProblemWithErrors struct {
	Problem
	Errors []validation.ValidationError `json:"errors,omitempty"`
}

type problemType struct {
	uri   string
	title string
}

var problemTypes = map[int]problemType{
	http.StatusBadRequest:          {"https://quota.dev/errors/bad-request", "Bad Request"},
	http.StatusUnauthorized:        {"https://quota.dev/errors/unauthorized", "Unauthorized"},
	http.StatusNotFound:            {"https://quota.dev/errors/not-found", "Not Found"},
	http.StatusConflict:            {"https://quota.dev/errors/conflict", "Conflict"},
	http.StatusUnprocessableEntity: {"https://quota.dev/errors/validation-failed", "Validation Failed"},
	http.StatusBadGateway:          {"https://quota.dev/errors/bad-gateway", "Bad Gateway"},
	http.StatusInternalServerError: {"https://quota.dev/errors/internal-error", "Internal Server Error"},
}

func typeFor(status int) problemType {
	if pt, ok := problemTypes[status]; ok {
		return pt
	}
	return problemType{uri: "https://quota.dev/errors/unknown", title: http.StatusText(status)}
}

// WriteProblem answers the request with an RFC 7807 body for status.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	pt := typeFor(status)
	encodeProblem(w, status, Problem{
		Type:     pt.uri,
		Title:    pt.title,
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	})
}

// WriteProblemWithErrors writes a 422 response listing the failed fields.
func WriteProblemWithErrors(w http.ResponseWriter, r *http.Request, detail string, errs []validation.ValidationError) {
	pt := typeFor(http.StatusUnprocessableEntity)
	encodeProblem(w, http.StatusUnprocessableEntity, ProblemWithErrors{
		Problem: Problem{
			Type:     pt.uri,
			Title:    pt.title,
			Status:   http.StatusUnprocessableEntity,
			Detail:   detail,
			Instance: r.URL.Path,
		},
		Errors: errs,
	})
}

func encodeProblem(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("problem response encoding failed", "error", err)
	}
}

// MapEngineError converts domain errors to Problem Details responses.
// Unrecognized errors stay generic so internal detail never reaches clients.
func MapEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, stores.ErrScopeNotFound), errors.Is(err, stores.ErrInvalidScope):
		WriteProblem(w, r, http.StatusNotFound, "Store scope not found")
	case errors.Is(err, engine.ErrBusy):
		WriteProblem(w, r, http.StatusConflict, "Reconciliation already in progress")
	case errors.Is(err, remote.ErrUnauthorized):
		WriteProblem(w, r, http.StatusBadGateway, "Upstream rejected credentials")
	case errors.Is(err, remote.ErrUnavailable):
		WriteProblem(w, r, http.StatusBadGateway, "Upstream unavailable")
	default:
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
	}
}
