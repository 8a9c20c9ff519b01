// Package handlers provides HTTP request handlers for the API.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	apierrors "github.com/narvanalabs/logkeeper/internal/api/errors"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	apierrors.WriteJSON(w, status, data)
}

// WriteError writes err tagged with the request's ID.
func WriteError(w http.ResponseWriter, r *http.Request, err *apierrors.APIError) {
	apierrors.WriteErrorWithRequestID(w, err, middleware.GetReqID(r.Context()))
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, apierrors.NewInvalidArgument(message))
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, apierrors.NewNotFound(message))
}

// WriteConflict writes a 409 Conflict response.
func WriteConflict(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, apierrors.NewAlreadyExists(message))
}

// WriteUnauthenticated writes a 401 Unauthorized response.
func WriteUnauthenticated(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, apierrors.NewUnauthenticated(message))
}

// WritePermissionDenied writes a 403 Forbidden response.
func WritePermissionDenied(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, apierrors.NewPermissionDenied(message))
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, apierrors.NewInternal(message))
}
