package http

import (
	"errors"
	"net/http"

	"spendly/internal/auth"
	"spendly/internal/core"
	"spendly/internal/log"
	"spendly/internal/receipt"
	"spendly/internal/services"
	"spendly/internal/storage"
)

// errExtraction wraps recognition failures so they map to extraction_failed
// rather than internal_error.
var errExtraction = errors.New("extraction failed")

// errorResponse maps err to the response sent to the client.
func errorResponse(err error) *ResponseBuilder {
	if url, ok := core.DetectSetupRequired(err); ok {
		return SetupRequiredError(url)
	}

	switch {
	case errors.Is(err, errBadRequest):
		return BadRequestError(err.Error())
	case errors.Is(err, core.ErrInvalidAmount):
		return BadRequestError("Amount must be a positive number.")
	case errors.Is(err, core.ErrInvalidBudget):
		return BadRequestError("Budget must be a positive number.")
	case errors.Is(err, core.ErrEmptyDescription):
		return BadRequestError("Description is required.")
	case errors.Is(err, core.ErrDescriptionTooLong), errors.Is(err, core.ErrInvalidCategory):
		return BadRequestError(err.Error())
	case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrPasswordMismatch):
		return BadRequestError(err.Error())
	case errors.Is(err, receipt.ErrNoImage), errors.Is(err, receipt.ErrNotAnImage), errors.Is(err, receipt.ErrEmptyImage):
		return BadRequestError(receipt.UserMessage(err))
	case errors.Is(err, receipt.ErrNoCredential):
		return BadRequestError("An API key is required.")
	case errors.Is(err, receipt.ErrImageTooLarge):
		return ErrorResponse(http.StatusRequestEntityTooLarge, CodeValidation, receipt.UserMessage(err))

	case errors.Is(err, storage.ErrNotFound), errors.Is(err, services.ErrFederatedDisabled):
		return NotFoundError("Not found.")
	case errors.Is(err, storage.ErrEmailExists):
		return ErrorResponse(http.StatusConflict, CodeConflict, "An account with this email already exists.")
	case errors.Is(err, receipt.ErrDiscarded):
		return ErrorResponse(http.StatusConflict, CodeConflict, "The draft was discarded.")
	case errors.Is(err, receipt.ErrBusy):
		return ErrorResponse(http.StatusConflict, CodeBusy, receipt.UserMessage(err))

	case errors.Is(err, auth.ErrInvalidCredentials):
		return ErrorResponse(http.StatusUnauthorized, CodeUnauthorized, "Invalid email or password.")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingToken):
		return ErrorResponse(http.StatusUnauthorized, CodeUnauthorized, "sign in required")
	case errors.Is(err, auth.ErrUnverifiedEmail):
		return ErrorResponse(http.StatusForbidden, CodeUnauthorized, "The Google account email is not verified.")

	case errors.Is(err, errExtraction):
		return ErrorResponse(http.StatusBadGateway, CodeExtractionFailed, receipt.UserMessage(err))
	}
	return InternalServerError("Something went wrong.")
}

// writeError logs err at a level matching its response and writes it.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := errorResponse(err)
	logger := log.FromContext(r.Context())
	args := []any{
		log.FieldOperation, op,
		log.FieldPath, r.URL.Path,
		log.FieldStatusCode, resp.statusCode,
		log.FieldError, err,
	}
	if body, ok := resp.payload.(ErrorBody); ok && body.URL != "" {
		args = append(args, log.FieldSetupURL, body.URL)
	}
	if resp.statusCode >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", args...)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", args...)
	}
	resp.Write(w)
}
