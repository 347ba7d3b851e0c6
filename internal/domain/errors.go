package domain

import (
	"fmt"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code, so copies made with
// WithError or WithMessage still compare equal to the sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

// WithMessage returns a copy carrying a request-specific message.
func (e *AppError) WithMessage(msg string) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    msg,
		StatusCode: e.StatusCode,
		Err:        e.Err,
	}
}

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: 404,
	}

	ErrInvalidImage = &AppError{
		Code:       "INVALID_IMAGE",
		Message:    "Invalid image format or corrupted file",
		StatusCode: 400,
	}

	ErrMissingImage = &AppError{
		Code:       "MISSING_IMAGE",
		Message:    "Image file is required",
		StatusCode: 400,
	}

	ErrInvalidBox = &AppError{
		Code:       "INVALID_BOX",
		Message:    "Box must be a JSON object with positive w and h",
		StatusCode: 422,
	}

	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Rate limit exceeded, please try again later",
		StatusCode: 429,
	}

	ErrValidationFailed = &AppError{
		Code:       "VALIDATION_FAILED",
		Message:    "Request validation failed",
		StatusCode: 422,
	}

	ErrInvalidThreshold = &AppError{
		Code:       "INVALID_THRESHOLD",
		Message:    "Threshold must be between 0 and 1",
		StatusCode: 422,
	}

	ErrProviderUnavailable = &AppError{
		Code:       "PROVIDER_UNAVAILABLE",
		Message:    "Face analysis provider is unavailable",
		StatusCode: 503,
	}

	ErrServiceUnavailable = &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    "Service is not ready",
		StatusCode: 503,
	}
)

// Stage names a step of the verification pipeline.
type Stage string

const (
	StageDecode       Stage = "decode"
	StageDetect       Stage = "detect"
	StageResolveRoles Stage = "resolveRoles"
	StageCrop         Stage = "crop"
	StageEmbed        Stage = "embed"
	StageScore        Stage = "score"
	StageLiveness     Stage = "liveness"
)

// Reason is the machine-readable code of a declined verdict.
type Reason string

const (
	ReasonNoFacesDetected     Reason = "noFacesDetected"
	ReasonInsufficientFaces   Reason = "insufficientFaces"
	ReasonDegenerateCrop      Reason = "degenerateCrop"
	ReasonDegenerateEmbedding Reason = "degenerateEmbedding"
	ReasonLivenessFailed      Reason = "livenessFailed"
)

// StageError is a recoverable pipeline failure. The orchestrator turns it
// into a verdict with ok=false instead of a transport error.
type StageError struct {
	Stage  Stage
	Reason Reason
	Msg    string
	Err    error
}

func NewStageError(stage Stage, reason Reason, msg string, err error) *StageError {
	return &StageError{Stage: stage, Reason: reason, Msg: msg, Err: err}
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Msg)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// VerdictError returns the externally visible form of the failure.
func (e *StageError) VerdictError() *VerdictError {
	return &VerdictError{
		Code:    e.Reason,
		Stage:   e.Stage,
		Message: e.Msg,
	}
}
