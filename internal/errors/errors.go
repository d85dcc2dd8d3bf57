package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Memoreal error code.
type ErrorCode string

const (
	ErrInvalidRequest       ErrorCode = "INVALID_REQUEST"        // 400
	ErrValidation           ErrorCode = "VALIDATION_ERROR"       // 400
	ErrNotFound             ErrorCode = "NOT_FOUND"              // 404
	ErrLocationMismatch     ErrorCode = "LOCATION_MISMATCH"      // 403
	ErrInvalidMintAuthority ErrorCode = "INVALID_MINT_AUTHORITY" // 403
	ErrAlreadyMinted        ErrorCode = "ALREADY_MINTED"         // 409
	ErrCapsuleLocked        ErrorCode = "CAPSULE_LOCKED"         // 423
	ErrInternal             ErrorCode = "INTERNAL"               // 500
	ErrMintFailed           ErrorCode = "MINT_FAILED"            // 502
	ErrMetadataFailed       ErrorCode = "METADATA_FAILED"        // 502
	ErrAllocation           ErrorCode = "ALLOCATION_ERROR"       // 507
)

// MemorealError represents a structured error with code, status, and details.
// Cause holds the underlying error, if any, and is reachable through errors.Is/As.
type MemorealError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	Cause   error
}

// Error implements the error interface.
func (e *MemorealError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *MemorealError) Unwrap() error {
	return e.Cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *MemorealError {
	return &MemorealError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewValidation creates a 400 error for a field exceeding its declared maximum.
func NewValidation(field string, max, actual int, cause error) *MemorealError {
	return &MemorealError{
		Code:    ErrValidation,
		Status:  400,
		Message: fmt.Sprintf("%s exceeds maximum length: %d bytes (max %d)", field, actual, max),
		Details: map[string]any{"field": field, "max_bytes": max, "actual_bytes": actual},
		Cause:   cause,
	}
}

// NewNotFound creates a 404 error for when a capsule cannot be found.
func NewNotFound(identifier string) *MemorealError {
	return &MemorealError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("capsule not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewCapsuleLocked creates a 423 error when the time gate has not opened.
// unlockAt is nil for a time-locked capsule that never unlocks.
func NewCapsuleLocked(unlockAt *int64, now int64) *MemorealError {
	details := map[string]any{"now": now}
	msg := "capsule is time-locked with no unlock time"
	if unlockAt != nil {
		details["unlock_at"] = *unlockAt
		msg = fmt.Sprintf("capsule is locked until %d (now %d)", *unlockAt, now)
	}
	return &MemorealError{
		Code:    ErrCapsuleLocked,
		Status:  423,
		Message: msg,
		Details: details,
	}
}

// NewLocationMismatch creates a 403 error when the presented location differs
// from the stored one.
func NewLocationMismatch() *MemorealError {
	return &MemorealError{
		Code:    ErrLocationMismatch,
		Status:  403,
		Message: "presented location does not match the capsule location",
	}
}

// NewInvalidMintAuthority creates a 403 error when the invoker may not mint.
func NewInvalidMintAuthority(reason string) *MemorealError {
	return &MemorealError{
		Code:    ErrInvalidMintAuthority,
		Status:  403,
		Message: reason,
	}
}

// NewAlreadyMinted creates a 409 error when a capsule already has a mint attempt on record.
func NewAlreadyMinted(capsuleID, outcome string) *MemorealError {
	return &MemorealError{
		Code:    ErrAlreadyMinted,
		Status:  409,
		Message: fmt.Sprintf("capsule %s already minted (outcome: %s)", capsuleID, outcome),
		Details: map[string]any{"capsule_id": capsuleID, "outcome": outcome},
	}
}

// NewAllocation creates a 507 error when storage for a record cannot be reserved.
func NewAllocation(msg string, cause error) *MemorealError {
	return &MemorealError{
		Code:    ErrAllocation,
		Status:  507,
		Message: msg,
		Cause:   cause,
	}
}

// NewMintFailed creates a 502 error when the unit mint step fails. Nothing was minted.
func NewMintFailed(cause error) *MemorealError {
	msg := "unit mint failed"
	if cause != nil {
		msg = fmt.Sprintf("unit mint failed: %v", cause)
	}
	return &MemorealError{
		Code:    ErrMintFailed,
		Status:  502,
		Message: msg,
		Cause:   cause,
	}
}

// NewMetadataFailed creates a 502 error when metadata registration fails after
// the unit was minted. The unit exists without metadata.
func NewMetadataFailed(mint string, cause error) *MemorealError {
	msg := fmt.Sprintf("unit %s minted but metadata registration failed", mint)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &MemorealError{
		Code:    ErrMetadataFailed,
		Status:  502,
		Message: msg,
		Details: map[string]any{"mint": mint},
		Cause:   cause,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *MemorealError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &MemorealError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Cause:   err,
	}
}

// As returns the first MemorealError in err's chain.
func As(err error) (*MemorealError, bool) {
	var mErr *MemorealError
	if stderrors.As(err, &mErr) {
		return mErr, true
	}
	return nil, false
}

// Is checks if an error is a MemorealError with the given code.
func Is(err error, code ErrorCode) bool {
	if mErr, ok := As(err); ok {
		return mErr.Code == code
	}
	return false
}
