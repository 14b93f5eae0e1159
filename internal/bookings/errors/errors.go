package errors

import "errors"

// Repository-level sentinels. Services translate these into the
// AppError taxonomy; conflict and admission refusals are built as
// AppErrors directly since they carry details.
var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")
)
