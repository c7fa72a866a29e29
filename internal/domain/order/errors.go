package order

import "errors"

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrDuplicateReference = errors.New("duplicate reference")
	ErrReferenceConflict  = errors.New("reference conflicts with different amount")

	ErrInternal = errors.New("internal error")
)
