package db

import "errors"

// Sentinel errors for store operations
var (
	// ErrComplaintNotFound indicates that no complaint matched the lookup
	ErrComplaintNotFound = errors.New("complaint not found")

	// ErrInvalidComplaintID indicates that an identifier is not a valid
	// 24-character hexadecimal object id
	ErrInvalidComplaintID = errors.New("invalid complaint id")
)
