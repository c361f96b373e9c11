package domain

import "errors"

var (
	ErrValidation           = errors.New("invalid input")
	ErrConflict             = errors.New("conflict")
	ErrNotFound             = errors.New("not found")
	ErrPolicyViolation      = errors.New("policy violation")
	ErrExternalService      = errors.New("external service failure")
	ErrSerializationFailure = errors.New("serialization failure")
)
