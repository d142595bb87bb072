package models

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict") // duplicate stream_uid или status mismatch
	ErrInvalidArgument = errors.New("invalid arguments")
)
