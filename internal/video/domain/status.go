package domain

import (
	"fmt"
	"strings"
)

// Status is the moderation state of a registered upload.
type Status string

const (
	Pending      Status = "pending"
	Live         Status = "live"
	NeedsChanges Status = "needs_changes"
	Rejected     Status = "rejected"
)

// AllowedStatuses is the ordered list shown to moderators and in validation errors.
var AllowedStatuses = []Status{Pending, Live, NeedsChanges, Rejected}

func (s Status) Valid() bool {
	switch s {
	case Pending, Live, NeedsChanges, Rejected:
		return true
	default:
		return false
	}
}

// ParseStatus accepts exactly one of AllowedStatuses.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

// AllowedList renders AllowedStatuses for error messages.
func AllowedList() string {
	parts := make([]string, len(AllowedStatuses))
	for i, s := range AllowedStatuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

// CanTransition reports whether a moderator may move an upload from one status to another.
// Moderation decisions are revisable, so every valid status is reachable from every other.
func CanTransition(from, to Status) bool {
	return from.Valid() && to.Valid()
}

func ValidateTransition(from, to Status) error {
	if from == to {
		return nil
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
