package videohost

import (
	"errors"
	"fmt"
)

var (
	ErrNotConfigured = errors.New("video host not configured")
	ErrProvider      = errors.New("video host request failed")
)

// ConfigError names the missing settings of a provider.
type ConfigError struct {
	Provider string
	Message  string
}

func (e *ConfigError) Error() string { return e.Message }

func (e *ConfigError) Is(target error) bool { return target == ErrNotConfigured }

// ProviderError is a failed or rejected call to the provider API.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Details    any // provider error list, passed through to the client
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }
