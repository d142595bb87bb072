package upload

import "errors"

var (
	ErrCredentialRequestFailed = errors.New("upload credential request failed")
	ErrTransferFailed          = errors.New("upload transfer failed")
	ErrRegistrationFailed      = errors.New("asset registration failed")
)

// Stage names one step of the remote handoff.
type Stage string

const (
	StageCredentials Stage = "credentials"
	StageTransfer    Stage = "transfer"
	StageRegister    Stage = "register"
)

func (s Stage) sentinel() error {
	switch s {
	case StageCredentials:
		return ErrCredentialRequestFailed
	case StageTransfer:
		return ErrTransferFailed
	case StageRegister:
		return ErrRegistrationFailed
	default:
		return nil
	}
}

// StageError is a failure of one stage. Error returns the human-readable message;
// Detail keeps the remote body or transport error for logs.
type StageError struct {
	Stage      Stage
	StatusCode int
	Message    string
	Detail     string
	Err        error
}

func (e *StageError) Error() string {
	return e.Message
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func (e *StageError) Is(target error) bool {
	s := e.Stage.sentinel()
	return s != nil && target == s
}
