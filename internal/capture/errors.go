package capture

import (
	"errors"
	"fmt"

	"github.com/romariotrain/reelwork/internal/upload"
)

var (
	ErrPermissionDenied  = errors.New("camera or microphone permission denied")
	ErrDeviceUnavailable = errors.New("camera or microphone unavailable")
	ErrNoSupportedFormat = errors.New("no supported recording format")
	ErrEncoder           = errors.New("encoder failed")
	ErrInvalidFileType   = errors.New("invalid file type")
	ErrFileTooLarge      = errors.New("file too large")

	ErrInvalidTransition = errors.New("invalid transition")
	ErrBusy              = errors.New("operation already in flight")
	ErrMinimumDuration   = errors.New("recording shorter than minimum duration")
	ErrNoRecording       = errors.New("no recording to upload")
	ErrClosed            = errors.New("session closed")
)

// TransitionError reports an action that is not legal from the current status.
type TransitionError struct {
	From   Status
	Action Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s from %s", e.Action, e.From)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// userMessage maps a failure to the text shown next to the error state.
// The underlying cause is logged, not shown.
func userMessage(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "Unable to start recording. Please check your camera and microphone permissions."
	case errors.Is(err, ErrDeviceUnavailable):
		return "No camera or microphone is available on this device."
	case errors.Is(err, ErrNoSupportedFormat):
		return "This browser cannot record video. Try uploading a file instead."
	case errors.Is(err, ErrEncoder):
		return "Recording failed. Please try again."
	case errors.Is(err, ErrInvalidFileType):
		return "Please select a valid video file."
	case errors.Is(err, ErrFileTooLarge):
		return "Video file must be under 200MB."
	}
	var stageErr *upload.StageError
	if errors.As(err, &stageErr) {
		return stageErr.Error()
	}
	return "Upload failed. Please try again."
}

// errorKind is the metrics label for a failure.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrDeviceUnavailable):
		return "device_unavailable"
	case errors.Is(err, ErrNoSupportedFormat):
		return "no_supported_format"
	case errors.Is(err, ErrEncoder):
		return "encoder"
	case errors.Is(err, ErrInvalidFileType):
		return "invalid_file_type"
	case errors.Is(err, ErrFileTooLarge):
		return "file_too_large"
	case errors.Is(err, upload.ErrCredentialRequestFailed):
		return "credential_request_failed"
	case errors.Is(err, upload.ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, upload.ErrRegistrationFailed):
		return "registration_failed"
	default:
		return "other"
	}
}
