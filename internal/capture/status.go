package capture

// Status is the lifecycle state of a recording session.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusRecording  Status = "recording"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusUploaded   Status = "uploaded"
	StatusError      Status = "error"
)

// Action is an input to the session state machine.
type Action string

const (
	ActionStart         Action = "start"
	ActionStop          Action = "stop"
	ActionFinalize      Action = "finalize"
	ActionFail          Action = "fail"
	ActionUpload        Action = "upload"
	ActionUploadSuccess Action = "upload_success"
	ActionUploadFailure Action = "upload_failure"
	ActionCancel        Action = "cancel"
	ActionSelectFile    Action = "select_file"
)

type edge struct {
	from   Status
	action Action
}

var transitions = map[edge]Status{
	{StatusIdle, ActionStart}:  StatusRecording,
	{StatusReady, ActionStart}: StatusRecording, // re-record
	{StatusError, ActionStart}: StatusRecording,

	{StatusRecording, ActionStop}:      StatusProcessing,
	{StatusProcessing, ActionFinalize}: StatusReady,

	// Start attempts fail from the state they were issued in.
	{StatusIdle, ActionFail}:       StatusError,
	{StatusReady, ActionFail}:      StatusError,
	{StatusError, ActionFail}:      StatusError,
	{StatusRecording, ActionFail}:  StatusError,
	{StatusProcessing, ActionFail}: StatusError,

	{StatusReady, ActionUpload}: StatusProcessing,
	{StatusError, ActionUpload}: StatusProcessing, // retry with a retained blob

	{StatusProcessing, ActionUploadSuccess}: StatusUploaded,
	{StatusProcessing, ActionUploadFailure}: StatusError,

	{StatusIdle, ActionCancel}:       StatusIdle,
	{StatusReady, ActionCancel}:      StatusIdle,
	{StatusError, ActionCancel}:      StatusIdle,
	{StatusRecording, ActionCancel}:  StatusIdle,
	{StatusProcessing, ActionCancel}: StatusIdle, // only while finalizing, never mid-upload

	{StatusIdle, ActionSelectFile}:  StatusReady,
	{StatusReady, ActionSelectFile}: StatusReady,
	{StatusError, ActionSelectFile}: StatusReady,
}

// Next returns the status reached by applying a to from, or a *TransitionError.
func Next(from Status, a Action) (Status, error) {
	to, ok := transitions[edge{from, a}]
	if !ok {
		return from, &TransitionError{From: from, Action: a}
	}
	return to, nil
}

// CanApply reports whether a is legal from the given status.
func CanApply(from Status, a Action) bool {
	_, ok := transitions[edge{from, a}]
	return ok
}
