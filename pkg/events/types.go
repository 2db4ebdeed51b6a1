package events

import "encoding/json"

// Event name constants
const (
	RefreshProgress = "refresh.progress"
	RefreshStatus   = "refresh.status"
	RefreshError    = "refresh.error"
)

// Event is a generic SSE event from the daemon.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// RefreshProgressEvent is the typed payload for refresh.progress.
type RefreshProgressEvent struct {
	Progress int    `json:"progress"` // 0-100
	Phase    string `json:"phase"`
	Ts       int64  `json:"ts"`
}

// RefreshStatusEvent is the typed payload for refresh.status.
type RefreshStatusEvent struct {
	From string `json:"from"`
	To   string `json:"to"`
	Ts   int64  `json:"ts"`
}

// RefreshErrorEvent is the typed payload for refresh.error.
type RefreshErrorEvent struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Ts      int64  `json:"ts"`
}

// DecodeAs decodes the event payload into the caller-specified generic type T.
// It ignores the event name and simply unmarshals Data into T. If Data is empty,
// it returns the zero value of T with a nil error.
//
// Example:
//
//	payload, err := events.DecodeAs[events.RefreshStatusEvent](ev)
//	if err != nil { /* handle */ }
//	fmt.Println(payload.From, payload.To)
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
