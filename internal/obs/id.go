package obs

import "github.com/google/uuid"

// NewQueryID generates a unique identifier for one mdb call, attached to
// its context via [WithCallInfo] and surfaced in every log line the call
// emits.
func NewQueryID() string {
	return uuid.NewString()
}
