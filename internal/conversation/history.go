package conversation

// History is the ordered sequence of turns owned by one Conversation.
// It is not safe for concurrent use; the gateway is the only writer and
// runs on a single goroutine.
//
// MaxTurns bounds the sliding window: any value <= 0 means unbounded.
// Eviction only ever removes a contiguous prefix (the oldest turns) and
// only runs after an assistant turn completes an exchange, so the length
// can transiently reach MaxTurns+1 between the user append and the
// assistant append.
type History struct {
	turns    []Turn
	maxTurns int
}

// NewHistory creates an empty history with the given turn cap.
func NewHistory(maxTurns int) *History {
	return &History{maxTurns: maxTurns}
}

// Append adds a turn at the end. Empty content is permitted.
func (h *History) Append(t Turn) {
	h.turns = append(h.turns, t)
}

// Trim drops the oldest turns until the length is within MaxTurns.
// No-op when MaxTurns <= 0 or the history already fits. Turns are
// atomic: a turn is either kept whole or dropped whole.
func (h *History) Trim() {
	if h.maxTurns <= 0 || len(h.turns) <= h.maxTurns {
		return
	}
	excess := len(h.turns) - h.maxTurns
	h.turns = append([]Turn(nil), h.turns[excess:]...)
}

// Snapshot returns an independent copy of the current turns. Mutating
// the returned slice does not affect the store.
func (h *History) Snapshot() []Turn {
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Clear resets the history to empty. Idempotent.
func (h *History) Clear() {
	h.turns = nil
}

// Len reports the number of turns currently held.
func (h *History) Len() int {
	return len(h.turns)
}

// MaxTurns reports the configured window size (<= 0 means unbounded).
func (h *History) MaxTurns() int {
	return h.maxTurns
}
