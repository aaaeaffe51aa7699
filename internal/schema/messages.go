package schema

// Messages is the ordered history of one slot.
type Messages struct {
	Messages []Message
}

// NewMessages returns a Messages initialised with the given messages.
// Called with no arguments it returns an empty Messages ready for use.
func NewMessages(msgs ...Message) Messages {
	if len(msgs) == 0 {
		return Messages{Messages: make([]Message, 0)}
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return Messages{Messages: out}
}

// Add appends msg as-is.
func (mh *Messages) Add(msg Message) {
	mh.Messages = append(mh.Messages, msg)
}

// Len returns the number of entries.
func (mh *Messages) Len() int { return len(mh.Messages) }

// Pop removes and returns the last entry.
func (mh *Messages) Pop() (Message, bool) {
	n := len(mh.Messages)
	if n == 0 {
		return Message{}, false
	}
	last := mh.Messages[n-1]
	mh.Messages = mh.Messages[:n-1]
	return last, true
}

// Trim keeps the most recent keep entries once the length exceeds above.
// It reports whether anything was dropped.
func (mh *Messages) Trim(above, keep int) bool {
	if above <= 0 || len(mh.Messages) <= above {
		return false
	}
	if keep > len(mh.Messages) {
		keep = len(mh.Messages)
	}
	tail := make([]Message, keep)
	copy(tail, mh.Messages[len(mh.Messages)-keep:])
	mh.Messages = tail
	return true
}

// CountRole returns the number of entries with the given role.
func (mh *Messages) CountRole(role string) int {
	n := 0
	for _, m := range mh.Messages {
		if m.Role == role {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of mh with an independent backing slice.
func (mh *Messages) Clone() Messages {
	cloned := make([]Message, len(mh.Messages))
	for i, m := range mh.Messages {
		cloned[i] = m.Clone()
	}
	return Messages{Messages: cloned}
}
