package schema

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// InlineData is a base64 media payload attached to a turn.
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Part is one content part of a turn: either text or inline media.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// Message is one history entry. The JSON shape matches the generation
// API's content format so stored history can be replayed directly.
type Message struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// NewTextMessage builds a single-part text message.
func NewTextMessage(role, text string) Message {
	return Message{Role: role, Parts: []Part{{Text: text}}}
}

// Text returns the concatenated text of all text parts.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		out += p.Text
	}
	return out
}

// ValidRole reports whether role is one the generator accepts.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleModel
}

// Clone returns a copy of m whose parts slice is independent.
func (m Message) Clone() Message {
	parts := make([]Part, len(m.Parts))
	for i, p := range m.Parts {
		parts[i] = p
		if p.InlineData != nil {
			d := *p.InlineData
			parts[i].InlineData = &d
		}
	}
	return Message{Role: m.Role, Parts: parts}
}
