package schema

import "context"

// GenerateRequest is a single generation call.
type GenerateRequest struct {
	Model             string
	SystemInstruction string
	Turns             []Message
}

// NewGenerateRequest builds a request from a model, system prompt and turns.
func NewGenerateRequest(model, system string, turns []Message) GenerateRequest {
	return GenerateRequest{
		Model:             model,
		SystemInstruction: system,
		Turns:             turns,
	}
}

// Generator is the interface every generation backend must satisfy.
// A response with no candidates is reported as ErrEmptyResponse.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	DefaultModel() string
}
