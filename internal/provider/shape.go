package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ashureev/lovecleanup/internal/domain"
)

// Shape selects the request encoding and the reply field of an HTTP backend.
type Shape string

const (
	// ShapeGenerate is {"response": "..."}.
	ShapeGenerate Shape = "generate"
	// ShapeChat is {"choices":[{"message":{"content":"..."}}]}.
	ShapeChat Shape = "chat"
	// ShapeInference is {"output":{"choices":[{"text":"..."}]}}.
	ShapeInference Shape = "inference"
	// ShapePrediction is {"output":["...", "..."]}, joined.
	ShapePrediction Shape = "prediction"
	// ShapeText is {"text": "..."}.
	ShapeText Shape = "text"
)

// Valid reports whether s is a known shape.
func (s Shape) Valid() bool {
	switch s {
	case ShapeGenerate, ShapeChat, ShapeInference, ShapePrediction, ShapeText:
		return true
	}
	return false
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Encode renders the request body for model.
func (s Shape) Encode(model string, req Request) ([]byte, error) {
	var body any
	switch s {
	case ShapeGenerate:
		body = map[string]any{
			"model":  model,
			"system": req.System,
			"prompt": req.Prompt,
			"stream": false,
		}
	case ShapeChat:
		msgs := make([]chatMessage, 0, len(req.History)+2)
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
		for _, m := range req.History {
			msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
		}
		msgs = append(msgs, chatMessage{Role: string(domain.RoleUser), Content: req.Prompt})
		body = map[string]any{
			"model":       model,
			"messages":    msgs,
			"max_tokens":  200,
			"temperature": 0.7,
		}
	case ShapeInference:
		body = map[string]any{
			"model":       model,
			"prompt":      fmt.Sprintf("[INST] %s %s [/INST]", shortPersona, req.Prompt),
			"max_tokens":  150,
			"temperature": 0.7,
		}
	case ShapePrediction:
		body = map[string]any{
			"version": model,
			"input": map[string]any{
				"prompt":     shortPersona + " " + req.Prompt,
				"max_length": 150,
			},
		}
	case ShapeText:
		body = map[string]any{
			"model":  model,
			"system": req.System,
			"prompt": req.Prompt,
		}
	default:
		return nil, fmt.Errorf("unknown response shape %q", s)
	}
	return json.Marshal(body)
}

// Extract pulls the reply text out of a response body.
func (s Shape) Extract(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("%w: invalid JSON", ErrMalformedResponse)
	}
	res := gjson.ParseBytes(body)

	var field gjson.Result
	switch s {
	case ShapeGenerate:
		field = res.Get("response")
	case ShapeChat:
		field = res.Get("choices.0.message.content")
	case ShapeInference:
		field = res.Get("output.choices.0.text")
	case ShapeText:
		field = res.Get("text")
	case ShapePrediction:
		out := res.Get("output")
		if !out.IsArray() {
			return "", fmt.Errorf("%w: output is not a list", ErrMalformedResponse)
		}
		var b strings.Builder
		for _, part := range out.Array() {
			if part.Type != gjson.String {
				return "", fmt.Errorf("%w: output holds a non-string item", ErrMalformedResponse)
			}
			b.WriteString(part.Str)
		}
		return b.String(), nil
	default:
		return "", fmt.Errorf("unknown response shape %q", s)
	}

	if field.Type != gjson.String {
		return "", fmt.Errorf("%w: missing %s text", ErrMalformedResponse, s)
	}
	return field.Str, nil
}
