package openai

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// outputSchema pairs a JSON Schema with its source so the same document can
// be shown to the model and used to validate the answer.
type outputSchema struct {
	source   string
	compiled *jsonschema.Schema
}

func mustSchema(name, source string) *outputSchema {
	return &outputSchema{
		source:   source,
		compiled: jsonschema.MustCompileString(name, source),
	}
}

func (s *outputSchema) validate(raw []byte) error {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return s.compiled.Validate(v)
}

var summarySchema = mustSchema("summary.json", `{
  "type": "object",
  "properties": {
    "content": {"type": "string", "minLength": 1},
    "summary": {"type": "string", "minLength": 1}
  },
  "required": ["content", "summary"]
}`)

var frameSchema = mustSchema("frame.json", `{
  "type": "object",
  "properties": {
    "description": {"type": "string", "minLength": 1},
    "scene_type": {"type": "string", "enum": ["slide", "screen_share", "whiteboard", "document", "code", "diagram", "person", "other"]},
    "elements": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["description", "scene_type"]
}`)
