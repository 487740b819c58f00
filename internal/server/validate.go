package server

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// entitySchema is the shape every uploaded entity must satisfy before it
// reaches the engine. The payload itself stays free-form; only the envelope
// is constrained.
const entitySchema = `{
	"type": "object",
	"required": ["id", "updatedAt", "payload"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"createdAt": {"type": "integer", "minimum": 0},
		"updatedAt": {"type": "integer", "minimum": 0},
		"payload": {"type": "object"},
		"deviceId": {"type": "string"}
	}
}`

type entityValidator struct {
	schema *gojsonschema.Schema
}

func newEntityValidator() (*entityValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(entitySchema))
	if err != nil {
		return nil, fmt.Errorf("compile entity schema: %w", err)
	}
	return &entityValidator{schema: schema}, nil
}

// validate checks one uploaded entity against the envelope schema and
// returns a caller-facing message for the first violation.
func (v *entityValidator) validate(dto EntityDTO) error {
	raw, err := json.Marshal(dto)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if !result.Valid() {
		return fmt.Errorf("%w: entity %q: %s", ErrInvalidPayload, dto.ID, result.Errors()[0].String())
	}
	return nil
}

func (v *entityValidator) validateAll(dtos []EntityDTO) error {
	for _, dto := range dtos {
		if err := v.validate(dto); err != nil {
			return err
		}
	}
	return nil
}
