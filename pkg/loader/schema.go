package loader

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// SchemaValidator checks a freshly fetched artifact's raw JSON against a
// compiled schema before it is allowed to enter the loader cache.
type SchemaValidator struct {
	schema *gojsonschema.Schema
}

// NewSchemaValidator compiles schemaJSON (a JSON Schema document) into a
// reusable SchemaValidator.
func NewSchemaValidator(schemaJSON string) (*SchemaValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("vectorflow/loader: compile schema: %w", err)
	}
	return &SchemaValidator{schema: schema}, nil
}

// Validate reports the first validation error gojsonschema finds in data,
// or nil if data conforms.
func (v *SchemaValidator) Validate(data []byte) error {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaValidationFailed, err)
	}
	if !result.Valid() {
		if len(result.Errors()) > 0 {
			return fmt.Errorf("%w: %s", ErrSchemaValidationFailed, result.Errors()[0].String())
		}
		return ErrSchemaValidationFailed
	}
	return nil
}

// WithSchema attaches a SchemaValidator to an existing Loader: every
// subsequent network fetch is validated before entering the cache. A load
// satisfied by an event override or an already-cached value is not
// revalidated (§4.2 performs no validation on override paths).
func (l *Loader[T]) WithSchema(v *SchemaValidator) *Loader[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.validate = v
	return l
}
