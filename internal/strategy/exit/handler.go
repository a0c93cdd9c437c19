package exit

import (
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Handler builds a Rule from profile params. IDs match the `handler` field
// in exit profile files.
type Handler interface {
	ID() string
	// Schema is the JSON schema for params.
	Schema() string
	Validate(params map[string]any) error
	Build(params map[string]any) (Rule, error)
}

// RuleSpec is one configured rule: a handler id plus its params.
type RuleSpec struct {
	Handler string         `json:"handler" yaml:"handler" mapstructure:"handler"`
	Params  map[string]any `json:"params,omitempty" yaml:"params" mapstructure:"params"`
}

// CompileSchema compiles a JSON schema document.
func CompileSchema(doc string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", strings.NewReader(doc)); err != nil {
		return nil, err
	}
	return compiler.Compile("schema.json")
}

// ValidateSchema checks params against a compiled schema. Params are
// round-tripped through JSON so YAML ints and numeric strings validate as numbers.
func ValidateSchema(schema *jsonschema.Schema, params map[string]any) error {
	if schema == nil {
		return nil
	}
	raw, err := json.Marshal(SanitizeParams(params))
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return schema.Validate(doc)
}
