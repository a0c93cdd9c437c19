package handlers

import (
	"fmt"

	"fnotrader/internal/strategy/exit"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func mustCompile(id, doc string) *jsonschema.Schema {
	s, err := exit.CompileSchema(doc)
	if err != nil {
		panic(fmt.Sprintf("%s: invalid schema: %v", id, err))
	}
	return s
}

func validatePct(name string, v float64, allowZero bool) error {
	if v < 0 || (!allowZero && v == 0) {
		return fmt.Errorf("%s must be > 0, got %.4f", name, v)
	}
	if v >= 100 {
		return fmt.Errorf("%s must be below 100%%, got %.4f", name, v)
	}
	return nil
}
