package registry

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ArgumentError reports arguments that failed a capability's input
// schema. The call is rejected before any channel is opened.
type ArgumentError struct {
	Capability string
	Problems   []string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Capability, strings.Join(e.Problems, "; "))
}

// ValidateArguments checks args against the capability's input schema.
// Capabilities without a schema accept anything.
func ValidateArguments(c Capability, args json.RawMessage) error {
	if len(c.InputSchema) == 0 {
		return nil
	}
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	schemaLoader := gojsonschema.NewBytesLoader(c.InputSchema)
	docLoader := gojsonschema.NewBytesLoader(args)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("validate arguments for %s: %w", c.QualifiedName(), err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return &ArgumentError{Capability: c.QualifiedName(), Problems: problems}
}
