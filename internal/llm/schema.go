package llm

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
)

// SchemaFor reflects the JSON schema the model response must satisfy for T.
// Definitions are inlined and additional properties rejected, matching the
// strict response-format contract.
func SchemaFor[T any]() (map[string]interface{}, error) {
	var v T
	t := reflect.TypeOf(&v).Elem()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	reflector := &jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	schema := reflector.ReflectFromType(t)
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("llm: marshal schema for %s: %w", t, err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("llm: decode schema for %s: %w", t, err)
	}
	return out, nil
}
