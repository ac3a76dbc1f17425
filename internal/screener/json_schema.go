package screener

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// CriteriaJSONSchema returns the JSON schema of the Criteria struct so UI
// clients can render the filter form without hardcoding clause names.
func CriteriaJSONSchema() (string, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	schema := r.Reflect(&Criteria{})

	jsonSchemaBytes, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}

	return string(jsonSchemaBytes), nil
}
