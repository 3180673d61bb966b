package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/jmespath/go-jmespath"
)

// Query evaluates a JMESPath expression against records and returns the raw
// result. Records are presented in their flat JSON form, so
// "[?Emoji=='🍕'].Name" selects names by emoji.
func Query(records []Record, expression string) (any, error) {
	compiled, err := jmespath.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid JMESPath expression %q: %w", expression, err)
	}

	encoded, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}
	var data any
	if err := json.Unmarshal(encoded, &data); err != nil {
		return nil, err
	}

	result, err := compiled.Search(data)
	if err != nil {
		return nil, fmt.Errorf("JMESPath error: %w", err)
	}
	return result, nil
}

// Filter keeps the records selected by a JMESPath filter expression such as
// "[?Order < `3`]". The expression must produce an array of objects.
func Filter(records []Record, expression string) ([]Record, error) {
	result, err := Query(records, expression)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return []Record{}, nil
	}
	if _, ok := result.([]any); !ok {
		return nil, fmt.Errorf("expression %q does not produce a list of records", expression)
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	var out []Record
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, fmt.Errorf("expression %q does not produce a list of records: %w", expression, err)
	}
	return out, nil
}
