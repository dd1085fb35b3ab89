package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
)

const (
	noArgsSchema = `{"type": "array", "maxItems": 0}`

	promptArgsSchema = `{
		"type": "array",
		"prefixItems": [{"type": "integer"}],
		"minItems": 1,
		"items": false
	}`

	choiceArgsSchema = `{
		"type": "array",
		"prefixItems": [{"type": "integer"}, {"type": "integer"}],
		"minItems": 2,
		"items": false
	}`
)

func compileArgsSchema(function, schema string) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	schemaURL := fmt.Sprintf("https://mapgame.schemas.local/dispatch/%s.schema.json", function)
	if err := c.AddResource(schemaURL, strings.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("dispatch schema load failed: %w", err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("dispatch schema compile failed: %w", err)
	}
	return compiled, nil
}

// normalizeArgs re-decodes args as JSON so Go ints, float64 from a JSON body
// and json.Number all validate the same way.
func normalizeArgs(args []any) ([]any, error) {
	if args == nil {
		return []any{}, nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out []any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return out, nil
}

// intArg converts a schema-checked integer. Values beyond the int range come
// back as -1 so the engine reports them out of range.
func intArg(v any) (int, error) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("%w: %v is not a number", ErrInvalidArguments, v)
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil || !d.IsInteger() {
		return 0, fmt.Errorf("%w: %s is not an integer", ErrInvalidArguments, n)
	}
	if d.LessThan(decimal.NewFromInt(math.MinInt32)) || d.GreaterThan(decimal.NewFromInt(math.MaxInt32)) {
		return -1, nil
	}
	return int(d.IntPart()), nil
}
