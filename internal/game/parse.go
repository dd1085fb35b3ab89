package game

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// ErrInvalidDefinition is returned when a document does not describe a
// playable game.
var ErrInvalidDefinition = errors.New("invalid game definition")

//go:embed definition.schema.json
var definitionSchemaJSON string

const definitionSchemaURL = "https://mapgame.schemas.local/definition.schema.json"

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(definitionSchemaURL, strings.NewReader(definitionSchemaJSON)); err != nil {
		return nil, fmt.Errorf("definition schema load failed: %w", err)
	}
	return c.Compile(definitionSchemaURL)
})

// ParseJSON decodes and validates a JSON game definition.
func ParseJSON(data []byte) (*Definition, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode json: %v", ErrInvalidDefinition, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// ParseYAML decodes a YAML game definition. The document is normalised to
// JSON so both formats share one schema and one set of field names.
func ParseYAML(data []byte) (*Definition, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode yaml: %v", ErrInvalidDefinition, err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: yaml is not representable as json: %v", ErrInvalidDefinition, err)
	}
	return ParseJSON(raw)
}

// LoadFile reads a definition from a .json, .yaml or .yml file. When the
// document has no id, the file name without extension is used.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var def *Definition
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		def, err = ParseJSON(data)
	case ".yaml", ".yml":
		def, err = ParseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported definition format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if def.ID == "" {
		def.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return def, nil
}

// Validate checks structural rules the schema cannot express.
func (d *Definition) Validate() error {
	switch d.Visibility {
	case "", VisibilityPublic, VisibilityPrivate:
	default:
		return fmt.Errorf("%w: unknown visibility %q", ErrInvalidDefinition, d.Visibility)
	}
	if d.Visibility == VisibilityPrivate && d.Owner == "" {
		return fmt.Errorf("%w: private definition has no owner", ErrInvalidDefinition)
	}

	for p, prompt := range d.Prompts {
		for o, opt := range prompt.Options {
			for _, a := range opt.Actions {
				if a.Name != ActionGoto {
					continue
				}
				target, ok := a.GotoTarget()
				if !ok {
					return fmt.Errorf("%w: prompt %d option %d: goto without a numeric target", ErrInvalidDefinition, p, o)
				}
				if target < 0 || target >= len(d.Prompts) {
					return fmt.Errorf("%w: prompt %d option %d: goto target %d out of range", ErrInvalidDefinition, p, o, target)
				}
			}
		}
	}
	return nil
}
