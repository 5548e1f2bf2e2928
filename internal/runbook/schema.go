package runbook

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// inlineFenceRegex extracts the YAML payload from a fenced region inside an
// Inputs block body.
var inlineFenceRegex = regexp.MustCompile("(?s)```(?:yaml|yml)?\\s*\\n(.+?)```")

// SchemaFile is the fixed name of the variable-schema file inside a
// template directory.
const SchemaFile = "boilerplate.yml"

// schemaConfig is the on-disk shape of a boilerplate.yml file.
type schemaConfig struct {
	Variables []schemaVariable `yaml:"variables"`
}

// schemaVariable mirrors Variable with the YAML field names the schema files
// use, including the x-schema extension for structured map types.
type schemaVariable struct {
	Name        string            `yaml:"name"`
	Type        string            `yaml:"type"`
	Description string            `yaml:"description"`
	Default     interface{}       `yaml:"default"`
	Options     []string          `yaml:"options"`
	XSchema     map[string]string `yaml:"x-schema"`
	Validations Validations       `yaml:"validations"`
}

func (sv schemaVariable) toVariable() Variable {
	return Variable{
		Name:        sv.Name,
		Type:        sv.Type,
		Description: sv.Description,
		Default:     sv.Default,
		Options:     sv.Options,
		Schema:      sv.XSchema,
		Validations: sv.Validations,
	}
}

// fileSchemaReader is the default SchemaReader: it resolves a template path
// against the runbook directory and loads <dir>/boilerplate.yml.
type fileSchemaReader struct {
	baseDir string
}

func (r fileSchemaReader) ReadSchema(path string) ([]Variable, error) {
	dir := path
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(r.baseDir, dir)
	}
	content, err := os.ReadFile(filepath.Join(dir, SchemaFile))
	if err != nil {
		return nil, err
	}
	var cfg schemaConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("invalid schema file in %s: %w", path, err)
	}
	vars := make([]Variable, 0, len(cfg.Variables))
	for _, sv := range cfg.Variables {
		vars = append(vars, sv.toVariable())
	}
	return vars, nil
}

// parseInlineSchema reads the fenced YAML body of an Inputs block. The fence
// markers are optional; bare YAML is accepted too.
func parseInlineSchema(body string) ([]Variable, error) {
	yamlContent := body
	if m := inlineFenceRegex.FindStringSubmatch(body); len(m) > 1 {
		yamlContent = m[1]
	}
	var cfg schemaConfig
	if err := yaml.Unmarshal([]byte(yamlContent), &cfg); err != nil {
		return nil, err
	}
	vars := make([]Variable, 0, len(cfg.Variables))
	for _, sv := range cfg.Variables {
		vars = append(vars, sv.toVariable())
	}
	return vars, nil
}

// Validations is the validations field of a variable declaration. Authors
// write either a single string, a list of strings, or a list of maps with
// constraint parameters, so unmarshalling accepts all three.
type Validations []interface{}

func (v *Validations) UnmarshalYAML(value *yaml.Node) error {
	var single string
	if err := value.Decode(&single); err == nil {
		*v = Validations{single}
		return nil
	}
	var list []interface{}
	if err := value.Decode(&list); err == nil {
		*v = Validations(list)
		return nil
	}
	*v = Validations{}
	return nil
}

// ParseConstraints folds the raw validations list into structured form.
func (va Variable) ParseConstraints() Constraints {
	var c Constraints
	for _, item := range va.Validations {
		switch vv := item.(type) {
		case string:
			switch vv {
			case "required":
				c.Required = true
			case "email":
				c.Email = true
			case "url":
				c.URL = true
			}
		case map[string]interface{}:
			for key, raw := range vv {
				switch key {
				case "required":
					if b, ok := raw.(bool); ok {
						c.Required = b
					}
				case "min-length", "minLength":
					if n, ok := asInt(raw); ok {
						c.MinLength = n
					}
				case "max-length", "maxLength":
					if n, ok := asInt(raw); ok {
						c.MaxLength = n
					}
				case "min":
					if n, ok := asInt(raw); ok {
						c.Min = n
					}
				case "max":
					if n, ok := asInt(raw); ok {
						c.Max = n
					}
				case "pattern":
					if s, ok := raw.(string); ok {
						c.Pattern = s
					}
				}
			}
		}
	}
	return c
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
