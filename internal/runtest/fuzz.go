package runtest

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"runvet/internal/runbook"
)

// FuzzType selects the generator for a fuzz policy.
type FuzzType string

const (
	FuzzString FuzzType = "string"
	FuzzInt    FuzzType = "int"
	FuzzFloat  FuzzType = "float"
	FuzzBool   FuzzType = "bool"
	FuzzEnum   FuzzType = "enum"
	FuzzEmail  FuzzType = "email"
	FuzzURL    FuzzType = "url"
	FuzzList   FuzzType = "list"
	FuzzMap    FuzzType = "map"
)

// FuzzSpec is a declarative generation policy for one input value. It is a
// policy, not a value: PolicyFor derives it from a variable's declaration and
// Materialize turns it into a concrete value at execution time.
type FuzzSpec struct {
	Type FuzzType `yaml:"type"`

	// String constraints.
	MinLength int `yaml:"minLength,omitempty"`
	MaxLength int `yaml:"maxLength,omitempty"`

	// Numeric constraints.
	Min int `yaml:"min,omitempty"`
	Max int `yaml:"max,omitempty"`

	// Enum options.
	Options []string `yaml:"options,omitempty"`

	// Email/URL domain override.
	Domain string `yaml:"domain,omitempty"`

	// List/map item counts.
	MinCount int `yaml:"minCount,omitempty"`
	MaxCount int `yaml:"maxCount,omitempty"`

	// Schema names the fields of a structured map value, sorted.
	Schema []string `yaml:"schema,omitempty"`
}

// Default bounds used when a variable declares no constraints of its own.
const (
	defaultMinLength = 5
	defaultMaxLength = 20
	defaultMinInt    = 1
	defaultMaxInt    = 100
	defaultMinCount  = 2
	defaultMaxCount  = 4
)

// PolicyFor derives the fuzz policy for a declared variable. Selection is
// deterministic: email/url validation flags beat the declared type, then the
// type picks the generator, then explicit constraints are carried through
// with fixed defaults filling the gaps. A map variable with a structured
// schema yields a schema-aware policy naming its sorted field names rather
// than a flat string placeholder.
func PolicyFor(v runbook.Variable) *FuzzSpec {
	c := v.ParseConstraints()

	// Validation flags take precedence over the declared type.
	if c.Email {
		return &FuzzSpec{Type: FuzzEmail}
	}
	if c.URL {
		return &FuzzSpec{Type: FuzzURL}
	}

	switch v.Type {
	case "enum":
		return &FuzzSpec{Type: FuzzEnum, Options: v.Options}
	case "int":
		spec := &FuzzSpec{Type: FuzzInt, Min: c.Min, Max: c.Max}
		if spec.Min == 0 && spec.Max == 0 {
			spec.Min = defaultMinInt
			spec.Max = defaultMaxInt
		}
		return spec
	case "float":
		spec := &FuzzSpec{Type: FuzzFloat, Min: c.Min, Max: c.Max}
		if spec.Min == 0 && spec.Max == 0 {
			spec.Min = defaultMinInt
			spec.Max = defaultMaxInt
		}
		return spec
	case "bool":
		return &FuzzSpec{Type: FuzzBool}
	case "list":
		return &FuzzSpec{Type: FuzzList, MinCount: defaultMinCount, MaxCount: defaultMaxCount}
	case "map":
		spec := &FuzzSpec{Type: FuzzMap, MinCount: defaultMinCount, MaxCount: defaultMaxCount}
		if len(v.Schema) > 0 {
			fields := make([]string, 0, len(v.Schema))
			for name := range v.Schema {
				fields = append(fields, name)
			}
			sort.Strings(fields)
			spec.Schema = fields
		}
		return spec
	default:
		spec := &FuzzSpec{Type: FuzzString, MinLength: c.MinLength, MaxLength: c.MaxLength}
		if spec.MinLength == 0 && spec.MaxLength == 0 {
			spec.MinLength = defaultMinLength
			spec.MaxLength = defaultMaxLength
		}
		return spec
	}
}

// Materialize produces a concrete value from a policy.
func Materialize(spec *FuzzSpec) (interface{}, error) {
	if spec == nil {
		return nil, fmt.Errorf("fuzz spec is nil")
	}
	switch spec.Type {
	case FuzzString:
		return randomString(spec.MinLength, spec.MaxLength)
	case FuzzInt:
		return randomInt(spec.Min, spec.Max)
	case FuzzFloat:
		return randomFloat(spec.Min, spec.Max)
	case FuzzBool:
		n, err := randomInt(0, 1)
		return n == 1, err
	case FuzzEnum:
		if len(spec.Options) == 0 {
			return nil, fmt.Errorf("no enum options provided")
		}
		idx, err := randomInt(0, len(spec.Options)-1)
		if err != nil {
			return nil, err
		}
		return spec.Options[idx], nil
	case FuzzEmail:
		local, err := randomString(6, 10)
		if err != nil {
			return nil, err
		}
		domain, err := pickDomain(spec.Domain)
		if err != nil {
			return nil, err
		}
		return fmt.Sprintf("%s@%s", strings.ToLower(local), domain), nil
	case FuzzURL:
		path, err := randomString(4, 8)
		if err != nil {
			return nil, err
		}
		domain, err := pickDomain(spec.Domain)
		if err != nil {
			return nil, err
		}
		return fmt.Sprintf("https://%s/%s", domain, strings.ToLower(path)), nil
	case FuzzList:
		return materializeList(spec)
	case FuzzMap:
		return materializeMap(spec)
	default:
		return nil, fmt.Errorf("unknown fuzz type: %s", spec.Type)
	}
}

var fuzzDomains = []string{"example.com", "test.org", "demo.net", "sample.io"}

func pickDomain(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	idx, err := randomInt(0, len(fuzzDomains)-1)
	if err != nil {
		return "", err
	}
	return fuzzDomains[idx], nil
}

const fuzzCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomString(minLen, maxLen int) (string, error) {
	if minLen <= 0 {
		minLen = defaultMinLength
	}
	if maxLen < minLen {
		maxLen = minLen
	}
	length, err := randomInt(minLen, maxLen)
	if err != nil {
		return "", err
	}
	out := make([]byte, length)
	for i := range out {
		idx, err := randomInt(0, len(fuzzCharset)-1)
		if err != nil {
			return "", err
		}
		out[i] = fuzzCharset[idx]
	}
	return string(out), nil
}

func randomInt(minVal, maxVal int) (int, error) {
	if maxVal < minVal {
		minVal, maxVal = 0, 100
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(maxVal-minVal+1)))
	if err != nil {
		return 0, fmt.Errorf("failed to generate random number: %w", err)
	}
	return minVal + int(n.Int64()), nil
}

func randomFloat(minVal, maxVal int) (float64, error) {
	if maxVal <= minVal {
		minVal, maxVal = 0, 100
	}
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return 0, fmt.Errorf("failed to generate random number: %w", err)
	}
	ratio := float64(n.Int64()) / 1000000.0
	return float64(minVal) + (float64(maxVal)-float64(minVal))*ratio, nil
}

// materializeList renders a JSON array of random strings, the wire format
// the block runner's template layer expects for list values.
func materializeList(spec *FuzzSpec) (string, error) {
	count, err := randomInt(orDefault(spec.MinCount, defaultMinCount), orDefault(spec.MaxCount, defaultMaxCount))
	if err != nil {
		return "", err
	}
	items := make([]string, count)
	for i := range items {
		items[i], err = randomString(5, 12)
		if err != nil {
			return "", err
		}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// materializeMap produces a nested Go map for schema-aware policies and a
// flat JSON object string otherwise.
func materializeMap(spec *FuzzSpec) (interface{}, error) {
	if len(spec.Schema) > 0 {
		out := make(map[string]interface{}, len(spec.Schema))
		for _, field := range spec.Schema {
			v, err := randomString(5, 12)
			if err != nil {
				return nil, err
			}
			out[field] = v
		}
		return out, nil
	}

	count, err := randomInt(orDefault(spec.MinCount, defaultMinCount), orDefault(spec.MaxCount, defaultMaxCount))
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, count)
	for i := 0; i < count; i++ {
		k, err := randomString(4, 8)
		if err != nil {
			return nil, err
		}
		v, err := randomString(5, 12)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// ResolveInputs turns a test case's declared inputs into concrete values,
// materializing fuzz policies and passing literals through.
func ResolveInputs(inputs map[string]InputValue) (map[string]interface{}, error) {
	resolved := make(map[string]interface{}, len(inputs))
	for key, value := range inputs {
		if value.IsLiteral() {
			resolved[key] = value.Literal
			continue
		}
		v, err := Materialize(value.Fuzz)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", key, err)
		}
		resolved[key] = v
	}
	return resolved, nil
}
