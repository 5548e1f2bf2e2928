package runtest

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runvet/internal/runbook"
)

func TestPolicyForValidationPrecedence(t *testing.T) {
	// An email validation wins over the declared string type.
	v := runbook.Variable{
		Name:        "ContactEmail",
		Type:        "string",
		Validations: runbook.Validations{"email"},
	}
	spec := PolicyFor(v)
	assert.Equal(t, FuzzEmail, spec.Type)

	v = runbook.Variable{
		Name:        "Homepage",
		Type:        "string",
		Validations: runbook.Validations{"url"},
	}
	assert.Equal(t, FuzzURL, PolicyFor(v).Type)
}

func TestPolicyForByType(t *testing.T) {
	cases := []struct {
		name string
		v    runbook.Variable
		want FuzzType
	}{
		{"string default", runbook.Variable{Name: "Name", Type: "string"}, FuzzString},
		{"untyped defaults to string", runbook.Variable{Name: "Anything"}, FuzzString},
		{"int", runbook.Variable{Name: "Count", Type: "int"}, FuzzInt},
		{"float", runbook.Variable{Name: "Ratio", Type: "float"}, FuzzFloat},
		{"bool", runbook.Variable{Name: "Enabled", Type: "bool"}, FuzzBool},
		{"list", runbook.Variable{Name: "Items", Type: "list"}, FuzzList},
		{"map", runbook.Variable{Name: "Labels", Type: "map"}, FuzzMap},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PolicyFor(tc.v).Type)
		})
	}
}

func TestPolicyForEnumCarriesOptions(t *testing.T) {
	v := runbook.Variable{
		Name:    "Region",
		Type:    "enum",
		Options: []string{"us-east-1", "eu-west-1"},
	}
	spec := PolicyFor(v)
	assert.Equal(t, FuzzEnum, spec.Type)
	assert.Equal(t, []string{"us-east-1", "eu-west-1"}, spec.Options)
}

func TestPolicyForStringDefaults(t *testing.T) {
	spec := PolicyFor(runbook.Variable{Name: "Name", Type: "string"})
	assert.Equal(t, 5, spec.MinLength)
	assert.Equal(t, 20, spec.MaxLength)

	constrained := PolicyFor(runbook.Variable{
		Name: "Slug",
		Type: "string",
		Validations: runbook.Validations{
			map[string]interface{}{"min-length": 3},
			map[string]interface{}{"max-length": 8},
		},
	})
	assert.Equal(t, 3, constrained.MinLength)
	assert.Equal(t, 8, constrained.MaxLength)
}

func TestPolicyForIntDefaults(t *testing.T) {
	spec := PolicyFor(runbook.Variable{Name: "Count", Type: "int"})
	assert.Equal(t, 1, spec.Min)
	assert.Equal(t, 100, spec.Max)
}

func TestPolicyForMapSchemaSorted(t *testing.T) {
	v := runbook.Variable{
		Name: "Owner",
		Type: "map",
		Schema: map[string]string{
			"zone":  "string",
			"email": "string",
			"name":  "string",
		},
	}
	spec := PolicyFor(v)
	assert.Equal(t, FuzzMap, spec.Type)
	assert.Equal(t, []string{"email", "name", "zone"}, spec.Schema)
}

func TestMaterializeString(t *testing.T) {
	spec := &FuzzSpec{Type: FuzzString, MinLength: 5, MaxLength: 10}
	for i := 0; i < 20; i++ {
		v, err := Materialize(spec)
		require.NoError(t, err)
		s, ok := v.(string)
		require.True(t, ok)
		assert.GreaterOrEqual(t, len(s), 5)
		assert.LessOrEqual(t, len(s), 10)
		assert.Regexp(t, `^[a-zA-Z0-9]+$`, s)
	}
}

func TestMaterializeInt(t *testing.T) {
	spec := &FuzzSpec{Type: FuzzInt, Min: -3, Max: 3}
	for i := 0; i < 30; i++ {
		v, err := Materialize(spec)
		require.NoError(t, err)
		n, ok := v.(int)
		require.True(t, ok)
		assert.GreaterOrEqual(t, n, -3)
		assert.LessOrEqual(t, n, 3)
	}
}

func TestMaterializeFloat(t *testing.T) {
	spec := &FuzzSpec{Type: FuzzFloat, Min: 0, Max: 10}
	v, err := Materialize(spec)
	require.NoError(t, err)
	f, ok := v.(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, f, 0.0)
	assert.LessOrEqual(t, f, 10.0)
}

func TestMaterializeEmail(t *testing.T) {
	emailRe := regexp.MustCompile(`^[a-z0-9]+@[a-z0-9.]+$`)
	v, err := Materialize(&FuzzSpec{Type: FuzzEmail})
	require.NoError(t, err)
	assert.Regexp(t, emailRe, v.(string))

	v, err = Materialize(&FuzzSpec{Type: FuzzEmail, Domain: "corp.internal"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(v.(string), "@corp.internal"))
}

func TestMaterializeURL(t *testing.T) {
	v, err := Materialize(&FuzzSpec{Type: FuzzURL})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(v.(string), "https://"))
}

func TestMaterializeEnum(t *testing.T) {
	options := []string{"dev", "staging", "prod"}
	for i := 0; i < 10; i++ {
		v, err := Materialize(&FuzzSpec{Type: FuzzEnum, Options: options})
		require.NoError(t, err)
		assert.Contains(t, options, v)
	}

	_, err := Materialize(&FuzzSpec{Type: FuzzEnum})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no enum options")
}

func TestMaterializeList(t *testing.T) {
	v, err := Materialize(&FuzzSpec{Type: FuzzList, MinCount: 2, MaxCount: 4})
	require.NoError(t, err)
	s, ok := v.(string)
	require.True(t, ok)
	// JSON array wire format.
	assert.True(t, strings.HasPrefix(s, "["))
	assert.True(t, strings.HasSuffix(s, "]"))
}

func TestMaterializeMapWithSchema(t *testing.T) {
	v, err := Materialize(&FuzzSpec{Type: FuzzMap, Schema: []string{"email", "name"}})
	require.NoError(t, err)
	m, ok := v.(map[string]interface{})
	require.True(t, ok)
	assert.Len(t, m, 2)
	assert.Contains(t, m, "email")
	assert.Contains(t, m, "name")
}

func TestMaterializeUnknownType(t *testing.T) {
	_, err := Materialize(&FuzzSpec{Type: "uuid"})
	require.Error(t, err)

	_, err = Materialize(nil)
	require.Error(t, err)
}

func TestResolveInputs(t *testing.T) {
	inputs := map[string]InputValue{
		"project.Name":  {Literal: "fixed"},
		"project.Email": {Fuzz: &FuzzSpec{Type: FuzzEmail}},
	}
	resolved, err := ResolveInputs(inputs)
	require.NoError(t, err)
	assert.Equal(t, "fixed", resolved["project.Name"])
	assert.Contains(t, resolved["project.Email"].(string), "@")
}

func TestResolveInputsPolicyError(t *testing.T) {
	inputs := map[string]InputValue{
		"project.Env": {Fuzz: &FuzzSpec{Type: FuzzEnum}},
	}
	_, err := ResolveInputs(inputs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `input "project.Env"`)
}
