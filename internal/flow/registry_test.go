package flow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	require.Equal(t, []Summary{
		{ID: "property_search", Name: "Property Search", Description: "Help user find suitable properties based on their preferences"},
		{ID: "lead_qualification", Name: "Lead Qualification", Description: "Qualify potential leads through BANT methodology with complete contact capture"},
		{ID: "visit_scheduling", Name: "Visit Scheduling", Description: "Schedule property visits with calendar integration"},
	}, r.Summaries())

	d, ok := r.Lookup("lead_qualification")
	require.True(t, ok)
	require.Len(t, d.Steps, 8)
	require.Equal(t, StepAction, d.Steps["qualification_scoring"].Type)

	_, ok = r.Lookup("mortgage")
	require.False(t, ok)
}

func TestNewRegistry_RejectsBrokenDefinitions(t *testing.T) {
	cases := map[string]Definition{
		"missing id": {InitialStep: "a", Steps: map[string]Step{"a": {ID: "a"}}},
		"missing initial step": {
			ID: "f", InitialStep: "x", Steps: map[string]Step{"a": {ID: "a"}},
		},
		"key mismatch": {
			ID: "f", InitialStep: "a", Steps: map[string]Step{"a": {ID: "b"}},
		},
		"dangling next": {
			ID: "f", InitialStep: "a", Steps: map[string]Step{"a": {ID: "a", Next: Static("nowhere")}},
		},
	}
	for name, def := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewRegistry(def)
			require.ErrorIs(t, err, ErrBrokenDefinition)
		})
	}
}

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(PropertySearch(), PropertySearch())
	require.ErrorIs(t, err, ErrBrokenDefinition)
}

func TestValidators(t *testing.T) {
	d := LeadQualification()

	ok, msg := d.Steps["contact_collection"].Validate("Maria Silva - maria@email.com")
	require.True(t, ok)
	require.Empty(t, msg)

	ok, msg = d.Steps["contact_collection"].Validate("Maria Silva")
	require.False(t, ok)
	require.Contains(t, msg, "email válido")

	ok, _ = d.Steps["phone_collection"].Validate("+351 912 345 678")
	require.True(t, ok)
	ok, msg = d.Steps["phone_collection"].Validate("12345")
	require.False(t, ok)
	require.Equal(t, "Por favor, forneça um número de telefone válido", msg)

	ok, msg = d.Steps["authority"].Validate("   ")
	require.False(t, ok)
	require.Empty(t, msg)
}
