package metrics

import (
	"expvar"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInc(t *testing.T) {
	before := LeadsCaptured.Value()
	Inc(LeadsCaptured)
	require.Equal(t, before+1, LeadsCaptured.Value())
}

func TestCountersArePublished(t *testing.T) {
	for _, name := range []string{
		"estate_messages_total",
		"estate_flows_started_total",
		"estate_flows_completed_total",
		"estate_generation_failures_total",
	} {
		require.NotNil(t, expvar.Get(name), name)
	}
}
