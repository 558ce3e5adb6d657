// Package metrics provides application-level counters using stdlib expvar.
// Counters are exported on /debug/vars by the serve command.
package metrics

import "expvar"

// Conversation counters.
var (
	MessagesTotal        = expvar.NewInt("estate_messages_total")
	FlowsStarted         = expvar.NewInt("estate_flows_started_total")
	FlowsCompleted       = expvar.NewInt("estate_flows_completed_total")
	FlowInterruptions    = expvar.NewInt("estate_flow_interruptions_total")
	ContextualShortcuts  = expvar.NewInt("estate_contextual_shortcuts_total")
	GenerationsTotal     = expvar.NewInt("estate_generations_total")
	GenerationFailures   = expvar.NewInt("estate_generation_failures_total")
	LeadsCaptured        = expvar.NewInt("estate_leads_captured_total")
	ModerationRejections = expvar.NewInt("estate_moderation_rejections_total")
)

// Inc increments the given counter by 1.
func Inc(counter *expvar.Int) { counter.Add(1) }
