package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"estate-assistant/internal/domain"
	"estate-assistant/internal/nlu"
)

func newSession(t *testing.T, s *Store) {
	t.Helper()
	s.GetConversationContext(context.Background(), "s1", "v1")
}

func TestGenerateContextualResponse_PoolNearPark(t *testing.T) {
	s := New()
	newSession(t, s)
	s.UpdateConversationContext("s1", domain.Turn{
		Sender:   domain.SenderUser,
		Intent:   domain.IntentApartmentInquiry,
		Entities: []domain.Entity{{Type: domain.EntityLocation, Value: "parque"}},
	})

	resp, ok := s.GenerateContextualResponse("s1", "E tem piscina?")
	require.True(t, ok)
	require.Contains(t, resp, "piscina comunitária")
}

func TestGenerateContextualResponse_RequiresParkReference(t *testing.T) {
	s := New()
	newSession(t, s)
	s.UpdateConversationContext("s1", domain.Turn{Sender: domain.SenderUser, Intent: domain.IntentApartmentInquiry})

	_, ok := s.GenerateContextualResponse("s1", "Tem piscina?")
	require.False(t, ok)
}

func TestGenerateContextualResponse_RequiresTopic(t *testing.T) {
	s := New()
	newSession(t, s)
	s.UpdateConversationContext("s1", domain.Turn{
		Sender:   domain.SenderUser,
		Intent:   domain.IntentProjectInfo,
		Entities: []domain.Entity{{Type: domain.EntityLocation, Value: "park"}},
	})

	_, ok := s.GenerateContextualResponse("s1", "pool?")
	require.False(t, ok)
}

func TestGenerateContextualResponse_Continuation(t *testing.T) {
	s := New()
	newSession(t, s)
	s.UpdateConversationContext("s1", domain.Turn{Sender: domain.SenderUser, Intent: domain.IntentApartmentInquiry})

	resp, ok := s.GenerateContextualResponse("s1", "Há algum com varanda?")
	require.True(t, ok)
	require.Contains(t, resp, "Com base no que discutimos")
}

func TestGenerateContextualResponse_UnknownSession(t *testing.T) {
	_, ok := New().GenerateContextualResponse("nope", "piscina")
	require.False(t, ok)
}

func TestGenerateContextualResponse_CustomRules(t *testing.T) {
	s := New(WithRules(ContextualRule{
		Name:     "garage",
		Topic:    domain.IntentProjectInfo,
		Triggers: []string{"garagem"},
		Response: "Todas as frações têm garagem.",
	}))
	newSession(t, s)
	s.UpdateConversationContext("s1", domain.Turn{Sender: domain.SenderUser, Intent: domain.IntentProjectInfo})

	resp, ok := s.GenerateContextualResponse("s1", "Tem garagem?")
	require.True(t, ok)
	require.Equal(t, "Todas as frações têm garagem.", resp)
}

func TestGetContextualSuggestions(t *testing.T) {
	s := New()
	ctx := context.Background()
	newSession(t, s)
	require.Empty(t, s.GetContextualSuggestions("s1", "v1"))

	s.UpdateConversationContext("s1", domain.Turn{
		Sender:   domain.SenderUser,
		Entities: []domain.Entity{{Type: domain.EntityLocation, Value: "park"}},
	})
	require.Equal(t, []string{"🏊 Tem piscina?", "🌳 Que outras comodidades tem na área?"}, s.GetContextualSuggestions("s1", "v1"))

	s.UpdateConversationContext("s1", domain.Turn{
		Sender:   domain.SenderUser,
		Entities: []domain.Entity{{Type: domain.EntityApartmentID, Value: "A1"}},
	})
	s.UpdateUserPreferences(ctx, "v1", domain.Preferences{Timeline: nlu.TimelineImmediately})
	got := s.GetContextualSuggestions("s1", "v1")
	require.Len(t, got, 4)
	require.Equal(t, []string{"🏊 Tem piscina?", "🌳 Que outras comodidades tem na área?", "📅 Agendar visita", "💰 Informações sobre preço"}, got)
}

func TestGetContextualSuggestions_ImmediateTimelineOnly(t *testing.T) {
	s := New()
	newSession(t, s)
	s.UpdateUserPreferences(context.Background(), "v1", domain.Preferences{Timeline: nlu.TimelineImmediately})
	require.Equal(t, []string{"🚀 Propriedades disponíveis imediatamente"}, s.GetContextualSuggestions("s1", "v1"))
}

func TestGetContextualSuggestions_OnlyLastFiveReferences(t *testing.T) {
	s := New()
	newSession(t, s)
	s.UpdateConversationContext("s1", domain.Turn{Entities: []domain.Entity{{Type: domain.EntityLocation, Value: "park"}}})
	for i := 0; i < 5; i++ {
		s.UpdateConversationContext("s1", domain.Turn{Entities: []domain.Entity{{Type: domain.EntityTimeline, Value: "agora"}}})
	}
	require.Empty(t, s.GetContextualSuggestions("s1", "v1"))
}
