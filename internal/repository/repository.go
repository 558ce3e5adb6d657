// Package repository persists visitor profiles, interaction history and leads
// in DynamoDB or in a SQL database.
package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"estate-assistant/internal/domain"
)

// Store is implemented by every backend.
type Store interface {
	LoadProfile(ctx context.Context, visitorID string) (domain.UserProfile, bool, error)
	SaveProfile(ctx context.Context, profile domain.UserProfile) error
	RecentInteractions(ctx context.Context, visitorID string, limit int) ([]domain.Turn, error)
	AppendInteraction(ctx context.Context, visitorID string, turn domain.Turn) error
	SaveLead(ctx context.Context, lead domain.Lead) error
}

func encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("repository: encode: %w", err)
	}
	return string(b), nil
}

func decodeProfile(raw string) (domain.UserProfile, error) {
	var p domain.UserProfile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return domain.UserProfile{}, fmt.Errorf("repository: decode profile: %w", err)
	}
	return p, nil
}

func decodeEntities(raw string) ([]domain.Entity, error) {
	if raw == "" {
		return nil, nil
	}
	var out []domain.Entity
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("repository: decode entities: %w", err)
	}
	return out, nil
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func decodeJSON(raw string, v any) error {
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("repository: decode: %w", err)
	}
	return nil
}
