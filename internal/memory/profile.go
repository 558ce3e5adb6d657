package memory

import (
	"context"
	"slices"

	"estate-assistant/internal/domain"
	"estate-assistant/internal/ringbuf"
)

// GetUserProfile returns the cached profile, else the persisted one, else a
// default profile.
func (s *Store) GetUserProfile(ctx context.Context, visitorID string) domain.UserProfile {
	s.ensureProfile(ctx, visitorID)
	s.profileMu.Lock()
	defer s.profileMu.Unlock()
	return cloneProfile(*s.profiles[visitorID])
}

// UpdateUserPreferences merges the non-empty fields of prefs into the profile
// and persists it.
func (s *Store) UpdateUserPreferences(ctx context.Context, visitorID string, prefs domain.Preferences) {
	s.mutateProfile(ctx, visitorID, func(p *domain.UserProfile) {
		p.Preferences = p.Preferences.Merge(prefs)
	})
}

func (s *Store) AddPropertyInteraction(ctx context.Context, visitorID string, in domain.PropertyInteraction) {
	if in.Timestamp.IsZero() {
		in.Timestamp = s.now()
	}
	s.mutateProfile(ctx, visitorID, func(p *domain.UserProfile) {
		buf := ringbuf.From(maxInteractions, p.PropertyInteractions)
		buf.Push(in)
		p.PropertyInteractions = buf.Slice()
	})
}

func (s *Store) AddSearch(ctx context.Context, visitorID, query string, results []string) {
	entry := domain.SearchEntry{Query: query, Timestamp: s.now(), Results: slices.Clone(results)}
	s.mutateProfile(ctx, visitorID, func(p *domain.UserProfile) {
		buf := ringbuf.From(maxSearches, p.SearchHistory)
		buf.Push(entry)
		p.SearchHistory = buf.Slice()
	})
}

// RecordInteraction updates the conversation summary of the visitor and
// mirrors the turn to persistence.
func (s *Store) RecordInteraction(ctx context.Context, visitorID string, turn domain.Turn) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now()
	}
	s.mutateProfile(ctx, visitorID, func(p *domain.UserProfile) {
		p.Summary.TotalInteractions++
		p.Summary.LastInteractionDate = turn.Timestamp
		topic := string(turn.Intent)
		if turn.Sender == domain.SenderUser && topic != "" && !slices.Contains(p.Summary.CommonTopics, topic) {
			p.Summary.CommonTopics = append(p.Summary.CommonTopics, topic)
			if n := len(p.Summary.CommonTopics); n > maxTopics {
				p.Summary.CommonTopics = p.Summary.CommonTopics[n-maxTopics:]
			}
		}
	})
	if s.persist == nil {
		return
	}
	if err := s.persist.AppendInteraction(ctx, visitorID, turn); err != nil {
		s.logger.Warn("memory: append interaction failed", "visitor_id", visitorID, "err", err)
	}
}

// UpdateLeadStatus sets the lead score, clamped to 0..100, and the
// qualification status.
func (s *Store) UpdateLeadStatus(ctx context.Context, visitorID string, score int, status domain.QualificationStatus) {
	score = min(max(score, 0), 100)
	s.mutateProfile(ctx, visitorID, func(p *domain.UserProfile) {
		p.Summary.LeadScore = score
		if status != "" {
			p.Summary.QualificationStatus = status
		}
	})
}

// UpdatePersonalInfo merges the non-empty contact fields into the profile.
func (s *Store) UpdatePersonalInfo(ctx context.Context, visitorID string, info domain.PersonalInfo) {
	s.mutateProfile(ctx, visitorID, func(p *domain.UserProfile) {
		if info.Name != "" {
			p.PersonalInfo.Name = info.Name
		}
		if info.Email != "" {
			p.PersonalInfo.Email = info.Email
		}
		if info.Phone != "" {
			p.PersonalInfo.Phone = info.Phone
		}
	})
}

// mutateProfile applies fn under the profile lock and persists the result
// outside of it.
func (s *Store) mutateProfile(ctx context.Context, visitorID string, fn func(*domain.UserProfile)) {
	s.ensureProfile(ctx, visitorID)

	s.profileMu.Lock()
	p := s.profiles[visitorID]
	fn(p)
	saved := cloneProfile(*p)
	s.profileMu.Unlock()

	if s.persist == nil {
		return
	}
	if err := s.persist.SaveProfile(ctx, saved); err != nil {
		s.logger.Warn("memory: save profile failed", "visitor_id", visitorID, "err", err)
	}
}

func (s *Store) ensureProfile(ctx context.Context, visitorID string) {
	s.profileMu.Lock()
	_, ok := s.profiles[visitorID]
	s.profileMu.Unlock()
	if ok {
		return
	}

	loaded := s.loadProfile(ctx, visitorID)

	s.profileMu.Lock()
	if _, ok := s.profiles[visitorID]; !ok {
		s.profiles[visitorID] = &loaded
	}
	s.profileMu.Unlock()
}

func (s *Store) loadProfile(ctx context.Context, visitorID string) domain.UserProfile {
	if s.persist == nil {
		return domain.NewUserProfile(visitorID, s.now())
	}
	p, found, err := s.persist.LoadProfile(ctx, visitorID)
	if err != nil {
		s.logger.Warn("memory: load profile failed", "visitor_id", visitorID, "err", err)
		return domain.NewUserProfile(visitorID, s.now())
	}
	if !found {
		return domain.NewUserProfile(visitorID, s.now())
	}
	p.VisitorID = visitorID
	if p.Summary.QualificationStatus == "" {
		p.Summary.QualificationStatus = domain.StatusUnqualified
	}
	return p
}

func cloneProfile(p domain.UserProfile) domain.UserProfile {
	p.SearchHistory = slices.Clone(p.SearchHistory)
	p.PropertyInteractions = slices.Clone(p.PropertyInteractions)
	p.Summary.CommonTopics = slices.Clone(p.Summary.CommonTopics)
	return p
}
