package audit

import (
	"context"
	"fmt"
)

// Reader lists access log entries newest first.
type Reader interface {
	ListByActor(ctx context.Context, actorID int64, limit int) ([]Entry, error)
	ListBySubject(ctx context.Context, subjectID int64, limit int) ([]Entry, error)
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
}

// Service answers access log queries.
type Service struct {
	repo Reader
}

// NewService builds Service instance.
func NewService(repo Reader) *Service {
	return &Service{repo: repo}
}

// ByActor returns entries performed by actorID.
func (s *Service) ByActor(ctx context.Context, actorID int64, limit int) ([]Entry, error) {
	entries, err := s.repo.ListByActor(ctx, actorID, clampLimit(limit, MaxLimit))
	if err != nil {
		return nil, fmt.Errorf("audit: by actor: %w", err)
	}
	return entries, nil
}

// BySubject returns entries about the staff record subjectID.
func (s *Service) BySubject(ctx context.Context, subjectID int64, limit int) ([]Entry, error) {
	entries, err := s.repo.ListBySubject(ctx, subjectID, clampLimit(limit, MaxLimit))
	if err != nil {
		return nil, fmt.Errorf("audit: by subject: %w", err)
	}
	return entries, nil
}

// Recent returns the latest entries across all actors.
func (s *Service) Recent(ctx context.Context, limit int) ([]Entry, error) {
	entries, err := s.repo.ListRecent(ctx, clampLimit(limit, DefaultRecentLimit))
	if err != nil {
		return nil, fmt.Errorf("audit: recent: %w", err)
	}
	return entries, nil
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
