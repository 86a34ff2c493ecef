package catalog

import (
	"context"

	"github.com/leap/qmapi/pkg/apperrors"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListOrganizations(ctx context.Context) ([]Organization, error) {
	items, err := s.repo.ListOrganizations(ctx)
	if err != nil {
		return nil, apperrors.NewDataAccessError("failed to list organizations", err)
	}
	return items, nil
}

func (s *Service) ListMeasures(ctx context.Context, enabledOnly bool) ([]Measure, error) {
	items, err := s.repo.ListMeasures(ctx, enabledOnly)
	if err != nil {
		return nil, apperrors.NewDataAccessError("failed to list measures", err)
	}
	return items, nil
}

func (s *Service) ListDataSources(ctx context.Context) ([]DataSource, error) {
	items, err := s.repo.ListDataSources(ctx)
	if err != nil {
		return nil, apperrors.NewDataAccessError("failed to list data sources", err)
	}
	return items, nil
}

func (s *Service) ListPayers(ctx context.Context) ([]Payer, error) {
	items, err := s.repo.ListPayers(ctx)
	if err != nil {
		return nil, apperrors.NewDataAccessError("failed to list payers", err)
	}
	return items, nil
}

func (s *Service) GetMeasure(ctx context.Context, id string) (*Measure, error) {
	m, err := s.repo.GetMeasure(ctx, id)
	if apperrors.IsNotFound(err) {
		return nil, err
	}
	if err != nil {
		return nil, apperrors.NewDataAccessError("failed to load measure", err)
	}
	return m, nil
}

// Snapshot loads the four catalog lists. Only enabled measures are included.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)
	if snap.DataSources, err = s.ListDataSources(ctx); err != nil {
		return nil, err
	}
	if snap.Measures, err = s.ListMeasures(ctx, true); err != nil {
		return nil, err
	}
	if snap.Organizations, err = s.ListOrganizations(ctx); err != nil {
		return nil, err
	}
	if snap.Payers, err = s.ListPayers(ctx); err != nil {
		return nil, err
	}
	return &snap, nil
}
