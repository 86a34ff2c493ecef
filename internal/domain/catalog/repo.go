package catalog

import "context"

// Repository reads the reference catalog. Lists are ordered by ID.
type Repository interface {
	ListOrganizations(ctx context.Context) ([]Organization, error)
	ListMeasures(ctx context.Context, enabledOnly bool) ([]Measure, error)
	ListDataSources(ctx context.Context) ([]DataSource, error)
	ListPayers(ctx context.Context) ([]Payer, error)
	GetMeasure(ctx context.Context, id string) (*Measure, error)
}
