package measureresult

import (
	"context"

	"github.com/leap/qmapi/internal/domain/catalog"
)

// Catalog is the read side of the reference catalog the aggregator resolves
// filters against. catalog.Repository satisfies it.
type Catalog interface {
	ListOrganizations(ctx context.Context) ([]catalog.Organization, error)
	ListMeasures(ctx context.Context, enabledOnly bool) ([]catalog.Measure, error)
	ListDataSources(ctx context.Context) ([]catalog.DataSource, error)
}

// FactStore runs the filtered range query over stored fact rows.
type FactStore interface {
	QueryFacts(ctx context.Context, q FactQuery) ([]FactRow, error)
}

// FactWriter appends fact rows. Only the generator writes.
type FactWriter interface {
	InsertFacts(ctx context.Context, rows []FactRow) (int, error)
}

// FactRepository is a fact store that can also be written to.
type FactRepository interface {
	FactStore
	FactWriter
}
