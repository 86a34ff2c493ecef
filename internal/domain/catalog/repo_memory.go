package catalog

import (
	"context"
	"sort"

	"github.com/leap/qmapi/pkg/apperrors"
)

type repoMemory struct {
	snap Snapshot
}

// NewMemoryRepo serves a fixed catalog from memory. The snapshot is copied.
func NewMemoryRepo(snap Snapshot) Repository {
	r := &repoMemory{snap: Snapshot{
		DataSources:   append([]DataSource(nil), snap.DataSources...),
		Measures:      append([]Measure(nil), snap.Measures...),
		Organizations: append([]Organization(nil), snap.Organizations...),
		Payers:        append([]Payer(nil), snap.Payers...),
	}}
	sort.Slice(r.snap.DataSources, func(i, j int) bool { return r.snap.DataSources[i].ID < r.snap.DataSources[j].ID })
	sort.Slice(r.snap.Measures, func(i, j int) bool { return r.snap.Measures[i].ID < r.snap.Measures[j].ID })
	sort.Slice(r.snap.Organizations, func(i, j int) bool { return r.snap.Organizations[i].ID < r.snap.Organizations[j].ID })
	sort.Slice(r.snap.Payers, func(i, j int) bool { return r.snap.Payers[i].ID < r.snap.Payers[j].ID })
	return r
}

func (r *repoMemory) ListOrganizations(_ context.Context) ([]Organization, error) {
	return append([]Organization{}, r.snap.Organizations...), nil
}

func (r *repoMemory) ListMeasures(_ context.Context, enabledOnly bool) ([]Measure, error) {
	items := []Measure{}
	for _, m := range r.snap.Measures {
		if enabledOnly && !m.Enabled {
			continue
		}
		items = append(items, m)
	}
	return items, nil
}

func (r *repoMemory) GetMeasure(_ context.Context, id string) (*Measure, error) {
	for _, m := range r.snap.Measures {
		if m.ID == id {
			out := m
			return &out, nil
		}
	}
	return nil, apperrors.NewNotFoundError("measure not found")
}

func (r *repoMemory) ListDataSources(_ context.Context) ([]DataSource, error) {
	return append([]DataSource{}, r.snap.DataSources...), nil
}

func (r *repoMemory) ListPayers(_ context.Context) ([]Payer, error) {
	return append([]Payer{}, r.snap.Payers...), nil
}

// Demo returns the demo catalog, mirroring migrations/003_seed_catalog.sql.
func Demo() Snapshot {
	return Snapshot{
		Organizations: []Organization{
			{ID: "bch", Name: "Boston Children's Hospital", Description: "Pediatric academic medical center"},
			{ID: "po", Name: "Pediatric Physicians Organization", Description: "Primary care network affiliated with BCH"},
			{ID: "ppoc", Name: "Pediatric Physicians Organization at Children's", Description: "Community pediatric practices"},
		},
		DataSources: []DataSource{
			{ID: "bch_cerner", Name: "BCH Cerner", Description: "Cerner EHR extract"},
			{ID: "bch_epic", Name: "BCH Epic", Description: "Epic EHR extract"},
		},
		Payers: []Payer{
			{ID: "bcbs", Name: "Blue Cross Blue Shield"},
			{ID: "medicaid", Name: "MassHealth"},
			{ID: "tufts", Name: "Tufts Health Plan"},
		},
		Measures: []Measure{
			{
				ID:          "controlling_high_blood_pressure",
				Name:        "Controlling High Blood Pressure",
				Description: "Patients 18-85 years of age with hypertension whose blood pressure was adequately controlled during the measurement period.",
				Numerator:   "Patients whose most recent blood pressure is below 140/90 mmHg",
				Denominator: "Patients 18-85 years of age with a diagnosis of essential hypertension",
				CohortSQL:   "SELECT patient_id, systolic, diastolic, observed_at FROM hypertension_cohort",
				Enabled:     true,
			},
			{
				ID:          "immunization_for_adolescents",
				Name:        "Immunizations for Adolescents",
				Description: "Adolescents 13 years of age who had the recommended immunizations by their 13th birthday.",
				Numerator:   "Adolescents with one dose of meningococcal vaccine, one Tdap and the complete HPV series",
				Denominator: "Adolescents who turn 13 years of age during the measurement period",
				CohortSQL:   "SELECT patient_id, vaccine_code, administered_at FROM adolescent_immunization_cohort",
				Enabled:     true,
			},
			{
				ID:          "well_child_visits",
				Name:        "Well-Child Visits in the First 30 Months of Life",
				Description: "Children who had six or more well-child visits with a primary care practitioner during their first 15 months of life.",
				Numerator:   "Children with six or more well-child visits",
				Denominator: "Children who turn 15 months old during the measurement period",
				Enabled:     false,
			},
		},
	}
}
