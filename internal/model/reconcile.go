package model

// OutcomeStatus is the per-record result of a reconciliation import.
type OutcomeStatus string

const (
	OutcomeAccepted OutcomeStatus = "accepted"
	OutcomeRejected OutcomeStatus = "rejected"
)

// ImportOutcome reports what happened to a single correction record. Row is
// the 1-based position in the input batch.
type ImportOutcome struct {
	Row            int           `json:"row"`
	SourceCode     string        `json:"source_code,omitempty"`
	TargetCode     string        `json:"target_code,omitempty"`
	Status         OutcomeStatus `json:"status"`
	Reason         string        `json:"reason,omitempty"`
	ProductCreated bool          `json:"product_created,omitempty"`
	PriceUpdated   bool          `json:"price_updated,omitempty"`
}

// ImportReport summarizes a reconciliation batch. One bad record never aborts
// the batch; it shows up here as a rejected outcome instead.
type ImportReport struct {
	Outcomes []ImportOutcome `json:"outcomes"`
	Accepted int             `json:"accepted"`
	Rejected int             `json:"rejected"`
}

// MergeReport summarizes merging a source catalog into a destination.
// Conflicts are resolved deterministically and counted, never raised.
type MergeReport struct {
	ProductsAdded      int `json:"products_added"`
	ProductsMerged     int `json:"products_merged"`
	MappingsAdded      int `json:"mappings_added"`
	MappingsConflicted int `json:"mappings_conflicted"`
}
