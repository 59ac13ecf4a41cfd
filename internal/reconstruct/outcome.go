package reconstruct

// SkipReason explains why an item produced no snapshot row.
type SkipReason string

// Skip reasons.
const (
	// SkipNoBestMatch: none of the item's memberships is a scope project.
	SkipNoBestMatch SkipReason = "no_best_match"
)

// Warning flags source data that was ignored while building a row.
type Warning string

// Data warnings.
const (
	WarnMalformedPoints  Warning = "malformed_points"
	WarnMalformedColumns Warning = "malformed_columns"
	WarnUnknownColumn    Warning = "unknown_column"
)

// Outcome reports what happened to one item on one day.
type Outcome struct {
	Skip     SkipReason
	Warnings []Warning
}

// Skipped reports whether the item was left out of the snapshot.
func (o Outcome) Skipped() bool {
	return o.Skip != ""
}

func (o *Outcome) warn(w Warning) {
	o.Warnings = append(o.Warnings, w)
}
