package validator

// Severity of an Issue. Errors fail validation; warnings fail it only in strict mode.
type Severity string

// Severities.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Category groups issues by the kind of invariant they break.
type Category string

// Issue categories.
const (
	CategoryStructural  Category = "structural"
	CategoryReferential Category = "referential"
	CategoryType        Category = "type"
	CategoryCardinality Category = "cardinality"
	CategoryStyle       Category = "style"
)

// Issue is one finding. Source is the storage file; Instance is an
// "id (Class)" label when the finding concerns a specific instance.
type Issue struct {
	Severity Severity `json:"severity"`
	Category Category `json:"category"`
	Message  string   `json:"message"`
	Source   string   `json:"source,omitempty"`
	Instance string   `json:"instance,omitempty"`
}

// Counts summarises what was validated.
type Counts struct {
	Files      int `json:"files"`
	Documents  int `json:"documents"`
	Components int `json:"components"`
	Classes    int `json:"classes"`
	Relations  int `json:"relations"`
	Instances  int `json:"instances"`
	Edges      int `json:"edges"`
}

// Report is the complete outcome of one validation pass.
type Report struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
	Counts   Counts  `json:"counts"`
}

// Passed reports whether the report is acceptable. In strict mode warnings
// count as failures.
func (r *Report) Passed(strict bool) bool {
	if !r.Valid {
		return false
	}
	return !strict || len(r.Warnings) == 0
}

// Issues returns errors followed by warnings.
func (r *Report) Issues() []Issue {
	out := make([]Issue, 0, len(r.Errors)+len(r.Warnings))
	out = append(out, r.Errors...)
	return append(out, r.Warnings...)
}
