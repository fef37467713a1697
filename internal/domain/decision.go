package domain

// Verdict is the outcome for one document.
type Verdict string

const (
	Keep Verdict = "keep"
	Drop Verdict = "drop"
)

// Reason explains a Verdict.
type Reason string

const (
	ReasonUnique         Reason = "unique"
	ReasonRepresentative Reason = "representative"
	ReasonDuplicate      Reason = "duplicate"
	ReasonEmpty          Reason = "empty"
)

// Decision is the keep/drop outcome for a document. KeptAs names the
// group representative when the document is dropped.
type Decision struct {
	RelPath string
	Verdict Verdict
	Reason  Reason
	KeptAs  string
}

// ResolvedGroup is a duplicate group with its representative chosen.
// Members are in traversal order, so Members[0] == Kept.
type ResolvedGroup struct {
	Members []string
	Kept    string
}
