package models

// PollOutcome classifies one poll observation
type PollOutcome string

const (
	PollPending            PollOutcome = "pending"
	PollCompleted          PollOutcome = "completed"
	PollCompletedWithError PollOutcome = "completed_with_error"
	PollFailed             PollOutcome = "failed"
)

// IsTerminal reports whether polling stops on this outcome
func (o PollOutcome) IsTerminal() bool {
	return o != PollPending && o != ""
}

// PollResult is the terminal (or latest) observation of a completion poller
type PollResult struct {
	Outcome   PollOutcome       `json:"outcome"`
	Documents []*SchemaDocument `json:"documents,omitempty"` // Store variant: the matched document set
	Execution *Execution        `json:"execution,omitempty"` // Execution variant: the last execution read
	Attempts  int               `json:"attempts"`
}

// LiveDocument returns the first document that is the completed match for target
func (r *PollResult) LiveDocument(targetVersion string) *SchemaDocument {
	for _, doc := range r.Documents {
		if doc.IsLiveMatch(targetVersion) {
			return doc
		}
	}
	return nil
}

// ClassifyDocuments turns a completion query result into an outcome.
// An empty set is Pending. Any live match means Completed; a set holding only
// error variants (or other non-matching rows) means CompletedWithError.
func ClassifyDocuments(docs []*SchemaDocument, targetVersion string) PollOutcome {
	if len(docs) == 0 {
		return PollPending
	}
	for _, doc := range docs {
		if doc.IsLiveMatch(targetVersion) {
			return PollCompleted
		}
	}
	return PollCompletedWithError
}
