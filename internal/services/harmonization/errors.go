package harmonization

import "errors"

var (
	// ErrPollTimeout is returned when the optional overall poll bound elapses
	ErrPollTimeout = errors.New("timed out waiting for workflow completion")

	// ErrNoCorrelation is returned when no execution id can be tied to a dispatch
	ErrNoCorrelation = errors.New("no execution id returned by the trigger and legacy offset correlation is disabled")

	// ErrNotEditable is returned when edits are saved before results are available
	ErrNotEditable = errors.New("session has no results to edit")
)

// ErrNoOutput is returned when a download is requested before the final workflow succeeded
var ErrNoOutput = errors.New("no harmonized output available")
