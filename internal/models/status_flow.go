package models

import (
	"fmt"
	"strconv"
	"strings"
)

// StatusFlow is the pipeline stage marker the workflow engine writes onto schema
// documents. It is stored as text ("0".."3") and compared as text: "10" sorts
// before "3". The numeric reading is only used for display.
type StatusFlow string

const (
	// StatusFlowComplete is the stage at which a live schema document is final
	StatusFlowComplete StatusFlow = "3"

	// StatusFlowUnknown is displayed when a document carries no marker
	StatusFlowUnknown = "NA"
)

// Compare implements badgerhold.Comparer using byte-wise string ordering,
// matching the store's `$lt: "3"` semantics.
func (s StatusFlow) Compare(other interface{}) (int, error) {
	switch o := other.(type) {
	case StatusFlow:
		return strings.Compare(string(s), string(o)), nil
	case *StatusFlow:
		if o == nil {
			return 1, nil
		}
		return strings.Compare(string(s), string(*o)), nil
	case string:
		return strings.Compare(string(s), o), nil
	default:
		return 0, fmt.Errorf("cannot compare StatusFlow with %T", other)
	}
}

// Less reports whether s sorts before other as text
func (s StatusFlow) Less(other StatusFlow) bool {
	return string(s) < string(other)
}

// Stage returns the numeric stage when the marker parses as an integer
func (s StatusFlow) Stage() (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(string(s)))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Display returns the marker or "NA" when empty
func (s StatusFlow) Display() string {
	if s == "" {
		return StatusFlowUnknown
	}
	return string(s)
}
