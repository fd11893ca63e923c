package core

import (
	"fmt"
	"strings"
)

// Status is the persisted lifecycle state of a Document.
type Status int

const (
	StatusUploaded Status = iota + 1
	StatusOCRInProgress
	StatusOCRDone
	StatusIndexingInProgress
	StatusIndexed
	StatusGraphInProgress
	StatusReady
	StatusFailed
	StatusDeleted
)

var statusNames = map[Status]string{
	StatusUploaded:           "UPLOADED",
	StatusOCRInProgress:      "OCR_IN_PROGRESS",
	StatusOCRDone:            "OCR_DONE",
	StatusIndexingInProgress: "INDEXING_IN_PROGRESS",
	StatusIndexed:            "INDEXED",
	StatusGraphInProgress:    "GRAPH_IN_PROGRESS",
	StatusReady:              "READY",
	StatusFailed:             "FAILED",
	StatusDeleted:            "DELETED",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATUS(%d)", int(s))
}

// ParseStatus parses the upper-case status name, case-insensitively.
func ParseStatus(s string) (Status, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for status, name := range statusNames {
		if name == want {
			return status, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown status %q", ErrInvalidConfig, s)
}

// InProgress reports whether a stage is currently working on the document.
func (s Status) InProgress() bool {
	return s == StatusOCRInProgress || s == StatusIndexingInProgress || s == StatusGraphInProgress
}

// Terminal reports whether the pipeline has nothing left to do for the document.
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusFailed || s == StatusDeleted
}

// Stage identifies one of the three sequential processing stages.
type Stage string

const (
	StageOCR      Stage = "ocr"
	StageIndexing Stage = "indexing"
	StageGraph    Stage = "graph"
)

// Stages lists the stages in execution order.
var Stages = []Stage{StageOCR, StageIndexing, StageGraph}

// Entry returns the status a document must hold for the stage to start.
func (st Stage) Entry() Status {
	switch st {
	case StageOCR:
		return StatusUploaded
	case StageIndexing:
		return StatusOCRDone
	case StageGraph:
		return StatusIndexed
	}
	return 0
}

// Running returns the in-progress status of the stage.
func (st Stage) Running() Status {
	return st.Entry() + 1
}

// Done returns the status the stage moves the document to on success.
func (st Stage) Done() Status {
	if st == StageGraph {
		return StatusReady
	}
	return st.Entry() + 2
}

// StageOf returns the stage whose in-progress status is s.
func StageOf(s Status) (Stage, bool) {
	for _, st := range Stages {
		if st.Running() == s {
			return st, true
		}
	}
	return "", false
}

// NextStage returns the stage that starts from status s.
func NextStage(s Status) (Stage, bool) {
	for _, st := range Stages {
		if st.Entry() == s {
			return st, true
		}
	}
	return "", false
}

// CanTransition reports whether the state machine allows from -> to.
//
// Allowed transitions:
//   - a stage's entry status to its running status, and running to done
//   - any running status to FAILED
//   - FAILED back to the entry status of the stage that failed (retry)
//   - a running status back to its own entry status (crash recovery)
//   - any status other than DELETED to DELETED
func CanTransition(from, to Status) bool {
	if to == StatusDeleted {
		return from != StatusDeleted
	}
	if to == StatusFailed {
		return from.InProgress()
	}
	if from == StatusFailed {
		_, ok := NextStage(to)
		return ok
	}
	for _, st := range Stages {
		switch {
		case from == st.Entry() && to == st.Running():
			return true
		case from == st.Running() && to == st.Done():
			return true
		case from == st.Running() && to == st.Entry():
			return true
		}
	}
	return false
}

// ErrorClass is the terminal error class exposed on a FAILED document.
type ErrorClass string

const (
	ClassTransient ErrorClass = "transient"
	ClassPermanent ErrorClass = "permanent"
)
