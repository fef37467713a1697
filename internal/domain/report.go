package domain

import (
	"errors"
	"math"
)

// FileStat is the per-file information shown in the report.
type FileStat struct {
	RelPath   string
	Tokens    int
	SizeBytes int
}

// GroupReport describes one multi-member duplicate group.
type GroupReport struct {
	Members []FileStat
	Kept    string
}

// RunReport aggregates the outcome of one pipeline run.
type RunReport struct {
	TotalFiles      int
	ProcessedFiles  int
	KeptFiles       int
	DroppedFiles    int
	EmptyFiles      int
	UnreadableFiles int
	CopiedFiles     int
	TotalTokens     int
	RemovedTokens   int
	Groups          []GroupReport
	Decisions       []Decision
	Failures        []*FileError
}

// HasDuplicates reports whether any group has more than one member.
func (r RunReport) HasDuplicates() bool {
	for _, g := range r.Groups {
		if len(g.Members) > 1 {
			return true
		}
	}
	return false
}

// RemovalPercentage is dropped/total*100 rounded to two decimals.
func (r RunReport) RemovalPercentage() float64 {
	return percentage(r.DroppedFiles, r.TotalFiles)
}

// TokenRemovalPercentage is removed/total tokens*100 rounded to two decimals.
func (r RunReport) TokenRemovalPercentage() float64 {
	return percentage(r.RemovedTokens, r.TotalTokens)
}

// WriteFailures counts failures of kind ErrWriteFailure.
func (r RunReport) WriteFailures() int {
	n := 0
	for _, f := range r.Failures {
		if errors.Is(f, ErrWriteFailure) {
			n++
		}
	}
	return n
}

func percentage(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*10000) / 100
}
