package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// Report carries per-run build accounting across stages.
type Report struct {
	BuildID   string
	Commit    string // short git hash of the source checkout, may be empty
	StartedAt time.Time

	StageDurations map[StageName]time.Duration
	StageOutcomes  map[StageName]string // success|fatal|canceled

	Transformed int // files written across all compile stages
	Skipped     int // transform cache hits
}

// NewReport creates an empty report with a fresh build ID.
func NewReport() *Report {
	return &Report{
		BuildID:        uuid.NewString(),
		StartedAt:      time.Now(),
		StageDurations: make(map[StageName]time.Duration),
		StageOutcomes:  make(map[StageName]string),
	}
}

// Duration returns the elapsed time since the report was created.
func (r *Report) Duration() time.Duration {
	return time.Since(r.StartedAt)
}
