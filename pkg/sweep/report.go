package sweep

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SourceCounts breaks down the item-bearing holders the scanner visited.
type SourceCounts struct {
	Players           int `json:"players"`
	Corpses           int `json:"corpses"`
	Storages          int `json:"storages"`
	IODevices         int `json:"io_devices"`
	DroppedItems      int `json:"dropped_items"`
	DroppedContainers int `json:"dropped_containers"`
}

// Report is the telemetry product of one pass. It is built up over the
// pass's steps and published exactly once, on whichever path ends the
// pass: completion, abort, or cancellation.
type Report struct {
	PassID      uuid.UUID `json:"pass_id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Aborted     bool      `json:"aborted"`
	Reason      string    `json:"reason,omitempty"`

	// Entities is the population size the scan observed.
	Entities        int `json:"entities"`
	SkippedEntities int `json:"skipped_entities"`
	HeldEntities    int `json:"held_entities"`
	// ItemsConsidered is the fully expanded item count, nested items
	// included.
	ItemsConsidered int `json:"items_considered"`
	Orphans         int `json:"orphans"`
	Removed         int `json:"removed"`
	SkippedInvalid  int `json:"skipped_invalid"`
	SkippedClaimed  int `json:"skipped_claimed"`
	// Steps is how many runner resumptions the pass took.
	Steps int `json:"steps"`

	Sources SourceCounts `json:"sources"`

	ScanDuration    time.Duration `json:"scan_ns"`
	ExpandDuration  time.Duration `json:"expand_ns"`
	ResolveDuration time.Duration `json:"resolve_ns"`
	ReclaimDuration time.Duration `json:"reclaim_ns"`
	TotalDuration   time.Duration `json:"total_ns"`
}

// Summary renders a one-line result for console replies.
func (r *Report) Summary() string {
	if r.Aborted {
		return fmt.Sprintf("pass %s aborted: %s", r.PassID, r.Reason)
	}
	return fmt.Sprintf("pass %s removed %d of %d held entities, %d items considered, %s total",
		r.PassID, r.Removed, r.HeldEntities, r.ItemsConsidered,
		r.TotalDuration.Round(time.Microsecond))
}
