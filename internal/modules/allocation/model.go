// README: Allocation candidates and tuning constants.
package allocation

import (
	"time"

	"cabdispatch/internal/modules/fleet"
	"cabdispatch/internal/types"
)

// Candidate is one driver/cab pair the engine may try to commit.
type Candidate struct {
	DriverID types.ID
	CabID    types.ID
	Rating   float64
}

const (
	// maxCommitAttempts bounds how many stale candidates AutoAssign skips
	// before giving up.
	maxCommitAttempts = 3
	// defaultCandidatePool is used when the configured pool size is not positive.
	defaultCandidatePool = 20
	// defaultSyncInterval is the index rebuild period when none is configured.
	defaultSyncInterval = 30 * time.Second
)

// assignable reports whether a driver may take a new booking right now.
func assignable(d *fleet.Driver) bool {
	return d.Status == fleet.StatusAvailable && d.Active
}
