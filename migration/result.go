package migration

import (
	"time"

	"github.com/google/uuid"
)

// Result is the outcome of executing a step or chain.
//
// When Success is false, Data and Provenance are nil and Err is set. Errors holds every
// step error collected during the run; Err joins them.
type Result struct {
	Success           bool
	Data              any
	Provenance        *Provenance
	Err               error
	Errors            []error
	VersionsApplied   []int
	MigrationsApplied []string
}

// Provenance records how a result was produced.
type Provenance struct {
	ID          string
	Name        string
	From        int
	To          int
	Direction   Direction
	Description string
	Timestamp   time.Time
	Duration    time.Duration
	DryRun      bool
	Steps       []string
}

func newProvenance(name string, from, to int, dir Direction, at time.Time) *Provenance {
	return &Provenance{
		ID:        uuid.NewString(),
		Name:      name,
		From:      from,
		To:        to,
		Direction: dir,
		Timestamp: at,
	}
}

func failure(err error) *Result {
	return &Result{Err: err, Errors: []error{err}}
}
