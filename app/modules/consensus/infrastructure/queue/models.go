package consensusqueue

import "time"

// FinalizeKind is the River kind of FinalizeJob.
const FinalizeKind = "contest_finalize"

// FinalizeJob finalizes the contest when the reveal window closes.
type FinalizeJob struct {
	RevealClose time.Time `json:"reveal_close"`
}

// Kind returns the job type identifier for River
func (FinalizeJob) Kind() string { return FinalizeKind }

// JobInfo describes a queued finalize job.
type JobInfo struct {
	ID          int64  `json:"id"`
	Kind        string `json:"kind"`
	State       string `json:"state"`
	ScheduledAt string `json:"scheduled_at"`
	CreatedAt   string `json:"created_at"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
}
