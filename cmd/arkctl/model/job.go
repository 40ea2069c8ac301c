package model

import (
	"time"

	"github.com/google/uuid"
)

// JobType enumerates the long-running operations the Job Engine (C9) may
// execute.
type JobType string

const (
	JobInstallSteamCmd     JobType = "install-steamcmd"
	JobInstallAsaBinaries  JobType = "install-asa-binaries"
	JobCreateCluster       JobType = "create-cluster"
	JobUpdateServer        JobType = "update-server"
	JobUpdateAll           JobType = "update-all"
	JobDeleteCluster       JobType = "delete-cluster"
)

// JobStatus is a Job's lifecycle state.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether s is one of the immutable terminal states
// (invariant J-1).
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// Job is a long-running operation tracked by the Job Engine. Its store row
// is created when the job is submitted and updated on every status or
// progress change.
type Job struct {
	ID        uuid.UUID       `json:"id" gorm:"primaryKey"`
	Type      JobType         `json:"type"`
	Status    JobStatus       `json:"status"`
	Progress  int             `json:"progress"`
	Message   string          `json:"message"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Data      string          `json:"data"`
	Result    *string         `json:"result,omitempty"`
	Error     *JobError       `json:"error,omitempty" gorm:"-"`
	ErrorJSON string          `json:"-"`
}

// JobError mirrors the closed error envelope returned at the HTTP boundary
// (§7), carried on a Job's terminal state.
type JobError struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}
