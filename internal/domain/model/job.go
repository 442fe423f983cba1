package model

import "sort"

// JobState represents the lifecycle state of an analysis job as reported
// by the backend status endpoint.
type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

// IsTerminal reports whether the state ends the polling loop.
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// IsValid reports whether the state is one the backend is known to emit.
func (s JobState) IsValid() bool {
	switch s {
	case JobStateQueued, JobStateRunning, JobStateCompleted, JobStateFailed:
		return true
	default:
		return false
	}
}

// StageState represents the state of a single processing stage (agent)
// within a running job.
type StageState string

const (
	StagePending StageState = "pending"
	StageRunning StageState = "running"
	StageDone    StageState = "done"
	StageFailed  StageState = "failed"
)

// StageStatus is the per-stage snapshot inside a status response.
type StageStatus struct {
	Status StageState     `json:"status"`
	Output map[string]any `json:"output,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// JobStatus is a wholesale snapshot of job progress, replaced on every
// poll tick and never merged field-by-field.
type JobStatus struct {
	JobID    string                 `json:"job_id"`
	Status   JobState               `json:"status"`
	Progress int                    `json:"progress"`
	Agents   map[string]StageStatus `json:"agents"`
}

// pipelineOrder lists the backend's processing agents in execution order.
// Stage names not in this list sort after the known ones, alphabetically.
var pipelineOrder = map[string]int{
	"Ingestion_QC_Agent":        0,
	"Imaging_Feature_Agent":     1,
	"Risk_Stratification_Agent": 2,
	"Evidence_RAG_Agent":        3,
	"Clinical_Note_Agent":       4,
	"Safety_Compliance_Agent":   5,
}

// Stage pairs a stage name with its status for ordered display.
type Stage struct {
	Name   string
	Status StageStatus
}

// OrderedStages returns the stages in backend execution order so the UI
// renders a stable pipeline regardless of map iteration order.
func (s *JobStatus) OrderedStages() []Stage {
	stages := make([]Stage, 0, len(s.Agents))
	for name, st := range s.Agents {
		stages = append(stages, Stage{Name: name, Status: st})
	}
	sort.Slice(stages, func(i, j int) bool {
		oi, iok := pipelineOrder[stages[i].Name]
		oj, jok := pipelineOrder[stages[j].Name]
		switch {
		case iok && jok:
			return oi < oj
		case iok:
			return true
		case jok:
			return false
		default:
			return stages[i].Name < stages[j].Name
		}
	})
	return stages
}

// ClampProgress bounds a backend-reported progress value to [0,100].
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
