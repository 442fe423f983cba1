package model

import (
	"io"
	"strconv"

	apperrors "github.com/LeHak0/Neuro-Triage/internal/errors"
)

// Sex codes accepted by the analysis backend. "U" (unknown) is the
// neutral default when the form leaves the field unset.
const (
	SexFemale  = "F"
	SexMale    = "M"
	SexOther   = "O"
	SexUnknown = "U"
)

// MoCA total scores are bounded by the instrument itself. MoCAUnset
// marks a case submitted without a score: 0 is a real (worst possible)
// result, so absence needs its own sentinel. Age uses 0 for "not
// recorded". The backend substitutes its own defaults for both.
const (
	MoCAMin   = 0
	MoCAMax   = 30
	MoCAUnset = -1
)

// CaseFile is a single MRI file selected for submission.
type CaseFile struct {
	Filename    string
	ContentType string
	Content     io.Reader
}

// PatientMeta is the structured metadata accompanying a submission.
type PatientMeta struct {
	MoCATotal int    `json:"moca_total"`
	Age       int    `json:"age"`
	Sex       string `json:"sex"`
}

// SubmissionInput bundles everything required to start an analysis run.
// It is transient: consumed at submission time and never stored.
type SubmissionInput struct {
	Files   []CaseFile
	Patient PatientMeta
}

// Validate enforces the client-side submission gate: at least one file,
// MoCA in [0,30] when recorded, positive age when recorded, and a known
// sex code. The backend re-validates on its side; this gate exists so
// an invalid case never generates a network call.
func (in *SubmissionInput) Validate() error {
	if len(in.Files) == 0 {
		return apperrors.ValidationField("files", "at least one MRI file is required")
	}
	for _, f := range in.Files {
		if f.Filename == "" {
			return apperrors.ValidationField("files", "file is missing a filename")
		}
	}
	return in.Patient.Validate()
}

// HasMoCA reports whether a MoCA score was recorded for the case.
func (m PatientMeta) HasMoCA() bool { return m.MoCATotal != MoCAUnset }

// HasAge reports whether the patient's age was recorded.
func (m PatientMeta) HasAge() bool { return m.Age > 0 }

// MoCADisplay renders the score for templates, with the neutral
// placeholder standing in for an unrecorded value.
func (m PatientMeta) MoCADisplay() string {
	if !m.HasMoCA() {
		return Placeholder
	}
	return strconv.Itoa(m.MoCATotal)
}

// AgeDisplay renders the age for templates.
func (m PatientMeta) AgeDisplay() string {
	if !m.HasAge() {
		return Placeholder
	}
	return strconv.Itoa(m.Age)
}

// Validate checks patient metadata bounds. MoCA and age are optional;
// the bounds apply only to recorded values.
func (m *PatientMeta) Validate() error {
	if m.HasMoCA() && (m.MoCATotal < MoCAMin || m.MoCATotal > MoCAMax) {
		return apperrors.ValidationField("moca", "MoCA total score must be between 0 and 30")
	}
	if m.Age < 0 {
		return apperrors.ValidationField("age", "age must be a positive number")
	}
	switch m.Sex {
	case SexFemale, SexMale, SexOther, SexUnknown:
		return nil
	default:
		return apperrors.ValidationField("sex", "sex must be one of F, M, O, U")
	}
}
