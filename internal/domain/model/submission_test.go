package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/LeHak0/Neuro-Triage/internal/errors"
)

func TestSubmissionInput_Validate(t *testing.T) {
	validPatient := PatientMeta{MoCATotal: 22, Age: 68, Sex: SexFemale}

	tests := []struct {
		name      string
		input     SubmissionInput
		wantErr   bool
		wantField string
	}{
		{
			name: "valid submission",
			input: SubmissionInput{
				Files:   []CaseFile{{Filename: "t1.nii.gz", Content: strings.NewReader("scan")}},
				Patient: validPatient,
			},
			wantErr: false,
		},
		{
			name: "no files",
			input: SubmissionInput{
				Files:   nil,
				Patient: validPatient,
			},
			wantErr:   true,
			wantField: "files",
		},
		{
			name: "file without filename",
			input: SubmissionInput{
				Files:   []CaseFile{{Filename: "", Content: strings.NewReader("scan")}},
				Patient: validPatient,
			},
			wantErr:   true,
			wantField: "files",
		},
		{
			name: "moca below range",
			input: SubmissionInput{
				Files:   []CaseFile{{Filename: "t1.nii.gz"}},
				Patient: PatientMeta{MoCATotal: -3, Age: 68, Sex: SexFemale},
			},
			wantErr:   true,
			wantField: "moca",
		},
		{
			name: "moca not recorded",
			input: SubmissionInput{
				Files:   []CaseFile{{Filename: "t1.nii.gz"}},
				Patient: PatientMeta{MoCATotal: MoCAUnset, Age: 68, Sex: SexFemale},
			},
			wantErr: false,
		},
		{
			name: "moca score of zero is a real result",
			input: SubmissionInput{
				Files:   []CaseFile{{Filename: "t1.nii.gz"}},
				Patient: PatientMeta{MoCATotal: 0, Age: 68, Sex: SexFemale},
			},
			wantErr: false,
		},
		{
			name: "moca above range",
			input: SubmissionInput{
				Files:   []CaseFile{{Filename: "t1.nii.gz"}},
				Patient: PatientMeta{MoCATotal: 31, Age: 68, Sex: SexFemale},
			},
			wantErr:   true,
			wantField: "moca",
		},
		{
			name: "moca boundary values accepted",
			input: SubmissionInput{
				Files:   []CaseFile{{Filename: "t1.nii.gz"}},
				Patient: PatientMeta{MoCATotal: 30, Age: 68, Sex: SexMale},
			},
			wantErr: false,
		},
		{
			name: "age not recorded",
			input: SubmissionInput{
				Files:   []CaseFile{{Filename: "t1.nii.gz"}},
				Patient: PatientMeta{MoCATotal: 22, Age: 0, Sex: SexFemale},
			},
			wantErr: false,
		},
		{
			name: "negative age",
			input: SubmissionInput{
				Files:   []CaseFile{{Filename: "t1.nii.gz"}},
				Patient: PatientMeta{MoCATotal: 22, Age: -4, Sex: SexFemale},
			},
			wantErr:   true,
			wantField: "age",
		},
		{
			name: "unknown sex code",
			input: SubmissionInput{
				Files:   []CaseFile{{Filename: "t1.nii.gz"}},
				Patient: PatientMeta{MoCATotal: 22, Age: 68, Sex: "X"},
			},
			wantErr:   true,
			wantField: "sex",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Equal(t, tt.wantField, apperrors.GetField(err))
		})
	}
}
