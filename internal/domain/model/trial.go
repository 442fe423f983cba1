package model

import "encoding/json"

// TrialQuery is the request body for the backend trial-search endpoint.
// ImagingFindings is forwarded verbatim from the result document; the
// backend interprets it, not the UI.
type TrialQuery struct {
	RiskTier        string          `json:"risk_tier"`
	ImagingFindings json.RawMessage `json:"imaging_findings,omitempty"`
	MoCAScore       int             `json:"moca_score,omitempty"`
	Age             int             `json:"age,omitempty"`
	Sex             string          `json:"sex"`
}

// Trial is a single clinical-trial match returned by the backend.
type Trial struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Phase       string `json:"phase,omitempty"`
	Status      string `json:"status,omitempty"`
	Link        string `json:"link,omitempty"`
	Location    string `json:"location,omitempty"`
	Eligibility string `json:"eligibility,omitempty"`
}

// TrialList is the trial-search response envelope.
type TrialList struct {
	Trials []Trial `json:"trials"`
}
