package model

import (
	"encoding/json"
	"fmt"
	"strconv"

	jmespath "github.com/jmespath-community/go-jmespath"
)

// Placeholder is the neutral display value substituted for any field the
// backend payload does not carry. Resolved once here at the model
// boundary so views never probe nested maps themselves.
const Placeholder = "N/A"

// RiskTier is the backend's four-level ordered severity classification.
type RiskTier string

const (
	RiskLow      RiskTier = "LOW"
	RiskModerate RiskTier = "MODERATE"
	RiskHigh     RiskTier = "HIGH"
	RiskUrgent   RiskTier = "URGENT"
	RiskUnknown  RiskTier = "UNKNOWN"
)

// Rank orders tiers by severity (LOW=0 .. URGENT=3, UNKNOWN=-1).
func (t RiskTier) Rank() int {
	switch t {
	case RiskLow:
		return 0
	case RiskModerate:
		return 1
	case RiskHigh:
		return 2
	case RiskUrgent:
		return 3
	default:
		return -1
	}
}

// ParseRiskTier normalises a raw tier string, mapping anything
// unrecognised to RiskUnknown.
func ParseRiskTier(raw string) RiskTier {
	switch RiskTier(raw) {
	case RiskLow, RiskModerate, RiskHigh, RiskUrgent:
		return RiskTier(raw)
	default:
		return RiskUnknown
	}
}

// ResultEnvelope is the raw response of the backend result endpoint.
// Result is kept as a raw document: its shape is not strictly guaranteed,
// so typed projection happens separately and defensively.
type ResultEnvelope struct {
	JobID  string          `json:"job_id"`
	Status JobState        `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Citation is a single evidence reference attached to a result.
type Citation struct {
	Title    string `json:"title"`
	Source   string `json:"source"`
	Link     string `json:"link"`
	Strength string `json:"strength"`
}

// TriageView is the projected risk classification.
type TriageView struct {
	RiskTier      RiskTier `json:"risk_tier"`
	Confidence    float64  `json:"confidence"`
	HasConfidence bool     `json:"has_confidence"`
	Rationale     []string `json:"rationale"`
}

// ConfidencePercent formats the confidence score for display ("78%").
func (t TriageView) ConfidencePercent() string {
	if !t.HasConfidence {
		return Placeholder
	}
	return strconv.Itoa(int(t.Confidence*100+0.5)) + "%"
}

// PatientView is the projected patient summary from the clinical note.
type PatientView struct {
	Age  string `json:"age"`
	Sex  string `json:"sex"`
	MoCA string `json:"moca"`
}

// VolumeView is a single hippocampal volume reading in millilitres,
// pre-formatted with the placeholder applied when absent.
type VolumeView struct {
	Display string  `json:"display"`
	Value   float64 `json:"value"`
	Known   bool    `json:"known"`
}

// ImagingView is the projected imaging findings block.
type ImagingView struct {
	LeftVolumeML    VolumeView `json:"left_volume_ml"`
	RightVolumeML   VolumeView `json:"right_volume_ml"`
	AsymmetryML     VolumeView `json:"asymmetry_ml"`
	MTAScore        string     `json:"mta_score"`
	LeftPercentile  string     `json:"left_percentile"`
	RightPercentile string     `json:"right_percentile"`
}

// NoteView is the projected structured clinical note.
type NoteView struct {
	Patient         PatientView `json:"patient"`
	Imaging         ImagingView `json:"imaging"`
	Recommendations []string    `json:"recommendations"`
	Limitations     []string    `json:"limitations"`
}

// QCView is the projected ingestion quality-control report.
type QCView struct {
	Message string   `json:"message"`
	Files   []string `json:"files"`
}

// ResultView is the fully projected, display-ready result payload. Every
// field is resolved with defaults applied, so views can render it without
// nil checks or placeholder logic of their own.
type ResultView struct {
	JobID     string     `json:"job_id"`
	Triage    TriageView `json:"triage"`
	Note      NoteView   `json:"note"`
	Citations []Citation `json:"citations"`
	QC        QCView     `json:"qc"`
}

// Result document field paths. JMESPath expressions keep the extraction
// declarative and tolerant of missing subtrees (absent paths yield nil,
// not an error).
const (
	pathRiskTier   = "triage.risk_tier"
	pathConfidence = "triage.confidence_score"
	pathRationale  = "triage.key_rationale"
	pathPatientAge = "note.patient_info.age"
	pathPatientSex = "note.patient_info.sex"
	pathMoCATotal  = "note.patient_info.moca_total"
	pathLeftVolume = "note.imaging_findings.hippocampal_volumes_ml.left_ml"
	pathRightVol   = "note.imaging_findings.hippocampal_volumes_ml.right_ml"
	pathAsymmetry  = "note.imaging_findings.hippocampal_volumes_ml.asymmetry_ml"
	pathMTAScore   = "note.imaging_findings.mta_score"
	pathLeftPct    = "note.imaging_findings.percentiles.left_pct"
	pathRightPct   = "note.imaging_findings.percentiles.right_pct"
	pathRecs       = "note.recommendations"
	pathLimits     = "note.limitations"
	pathCitations  = "citations"
	pathQCMessage  = "qc.message"
	pathQCFiles    = "qc.files"
)

// ProjectResult projects a raw result document into a display-ready view.
// A nil or unparseable document yields a view with every field defaulted;
// this function never fails on shape problems.
func ProjectResult(jobID string, raw json.RawMessage) *ResultView {
	var doc any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc); err != nil {
			doc = nil
		}
	}

	view := &ResultView{
		JobID: jobID,
		Triage: TriageView{
			RiskTier:  ParseRiskTier(searchString(doc, pathRiskTier, "")),
			Rationale: searchStrings(doc, pathRationale),
		},
		Note: NoteView{
			Patient: PatientView{
				Age:  searchNumber(doc, pathPatientAge),
				Sex:  searchString(doc, pathPatientSex, Placeholder),
				MoCA: searchNumber(doc, pathMoCATotal),
			},
			Imaging: ImagingView{
				LeftVolumeML:    searchVolume(doc, pathLeftVolume),
				RightVolumeML:   searchVolume(doc, pathRightVol),
				AsymmetryML:     searchVolume(doc, pathAsymmetry),
				MTAScore:        searchNumber(doc, pathMTAScore),
				LeftPercentile:  searchPercentile(doc, pathLeftPct),
				RightPercentile: searchPercentile(doc, pathRightPct),
			},
			Recommendations: searchStrings(doc, pathRecs),
			Limitations:     searchStrings(doc, pathLimits),
		},
		Citations: searchCitations(doc, pathCitations),
		QC: QCView{
			Message: searchString(doc, pathQCMessage, Placeholder),
			Files:   searchStrings(doc, pathQCFiles),
		},
	}

	if conf, ok := searchFloat(doc, pathConfidence); ok && conf >= 0 && conf <= 1 {
		view.Triage.Confidence = conf
		view.Triage.HasConfidence = true
	}

	return view
}

// searchString extracts a string at path, or def when absent or mistyped.
func searchString(doc any, path, def string) string {
	v, err := jmespath.Search(path, doc)
	if err != nil || v == nil {
		return def
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return def
	}
	return s
}

// searchFloat extracts a numeric value at path.
func searchFloat(doc any, path string) (float64, bool) {
	v, err := jmespath.Search(path, doc)
	if err != nil || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, convErr := n.Float64()
		return f, convErr == nil
	default:
		return 0, false
	}
}

// searchNumber extracts a numeric value formatted for display, trimming
// trailing zeros so ages render as "68" rather than "68.00".
func searchNumber(doc any, path string) string {
	f, ok := searchFloat(doc, path)
	if !ok {
		return Placeholder
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// searchVolume extracts a millilitre volume with two-decimal display.
func searchVolume(doc any, path string) VolumeView {
	f, ok := searchFloat(doc, path)
	if !ok {
		return VolumeView{Display: Placeholder}
	}
	return VolumeView{
		Display: fmt.Sprintf("%.2f mL", f),
		Value:   f,
		Known:   true,
	}
}

// searchPercentile formats a percentile reading ("34th percentile" source
// data arrives as a bare number).
func searchPercentile(doc any, path string) string {
	f, ok := searchFloat(doc, path)
	if !ok {
		return Placeholder
	}
	return strconv.Itoa(int(f)) + "%"
}

// searchStrings extracts a list of strings, skipping non-string entries.
func searchStrings(doc any, path string) []string {
	v, err := jmespath.Search(path, doc)
	if err != nil || v == nil {
		return []string{}
	}
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, sok := item.(string); sok {
			out = append(out, s)
		}
	}
	return out
}

// searchCitations extracts the evidence citation list, defaulting each
// field individually so a partially populated citation still renders.
func searchCitations(doc any, path string) []Citation {
	v, err := jmespath.Search(path, doc)
	if err != nil || v == nil {
		return []Citation{}
	}
	items, ok := v.([]any)
	if !ok {
		return []Citation{}
	}
	out := make([]Citation, 0, len(items))
	for _, item := range items {
		entry, eok := item.(map[string]any)
		if !eok {
			continue
		}
		out = append(out, Citation{
			Title:    stringField(entry, "title", Placeholder),
			Source:   stringField(entry, "source", ""),
			Link:     stringField(entry, "link", ""),
			Strength: stringField(entry, "strength", ""),
		})
	}
	return out
}

func stringField(m map[string]any, key, def string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return def
}
