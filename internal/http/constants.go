package httpx

// CurrentPage constants define the page identifiers used in templates and navigation.
// These constants ensure consistency across UI handlers and template mapping.
const (
	// Main navigation pages.
	PageHome      = "home"
	PageDashboard = "dashboard"

	// Case pages.
	PageCase            = "case"            // pipeline / progress view
	PageResults         = "results"         // triage summary and clinical note
	PageBrain           = "brain"           // hippocampal volume detail
	PageTrials          = "trials"          // matched clinical trials
	PageRecommendations = "recommendations" // recommendations and limitations
)

// MaxRecentCases caps the dashboard's recent case list.
const MaxRecentCases = 10

// Template paths used for loading templates in tests and production.
const (
	// Template directory paths.
	TemplatePathFromRoot = "frontend/templates"       // From project root
	TemplatePathFromTest = "../../frontend/templates" // From internal/http test files
)

// Content templates are defined once and reused to avoid per-call allocations.
//
//nolint:gochecknoglobals // static read-only lookup for templates; avoids per-call allocations
var contentTemplates = map[string]string{
	PageHome:            "dashboard-content", // Home page shows the dashboard
	PageDashboard:       "dashboard-content",
	PageCase:            "case-content",
	PageResults:         "results-content",
	PageBrain:           "brain-content",
	PageTrials:          "trials-content",
	PageRecommendations: "recommendations-content",
}

// ContentTemplateMap returns the mapping from CurrentPage to template name.
// This is the single source of truth for page-to-template mapping.
func ContentTemplateMap() map[string]string { return contentTemplates }

// ContentTemplateFor returns the content template for the given CurrentPage.
// Falls back to dashboard-content for unknown pages.
func ContentTemplateFor(currentPage string) string {
	if name, ok := ContentTemplateMap()[currentPage]; ok {
		return name
	}
	return "dashboard-content"
}
