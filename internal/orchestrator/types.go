package orchestrator

import "github.com/uaelegal/agent-coordinator/internal/retrieval"

// AssistantResult is the payload of a RESULT envelope replying to an
// assistant_workflow task.
type AssistantResult struct {
	ResponseText   string                `json:"response_text"`
	ConversationID string                `json:"conversation_id"`
	Citations      []retrieval.Citation  `json:"citations"`
	Nodes          []retrieval.Node      `json:"nodes"`
	Edges          []retrieval.Edge      `json:"edges"`
	Metadata       AssistantMetadata     `json:"metadata"`
}

// AssistantMetadata carries the strategy, merge quality signals and which
// agents contributed to the merged result.
type AssistantMetadata struct {
	Strategy   string   `json:"strategy"`
	Coverage   float64  `json:"coverage"`
	Confidence float64  `json:"confidence"`
	AgentsUsed []string `json:"agents_used"`
	Synthesis  string   `json:"synthesis,omitempty"`
}

// Contradiction is one detected conflict between two nodes.
type Contradiction struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Severity       string   `json:"severity"`
	Priority       string   `json:"priority"`
	Category       string   `json:"category"`
	Sources        []string `json:"sources"`
	Impact         string   `json:"impact"`
	Recommendation string   `json:"recommendation"`
}

// Harmonization is the fixed-shape suggestion paired with one contradiction.
type Harmonization struct {
	ContradictionID string `json:"contradiction_id"`
	Approach        string `json:"approach"`
	Sources         []string `json:"sources"`
}

// Recommendation is derived from a contradiction's severity via
// severityTable.
type Recommendation struct {
	ContradictionID string `json:"contradiction_id"`
	Priority        string `json:"priority"`
	Timeline        string `json:"timeline"`
	CostImpact      string `json:"cost_impact"`
	Action          string `json:"action"`
}

// AnalysisStats counts contradictions by severity.
type AnalysisStats struct {
	CriticalCount int `json:"critical_count"`
	HighCount     int `json:"high_count"`
	MediumCount   int `json:"medium_count"`
	LowCount      int `json:"low_count"`
}

// AnalysisResult is the payload of a RESULT envelope replying to an
// analysis_workflow task.
type AnalysisResult struct {
	Query           string                `json:"query"`
	Contradictions  []Contradiction       `json:"contradictions"`
	Recommendations []Recommendation      `json:"recommendations"`
	Summary         string                `json:"summary"`
	Confidence      float64               `json:"confidence"`
	Stats           AnalysisStats         `json:"stats"`
	Harmonizations  []Harmonization       `json:"harmonizations"`
	Citations       []retrieval.Citation  `json:"citations"`
}

// severityTable maps a contradiction's severity to its recommended
// priority, remediation timeline and cost impact.
var severityTable = map[string]struct {
	priority   string
	timeline   string
	costImpact string
}{
	"critical": {"high", "Immediate (7 days)", "Critical – immediate compliance costs"},
	"high":     {"high", "Short-term (30 days)", "High – compliance and harmonization costs"},
	"medium":   {"medium", "Medium-term (90 days)", "Medium – review and alignment costs"},
	"low":      {"low", "Long-term (180 days)", "Low – monitoring and review costs"},
}

// severityFromPriority derives a severity when a contradiction edge
// carries no explicit severity attribute of its own.
func severityFromPriority(priority string) string {
	switch priority {
	case "critical":
		return "critical"
	case "high":
		return "high"
	case "medium":
		return "medium"
	default:
		return "low"
	}
}
