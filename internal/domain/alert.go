package domain

// Severity classifies an alert. Precedence when composing is
// savings_opportunity > warning > info.
type Severity string

const (
	SeverityInfo               Severity = "info"
	SeverityWarning            Severity = "warning"
	SeveritySavingsOpportunity Severity = "savings_opportunity"
)

// Alert is a composed natural-language summary of upcoming subscription cost
// and cash-flow risk for one user.
type Alert struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}
