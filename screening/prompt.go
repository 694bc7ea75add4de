package screening

import (
	"fmt"
	"strings"
	"text/template"
)

// Profile is the customer under review, as captured from the order intake
// form. Empty fields are omitted from the rendered prompt.
type Profile struct {
	CustomerName string
	Organization string
	Address      string
	Country      string
	OrderDetails string
}

// Validate requires at least a customer name or organization to research.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.CustomerName) == "" && strings.TrimSpace(p.Organization) == "" {
		return fmt.Errorf("profile needs a customer name or an organization")
	}
	return nil
}

// SystemPrompt instructs the model on its role, its tools, and the exact
// JSON shape of the final answer.
const SystemPrompt = `You are a biosecurity screening analyst for a DNA synthesis provider. Your job is to research the customer described by the user and assess whether fulfilling their order poses a biosecurity risk.

Use the available tools to:
- search the web for the customer's publications, affiliations, and professional history
- verify the customer's address and its proximity to the stated institution
- check the customer and their organization against the Consolidated Screening List

Ground every claim in tool output and cite your sources.

When your research is complete, respond with a single JSON object and nothing else. Use exactly these keys:
{
  "current_role": "the customer's current position and affiliation",
  "previous_roles": ["prior positions, most recent first"],
  "organisms": [{"name": "organism in the order", "risk_level": "low|medium|high", "rationale": "why"}],
  "biosafety_level": "BSL-1|BSL-2|BSL-3|BSL-4|Unknown",
  "references": [{"source": "publisher or site name", "url": "https://...", "quote": "verbatim supporting quote"}],
  "summary": "one or two sentence overall assessment",
  "timestamp": "RFC 3339 time of this assessment"
}

If the evidence does not support a biosafety classification, use "Unknown". Do not invent references.`

var profileTemplate = template.Must(template.New("profile").Parse(
	`Screen the following DNA synthesis customer.
{{if .CustomerName}}
Customer name: {{.CustomerName}}{{end}}{{if .Organization}}
Organization: {{.Organization}}{{end}}{{if .Address}}
Address: {{.Address}}{{end}}{{if .Country}}
Country: {{.Country}}{{end}}{{if .OrderDetails}}
Order details: {{.OrderDetails}}{{end}}
`))

// RenderPrompt produces the user-turn text for a profile.
func RenderPrompt(p Profile) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	var b strings.Builder
	if err := profileTemplate.Execute(&b, p); err != nil {
		return "", fmt.Errorf("rendering profile prompt: %w", err)
	}
	return b.String(), nil
}
