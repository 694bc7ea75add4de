// Package screening is the top of the stack: it renders a customer profile
// into the research prompt, drives the orchestration loop through the
// registered tools, and shapes the sanitized model output into a RiskReport.
package screening

import (
	"fmt"
	"time"

	"github.com/rosescout/rosescout/sanitize"
)

// Risk levels for organisms named in an order.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Biosafety levels. BSLUnknown is reported when the evidence does not
// support a classification; it is never silently defaulted by this package.
const (
	BSL1       = "BSL-1"
	BSL2       = "BSL-2"
	BSL3       = "BSL-3"
	BSL4       = "BSL-4"
	BSLUnknown = "Unknown"
)

// requiredFields is the fixed top-level key set of a screening report.
var requiredFields = []string{
	"current_role",
	"previous_roles",
	"organisms",
	"biosafety_level",
	"references",
	"summary",
	"timestamp",
}

// Organism is one organism referenced by the order, with the assessed risk
// of synthesizing DNA from it for this customer.
type Organism struct {
	Name      string `json:"name"`
	RiskLevel string `json:"risk_level"`
	Rationale string `json:"rationale,omitempty"`
}

// RiskReport is the structured screening verdict.
type RiskReport struct {
	CurrentRole    string               `json:"current_role"`
	PreviousRoles  []string             `json:"previous_roles"`
	Organisms      []Organism           `json:"organisms"`
	BiosafetyLevel string               `json:"biosafety_level"`
	References     []sanitize.Reference `json:"references"`
	Summary        string               `json:"summary"`
	Timestamp      string               `json:"timestamp"`
}

// Validate checks the enum fields and the timestamp format. Missing fields
// are not an error here; they are reported on the Outcome so callers can
// distinguish "model omitted it" from "model got it wrong".
func (r *RiskReport) Validate() error {
	for _, o := range r.Organisms {
		switch o.RiskLevel {
		case RiskLow, RiskMedium, RiskHigh:
		default:
			return fmt.Errorf("organism %q: invalid risk_level %q", o.Name, o.RiskLevel)
		}
	}
	switch r.BiosafetyLevel {
	case "", BSL1, BSL2, BSL3, BSL4, BSLUnknown:
	default:
		return fmt.Errorf("invalid biosafety_level %q", r.BiosafetyLevel)
	}
	if r.Timestamp != "" {
		if _, err := time.Parse(time.RFC3339, r.Timestamp); err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", r.Timestamp, err)
		}
	}
	return nil
}

// reportFromRecord maps a sanitized record onto the report type. Fields the
// model omitted stay zero; enum violations surface through Validate.
func reportFromRecord(rec *sanitize.Record) (*RiskReport, error) {
	var report RiskReport
	if _, err := rec.Field("current_role", &report.CurrentRole); err != nil {
		return nil, err
	}
	if _, err := rec.Field("previous_roles", &report.PreviousRoles); err != nil {
		return nil, err
	}
	if _, err := rec.Field("organisms", &report.Organisms); err != nil {
		return nil, err
	}
	if _, err := rec.Field("biosafety_level", &report.BiosafetyLevel); err != nil {
		return nil, err
	}
	if _, err := rec.Field("summary", &report.Summary); err != nil {
		return nil, err
	}
	if _, err := rec.Field("timestamp", &report.Timestamp); err != nil {
		return nil, err
	}
	report.References = rec.References
	return &report, nil
}
