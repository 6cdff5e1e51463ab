package policy

import (
	"time"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for errors that block writing the rendered output.
	SeverityError Severity = "error"

	// SeverityCritical is for violations that must be addressed immediately.
	SeverityCritical Severity = "critical"
)

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`
}

// Violation represents a single policy violation against a rendered
// record.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Record is the name of the output record that violated the policy.
	Record string `json:"record,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`

	// DetectedAt is when the violation was detected.
	DetectedAt time.Time `json:"detected_at"`
}

// Result represents the outcome of evaluating all policies over a
// rendered output set.
type Result struct {
	// Allowed indicates whether the output may be written. Error and
	// critical violations clear it.
	Allowed bool `json:"allowed"`

	// Violations lists all policy violations.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists evaluation problems that did not block.
	Warnings []string `json:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// EvaluatedAt is when the evaluation ran.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Input is the document handed to every Rego policy: one rendered record
// plus the graph it belongs to.
type Input struct {
	// Record is the rendered artifact under evaluation.
	Record *RecordInput `json:"record"`

	// Graph is the name of the graph the record was rendered from.
	Graph string `json:"graph"`

	// Timestamp is when the evaluation ran.
	Timestamp time.Time `json:"timestamp"`
}

// RecordInput is the policy-visible projection of an output record.
type RecordInput struct {
	Name        string                 `json:"name"`
	Data        interface{}            `json:"data"`
	Format      string                 `json:"format"`
	Annotations map[string]interface{} `json:"annotations,omitempty"`
	Plugins     []string               `json:"plugins,omitempty"`
}
