// Package audit records security events to the relational audit log and
// mirrors them to the optional stream, analytics, search and timeline stores.
package audit

import (
	"hybrid-auth-service/internal/models"
)

// Event is what callers hand to Recorder.Record. Empty optional ids are
// stored as NULL.
type Event struct {
	BusinessID string
	AdminID    string
	StaffID    string
	Action     string
	Severity   models.Severity
	IPAddress  string
	Details    map[string]interface{}
}

// PINFailureSeverity grades a failed PIN attempt by the failure count after
// the attempt. Reaching the threshold is a lockout; a second full streak after
// an expired lockout is critical.
func PINFailureSeverity(attempts, threshold int) models.Severity {
	switch {
	case threshold <= 0:
		return models.SeverityMedium
	case attempts >= 2*threshold:
		return models.SeverityCritical
	case attempts >= threshold:
		return models.SeverityHigh
	default:
		return models.SeverityMedium
	}
}

// AdminPINFailureSeverity grades a failed admin PIN. An admin credential
// guards shift control for the whole business, so every failure is high and
// reaching the lockout threshold is critical.
func AdminPINFailureSeverity(attempts, threshold int) models.Severity {
	if threshold > 0 && attempts >= threshold {
		return models.SeverityCritical
	}
	return models.SeverityHigh
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
