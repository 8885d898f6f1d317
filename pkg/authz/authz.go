// Package authz defines the Authorizer contract the ingestion pipeline and
// query engine consult before acting on a request, plus a reference
// in-memory implementation for tests and small deployments. Real
// deployments are expected to supply an Authorizer backed by JWT/RBAC/ABAC
// infrastructure, which is explicitly out of scope for this repository
// (spec §1).
package authz

import "github.com/cuemby/graphrag/pkg/rerr"

// Decision is the result of an authorization check.
type Decision string

const (
	Allowed              Decision = "ok"
	Denied               Decision = "denied"
	TenantMismatch       Decision = "tenant_mismatch"
	MissingAttribute     Decision = "missing_attribute"
	AttributeMismatch    Decision = "attribute_mismatch"
	InsufficientClearance Decision = "insufficient_clearance"
)

// Principal identifies who is making a request.
type Principal struct {
	ID         string
	Tenant     string
	Clearance  int
	Attributes map[string]string
}

// Authorizer decides whether a principal may perform action on resource.
type Authorizer interface {
	Authorize(principal Principal, action string, resource Resource) Decision
}

// Resource is the target of an authorization check.
type Resource struct {
	Tenant             string
	RequiredAttribute  string
	RequiredValue      string
	RequiredClearance  int
}

// DecisionError converts a non-Allowed Decision into a tagged error.
func DecisionError(d Decision) error {
	if d == Allowed {
		return nil
	}
	return rerr.Newf(rerr.Unauthorized, "authz.Authorize", "denied: %s", d)
}
