// Package governance defines the tenant governance policy store the
// ingestion pipeline consults for data-residency enforcement and
// retention stamping (spec §6's governance contract). Like authz, a real
// store is an external collaborator; this package ships the interface and
// a reference in-memory implementation.
package governance

import "github.com/cuemby/graphrag/pkg/rerr"

// Encryption describes a tenant's at-rest encryption requirement.
type Encryption struct {
	AtRest   bool
	KMSKeyID string
}

// Policy is a tenant's governance configuration.
type Policy struct {
	ResidencyRegion string
	RetentionDays   int64
	Encryption      Encryption
}

// Store resolves a tenant id to its governance policy.
type Store interface {
	GetPolicy(tenant string) (*Policy, bool)
}

// EnsureResidency fails if policy requires a region and metadataRegion
// does not match it. An empty metadataRegion when a region is required is
// a governance violation, not a silent pass.
func EnsureResidency(policy *Policy, metadataRegion string) error {
	if policy == nil || policy.ResidencyRegion == "" {
		return nil
	}
	if metadataRegion == "" {
		return rerr.New(rerr.Governance, "governance.EnsureResidency", "residency region required but not provided")
	}
	if metadataRegion != policy.ResidencyRegion {
		return rerr.Newf(rerr.Governance, "governance.EnsureResidency", "residency mismatch: policy requires %q, got %q", policy.ResidencyRegion, metadataRegion)
	}
	return nil
}

// RetentionUntil computes the retention_until_unix stamp for a policy given
// the current unix time.
func RetentionUntil(policy *Policy, nowUnix int64) int64 {
	if policy == nil || policy.RetentionDays <= 0 {
		return 0
	}
	return nowUnix + policy.RetentionDays*86400
}
