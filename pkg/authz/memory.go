package authz

// InMemoryAuthorizer implements Authorizer with a small, deterministic
// rule chain evaluated in the order the spec's Decision values are
// defined: tenant match, then attribute presence/match, then clearance.
type InMemoryAuthorizer struct{}

// NewInMemoryAuthorizer returns the default rule-chain authorizer.
func NewInMemoryAuthorizer() *InMemoryAuthorizer { return &InMemoryAuthorizer{} }

func (a *InMemoryAuthorizer) Authorize(p Principal, _ string, r Resource) Decision {
	if r.Tenant != "" && p.Tenant != r.Tenant {
		return TenantMismatch
	}
	if r.RequiredAttribute != "" {
		v, ok := p.Attributes[r.RequiredAttribute]
		if !ok {
			return MissingAttribute
		}
		if r.RequiredValue != "" && v != r.RequiredValue {
			return AttributeMismatch
		}
	}
	if r.RequiredClearance > 0 && p.Clearance < r.RequiredClearance {
		return InsufficientClearance
	}
	return Allowed
}
