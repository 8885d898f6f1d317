package governance_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/graphrag/pkg/governance"
)

func TestEnsureResidency(t *testing.T) {
	require.NoError(t, governance.EnsureResidency(nil, ""))

	policy := &governance.Policy{ResidencyRegion: "eu-west-1"}
	require.NoError(t, governance.EnsureResidency(policy, "eu-west-1"))
	require.Error(t, governance.EnsureResidency(policy, ""))
	require.Error(t, governance.EnsureResidency(policy, "us-east-1"))
}

func TestRetentionUntil(t *testing.T) {
	require.Equal(t, int64(0), governance.RetentionUntil(nil, 1000))
	p := &governance.Policy{RetentionDays: 30}
	require.Equal(t, int64(1000+30*86400), governance.RetentionUntil(p, 1000))
}

func TestInMemoryStore(t *testing.T) {
	s := governance.NewInMemoryStore()
	_, ok := s.GetPolicy("acme")
	require.False(t, ok)

	s.SetPolicy("acme", governance.Policy{ResidencyRegion: "eu-west-1", RetentionDays: 90})
	p, ok := s.GetPolicy("acme")
	require.True(t, ok)
	require.Equal(t, "eu-west-1", p.ResidencyRegion)
}
