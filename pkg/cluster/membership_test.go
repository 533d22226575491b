package cluster

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qcache/config"
)

func resolverWith(t *testing.T, contents string) *config.Resolver {
	t.Helper()
	fs := afero.NewMemMapFs()
	if contents != "" {
		require.NoError(t, afero.WriteFile(fs, "/q"+config.ConfigFileSuffix, []byte(contents), 0o644))
	}
	return config.New("/q", config.WithFs(fs))
}

func TestMembershipFromResolver(t *testing.T) {
	r := resolverWith(t, "myid=2\nserver1=10.0.0.1:5001\nserver2=10.0.0.2:5002\nserver3=10.0.0.3:5003\n")

	m, err := FromResolver(r)
	require.NoError(t, err)

	assert.Equal(t, uint16(2), m.Self().ID)
	assert.Equal(t, 3, m.Size())
	assert.Equal(t, 2, m.Quorum())
	assert.Len(t, m.Members(), 3)

	peers := m.Peers()
	require.Len(t, peers, 2)
	assert.Equal(t, uint16(1), peers[0].ID)
	assert.Equal(t, uint16(3), peers[1].ID)

	assert.True(t, m.IsMember(3))
	assert.False(t, m.IsMember(4))
	n, ok := m.Node(3)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.3", n.IP)

	assert.Equal(t, RoleBootstrap, m.Role(1))
	assert.Equal(t, RoleVoter, m.Role(2))
	assert.False(t, m.IsBootstrap())
}

func TestMembershipQuorum(t *testing.T) {
	tests := []struct {
		contents string
		want     int
	}{
		{contents: "myid=0\nserver0=h:1\n", want: 1},
		{contents: "myid=0\nserver0=h:1\nserver1=h:2\n", want: 2},
		{contents: "myid=0\nserver0=h:1\nserver1=h:2\nserver2=h:3\nserver3=h:4\n", want: 3},
	}
	for _, tt := range tests {
		m, err := FromResolver(resolverWith(t, tt.contents))
		require.NoError(t, err)
		assert.Equal(t, tt.want, m.Quorum())
		assert.True(t, m.IsBootstrap())
	}
}

func TestFromResolverErrors(t *testing.T) {
	_, err := FromResolver(resolverWith(t, ""))
	assert.ErrorIs(t, err, config.ErrSourceUnavailable)

	_, err = FromResolver(resolverWith(t, "myid=9\nserver0=h:1\n"))
	assert.ErrorIs(t, err, ErrNoLocalNode)

	_, err = FromResolver(resolverWith(t, "myid=0\nserver0=h:x\n"))
	assert.ErrorIs(t, err, config.ErrMalformedEntry)
}
