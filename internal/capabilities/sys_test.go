package capabilities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRoomResolver struct {
	roomID string
	ok     bool
	err    error
}

func (s stubRoomResolver) Resolve(aliasOrID string) (string, bool, error) {
	return s.roomID, s.ok, s.err
}

func TestRandU64ReturnsDistinctValues(t *testing.T) {
	cap := NewSysCapability("linkify", stubRoomResolver{})

	a, err := cap.RandU64()
	require.NoError(t, err)
	b, err := cap.RandU64()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestResolveRoomDelegatesToResolver(t *testing.T) {
	cap := NewSysCapability("linkify", stubRoomResolver{roomID: "!room:example.org", ok: true})

	roomID, ok, err := cap.ResolveRoom("#general:example.org")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "!room:example.org", roomID)
}
