package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectRoomIDIsOrderIndependent(t *testing.T) {
	assert.Equal(t, "room_u1_u2", DirectRoomID("u2", "u1"))
	assert.Equal(t, DirectRoomID("a", "b"), DirectRoomID("b", "a"))
}

func TestRoomTableJoinLeave(t *testing.T) {
	rt := NewRoomTable()
	rt.Join("r1", "b", "a", "a", "")
	rt.Join("r2", "a")

	assert.Equal(t, []string{"a", "b"}, rt.Members("r1"))
	assert.Equal(t, []string{"r1", "r2"}, rt.RoomsOf("a"))
	assert.True(t, rt.IsMember("r1", "b"))
	assert.False(t, rt.IsMember("r2", "b"))
	assert.Equal(t, 2, rt.Len())

	rt.Leave("r1", "b")
	assert.Equal(t, []string{"a"}, rt.Members("r1"))
	assert.Empty(t, rt.RoomsOf("b"))

	rt.Leave("r1", "a")
	assert.Nil(t, rt.Members("r1"))
	assert.Equal(t, []string{"r2"}, rt.RoomsOf("a"))

	// leaving twice or from unknown rooms is harmless
	rt.Leave("r1", "a")
	rt.Leave("nope", "a")
}

func TestRoomTableDrop(t *testing.T) {
	rt := NewRoomTable()
	rt.Join("r1", "a", "b")
	rt.Join("r2", "b")

	rt.Drop("r1")
	assert.Nil(t, rt.Members("r1"))
	assert.Empty(t, rt.RoomsOf("a"))
	assert.Equal(t, []string{"r2"}, rt.RoomsOf("b"))
	rt.Drop("r1")
}

// Ids that contain the separator still resolve correctly because
// membership is looked up, not parsed.
func TestMembershipDoesNotDependOnIDShape(t *testing.T) {
	rt := NewRoomTable()
	room := DirectRoomID("user_1", "user_2")
	rt.Join(room, "user_1", "user_2")

	assert.Equal(t, []string{"user_1", "user_2"}, rt.Members(room))
}

func TestMembersReturnsCopy(t *testing.T) {
	rt := NewRoomTable()
	rt.Join("r", "a", "b")
	m := rt.Members("r")
	m[0] = "zzz"
	assert.Equal(t, []string{"a", "b"}, rt.Members("r"))
}
