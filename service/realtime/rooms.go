package realtime

import (
	"sort"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"
)

// RoomTable is the explicit room membership record. Membership is only ever
// read from here, never recovered from the shape of a room id.
type RoomTable struct {
	members *xsync.Map[string, []string] // room -> sorted members
	rooms   *xsync.Map[string, []string] // member -> sorted rooms
}

func NewRoomTable() *RoomTable {
	return &RoomTable{
		members: xsync.NewMap[string, []string](),
		rooms:   xsync.NewMap[string, []string](),
	}
}

// DirectRoomID is the deterministic id of the room shared by two participants.
func DirectRoomID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return "room_" + strings.Join(ids, "_")
}

func (t *RoomTable) Join(room string, members ...string) {
	if room == "" {
		return
	}
	var added []string
	t.members.Compute(room, func(old []string, _ bool) ([]string, xsync.ComputeOp) {
		added = added[:0]
		next := old
		for _, m := range members {
			if m == "" {
				continue
			}
			var ok bool
			if next, ok = insertSorted(next, m); ok {
				added = append(added, m)
			}
		}
		if len(next) == 0 {
			return nil, xsync.CancelOp
		}
		return next, xsync.UpdateOp
	})
	for _, m := range added {
		t.rooms.Compute(m, func(old []string, _ bool) ([]string, xsync.ComputeOp) {
			next, _ := insertSorted(old, room)
			return next, xsync.UpdateOp
		})
	}
}

func (t *RoomTable) Leave(room, member string) {
	removed := false
	t.members.Compute(room, func(old []string, loaded bool) ([]string, xsync.ComputeOp) {
		if !loaded {
			return nil, xsync.CancelOp
		}
		var next []string
		next, removed = removeSorted(old, member)
		if len(next) == 0 {
			return nil, xsync.DeleteOp
		}
		return next, xsync.UpdateOp
	})
	if removed {
		t.forget(member, room)
	}
}

// Drop deletes the room and every back reference to it.
func (t *RoomTable) Drop(room string) {
	members, ok := t.members.LoadAndDelete(room)
	if !ok {
		return
	}
	for _, m := range members {
		t.forget(m, room)
	}
}

func (t *RoomTable) forget(member, room string) {
	t.rooms.Compute(member, func(old []string, loaded bool) ([]string, xsync.ComputeOp) {
		if !loaded {
			return nil, xsync.CancelOp
		}
		next, _ := removeSorted(old, room)
		if len(next) == 0 {
			return nil, xsync.DeleteOp
		}
		return next, xsync.UpdateOp
	})
}

func (t *RoomTable) Members(room string) []string {
	m, ok := t.members.Load(room)
	if !ok {
		return nil
	}
	return append([]string(nil), m...)
}

func (t *RoomTable) IsMember(room, member string) bool {
	m, ok := t.members.Load(room)
	if !ok {
		return false
	}
	i := sort.SearchStrings(m, member)
	return i < len(m) && m[i] == member
}

func (t *RoomTable) RoomsOf(member string) []string {
	r, ok := t.rooms.Load(member)
	if !ok {
		return nil
	}
	return append([]string(nil), r...)
}

func (t *RoomTable) Len() int {
	return t.members.Size()
}

// insertSorted never mutates s; slices stored in the maps are shared with readers.
func insertSorted(s []string, v string) ([]string, bool) {
	i := sort.SearchStrings(s, v)
	if i < len(s) && s[i] == v {
		return s, false
	}
	out := make([]string, 0, len(s)+1)
	out = append(out, s[:i]...)
	out = append(out, v)
	out = append(out, s[i:]...)
	return out, true
}

func removeSorted(s []string, v string) ([]string, bool) {
	i := sort.SearchStrings(s, v)
	if i >= len(s) || s[i] != v {
		return s, false
	}
	out := make([]string, 0, len(s)-1)
	out = append(out, s[:i]...)
	out = append(out, s[i+1:]...)
	return out, true
}
