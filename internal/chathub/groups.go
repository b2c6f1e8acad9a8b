package chathub

import "sync"

// Group id prefixes. Room groups carry room-scoped broadcasts; every
// connection also auto-joins its own user group at registration, which is
// the fallback path when a direct registry lookup misses.
const (
	roomGroupPrefix = "room:"
	userGroupPrefix = "user:"
)

func RoomGroup(roomID string) string { return roomGroupPrefix + roomID }
func UserGroup(userID string) string { return userGroupPrefix + userID }

// GroupTable tracks which connections are subscribed to which broadcast
// groups, with mirror maps in both directions so disconnect cleanup is O(1)
// per membership.
type GroupTable struct {
	mu      sync.RWMutex
	members map[string]map[string]bool // group -> connIDs
	joined  map[string]map[string]bool // connID -> groups
}

func NewGroupTable() *GroupTable {
	return &GroupTable{
		members: make(map[string]map[string]bool),
		joined:  make(map[string]map[string]bool),
	}
}

// Join subscribes connID to group. Idempotent.
func (g *GroupTable) Join(connID, group string) {
	if connID == "" || group == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.members[group] == nil {
		g.members[group] = make(map[string]bool)
	}
	g.members[group][connID] = true

	if g.joined[connID] == nil {
		g.joined[connID] = make(map[string]bool)
	}
	g.joined[connID][group] = true
}

// Leave removes connID from group, dropping empty maps as it goes.
func (g *GroupTable) Leave(connID, group string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.leaveLocked(connID, group)
}

// LeaveAll removes connID from every group it joined. Safe on unknown ids.
func (g *GroupTable) LeaveAll(connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for group := range g.joined[connID] {
		g.leaveLocked(connID, group)
	}
}

func (g *GroupTable) leaveLocked(connID, group string) {
	if conns, ok := g.members[group]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(g.members, group)
		}
	}
	if groups, ok := g.joined[connID]; ok {
		delete(groups, group)
		if len(groups) == 0 {
			delete(g.joined, connID)
		}
	}
}

// Members returns the connection ids subscribed to group.
func (g *GroupTable) Members(group string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	conns := make([]string, 0, len(g.members[group]))
	for id := range g.members[group] {
		conns = append(conns, id)
	}
	return conns
}

// Contains reports whether connID is subscribed to group.
func (g *GroupTable) Contains(connID, group string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.joined[connID][group]
}
