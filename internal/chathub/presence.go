package chathub

import (
	"sync"

	"campuslink/backend/internal/models"
)

// PresenceTracker holds the set of users currently on the messaging surface.
// Being on the chat page is distinct from being socket-connected: a user
// enters via an explicit signal and leaves via an explicit signal or abrupt
// disconnect.
type PresenceTracker struct {
	mu     sync.Mutex
	onPage map[string]bool
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{onPage: make(map[string]bool)}
}

// Enter adds userID to the chat-page set and returns the sync emissions:
// every prior member is told about the newcomer, and the newcomer is told
// about every prior member. The transport has no "who's here" query, so the
// sync has to be bilateral. A duplicate enter produces no emissions.
func (p *PresenceTracker) Enter(userID string) []models.Emission {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.onPage[userID] {
		return nil
	}

	var out []models.Emission
	for other := range p.onPage {
		out = append(out,
			models.EmitToUser(other, models.EvtUserOnChatPage, models.PresencePayload{UserID: userID}),
			models.EmitToUser(userID, models.EvtUserOnChatPage, models.PresencePayload{UserID: other}),
		)
	}
	p.onPage[userID] = true
	return out
}

// Leave removes userID from the set and notifies every remaining member.
// A duplicate leave produces no emissions.
func (p *PresenceTracker) Leave(userID string) []models.Emission {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.onPage[userID] {
		return nil
	}
	delete(p.onPage, userID)

	var out []models.Emission
	for other := range p.onPage {
		out = append(out, models.EmitToUser(other, models.EvtUserLeftChatPage, models.PresencePayload{UserID: userID}))
	}
	return out
}

// OnPage reports whether userID is currently on the chat page.
func (p *PresenceTracker) OnPage(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.onPage[userID]
}

// Count returns the number of users on the chat page.
func (p *PresenceTracker) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.onPage)
}
