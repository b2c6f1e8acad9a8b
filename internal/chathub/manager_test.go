package chathub_test

import (
	"encoding/json"
	"testing"
	"time"

	"campuslink/backend/internal/chathub"
	"campuslink/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestHub(s *MockStorage) *chathub.Hub {
	s.On("PublishEvent", mock.AnythingOfType("models.RemoteEvent")).Return(nil)
	engine := chathub.NewEngine(s, 64)
	return chathub.NewHub(s, engine)
}

func TestHub_RegisterUnregister(t *testing.T) {
	s := new(MockStorage)
	hub := newTestHub(s)
	s.On("UpdateUserLastSeen", "user_A", mock.AnythingOfType("time.Time")).Return(nil)

	go hub.Run()

	clientA := newMockClient("conn_a", "user_A")
	hub.RegisterCh <- clientA
	time.Sleep(100 * time.Millisecond)

	connID, ok := hub.Registry.Lookup("user_A")
	assert.True(t, ok)
	assert.Equal(t, "conn_a", connID)
	assert.True(t, hub.Groups.Contains("conn_a", chathub.UserGroup("user_A")))

	hub.UnregisterCh <- "conn_a"
	time.Sleep(100 * time.Millisecond)

	_, ok = hub.Registry.Lookup("user_A")
	assert.False(t, ok)
	s.AssertCalled(t, "UpdateUserLastSeen", "user_A", mock.AnythingOfType("time.Time"))
}

func TestHub_DoubleDisconnectBroadcastsOfflineOnce(t *testing.T) {
	s := new(MockStorage)
	hub := newTestHub(s)
	s.On("UpdateUserLastSeen", "user_A", mock.AnythingOfType("time.Time")).Return(nil)

	go hub.Run()

	clientA := newMockClient("conn_a", "user_A")
	clientB := newMockClient("conn_b", "user_B")
	hub.RegisterCh <- clientA
	hub.RegisterCh <- clientB
	time.Sleep(100 * time.Millisecond)
	drainEvents(clientB)

	// The read pump and a transport error can both report the same teardown.
	hub.UnregisterCh <- "conn_a"
	hub.UnregisterCh <- "conn_a"
	time.Sleep(100 * time.Millisecond)

	counts := drainEvents(clientB)
	assert.Equal(t, 1, counts[models.EvtUserOffline])
	s.AssertNumberOfCalls(t, "UpdateUserLastSeen", 1)
}

func TestHub_DisconnectImpliesChatPageLeave(t *testing.T) {
	s := new(MockStorage)
	hub := newTestHub(s)
	s.On("UpdateUserLastSeen", "user_A", mock.AnythingOfType("time.Time")).Return(nil)

	go hub.Run()

	clientA := newMockClient("conn_a", "user_A")
	clientB := newMockClient("conn_b", "user_B")
	hub.RegisterCh <- clientA
	hub.RegisterCh <- clientB
	time.Sleep(100 * time.Millisecond)

	hub.CommandCh <- chathub.Command{ConnID: "conn_a", UserID: "user_A", Event: models.EvtChatPageEnter}
	hub.CommandCh <- chathub.Command{ConnID: "conn_b", UserID: "user_B", Event: models.EvtChatPageEnter}
	time.Sleep(100 * time.Millisecond)
	drainEvents(clientB)

	hub.UnregisterCh <- "conn_a"
	time.Sleep(100 * time.Millisecond)

	counts := drainEvents(clientB)
	assert.Equal(t, 1, counts[models.EvtUserLeftChatPage])
	assert.Equal(t, 1, counts[models.EvtUserOffline])
	assert.False(t, hub.Presence.OnPage("user_A"))
}

func TestHub_SendMessageDispatch(t *testing.T) {
	s := new(MockStorage)
	hub := newTestHub(s)
	s.On("GetConversationByID", "room_1").Return(directConv("room_1", "user_A", "user_B"), nil)
	stubCreateMessage(s)

	go hub.Run()

	clientA := newMockClient("conn_a", "user_A")
	clientB := newMockClient("conn_b", "user_B")
	hub.RegisterCh <- clientA
	hub.RegisterCh <- clientB
	time.Sleep(100 * time.Millisecond)

	joinData := json.RawMessage(`{"conversationId":"room_1"}`)
	hub.CommandCh <- chathub.Command{ConnID: "conn_a", UserID: "user_A", Event: models.EvtJoinRoom, Data: joinData}
	hub.CommandCh <- chathub.Command{ConnID: "conn_b", UserID: "user_B", Event: models.EvtJoinRoom, Data: joinData}
	time.Sleep(100 * time.Millisecond)
	drainEvents(clientA)
	drainEvents(clientB)

	hub.CommandCh <- chathub.Command{
		ConnID: "conn_a",
		UserID: "user_A",
		Event:  models.EvtSendMessage,
		Data:   json.RawMessage(`{"conversationId":"room_1","content":"hello"}`),
	}
	time.Sleep(100 * time.Millisecond)

	countsB := drainEvents(clientB)
	assert.Equal(t, 1, countsB[models.EvtMessageReceived])

	// The sender gets the room copy plus the ack.
	countsA := drainEvents(clientA)
	assert.Equal(t, 1, countsA[models.EvtMessageReceived])
	assert.Equal(t, 1, countsA[models.EvtMessageSent])
}

func TestHub_JoinRoomRejectsNonParticipant(t *testing.T) {
	s := new(MockStorage)
	hub := newTestHub(s)
	s.On("GetConversationByID", "room_1").Return(directConv("room_1", "user_A", "user_B"), nil)

	go hub.Run()

	clientC := newMockClient("conn_c", "user_C")
	hub.RegisterCh <- clientC
	time.Sleep(100 * time.Millisecond)
	drainEvents(clientC)

	hub.CommandCh <- chathub.Command{
		ConnID: "conn_c",
		UserID: "user_C",
		Event:  models.EvtJoinRoom,
		Data:   json.RawMessage(`{"conversationId":"room_1"}`),
	}
	time.Sleep(100 * time.Millisecond)

	assert.False(t, hub.Groups.Contains("conn_c", chathub.RoomGroup("room_1")))

	// The failure goes back to the acting connection only.
	select {
	case ev := <-clientC.RecvChannel:
		require.Equal(t, models.EvtMessageError, ev.Event)
		payload := ev.Data.(models.ErrorPayload)
		assert.Equal(t, "forbidden", payload.Code)
	default:
		t.Error("clientC did not receive the error event")
	}
}

func TestHub_UserDeliveryFallsBackToUserGroup(t *testing.T) {
	s := new(MockStorage)
	hub := newTestHub(s)
	s.On("UpdateUserLastSeen", "user_A", mock.AnythingOfType("time.Time")).Return(nil)

	go hub.Run()

	// Two connections for one user: the second evicts the first from the
	// registry, but the first still sits in the user's broadcast group.
	conn1 := newMockClient("conn_1", "user_A")
	conn2 := newMockClient("conn_2", "user_A")
	hub.RegisterCh <- conn1
	hub.RegisterCh <- conn2
	time.Sleep(100 * time.Millisecond)

	hub.UnregisterCh <- "conn_2"
	time.Sleep(100 * time.Millisecond)
	drainEvents(conn1)

	_, ok := hub.Registry.Lookup("user_A")
	require.False(t, ok)
	assert.True(t, hub.Groups.Contains("conn_1", chathub.UserGroup("user_A")))

	hub.Deliver([]models.Emission{
		models.EmitToUser("user_A", models.EvtMessageSent, models.PresencePayload{UserID: "user_A"}),
	})
	time.Sleep(100 * time.Millisecond)

	counts := drainEvents(conn1)
	assert.Equal(t, 1, counts[models.EvtMessageSent])
}

func TestHub_UserDeliveryDropsForOfflineUser(t *testing.T) {
	s := new(MockStorage)
	hub := newTestHub(s)

	go hub.Run()

	clientA := newMockClient("conn_a", "user_A")
	hub.RegisterCh <- clientA
	time.Sleep(100 * time.Millisecond)
	drainEvents(clientA)

	hub.Deliver([]models.Emission{
		models.EmitToUser("user_offline", models.EvtMessageSent, models.PresencePayload{UserID: "user_offline"}),
	})
	time.Sleep(100 * time.Millisecond)

	assert.Empty(t, drainEvents(clientA))
}

func TestHub_CallRelay(t *testing.T) {
	s := new(MockStorage)
	hub := newTestHub(s)

	go hub.Run()

	clientA := newMockClient("conn_a", "user_A")
	clientB := newMockClient("conn_b", "user_B")
	hub.RegisterCh <- clientA
	hub.RegisterCh <- clientB
	time.Sleep(100 * time.Millisecond)
	drainEvents(clientA)
	drainEvents(clientB)

	hub.CommandCh <- chathub.Command{
		ConnID: "conn_a",
		UserID: "user_A",
		Event:  models.EvtCallUser,
		Data:   json.RawMessage(`{"toUserId":"user_B","callType":"video"}`),
	}
	time.Sleep(100 * time.Millisecond)

	select {
	case ev := <-clientB.RecvChannel:
		require.Equal(t, models.EvtIncomingCall, ev.Event)
		payload := ev.Data.(models.CallPayload)
		assert.Equal(t, "user_A", payload.FromUserID)
	default:
		t.Error("clientB did not receive the call event")
	}
}
