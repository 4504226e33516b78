package ws_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/christiaan-bronkhorst/planning-poker-magnapp/internal/handler/ws"
	model "github.com/christiaan-bronkhorst/planning-poker-magnapp/internal/model/session"
	"github.com/christiaan-bronkhorst/planning-poker-magnapp/internal/service/hub"
	"github.com/christiaan-bronkhorst/planning-poker-magnapp/internal/service/registry"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	h := hub.New()
	reg := registry.New(registry.Config{}, h.Publish)
	r := chi.NewRouter()
	ws.New(reg, h).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendAction(t *testing.T, conn *websocket.Conn, action string, data interface{}) {
	t.Helper()

	msg := map[string]interface{}{
		"type":      action,
		"data":      data,
		"timestamp": time.Now().UnixMilli(),
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("send %s: %v", action, err)
	}
}

// waitFor reads events until one of the wanted type arrives, skipping
// unrelated broadcasts such as directory updates.
func waitFor(t *testing.T, conn *websocket.Conn, want model.EventType) model.Event {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var evt model.Event
		if err := conn.ReadJSON(&evt); err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if evt.Type == want {
			return evt
		}
	}
}

func createOverSocket(t *testing.T, conn *websocket.Conn, name, userID, userName string) model.Snapshot {
	t.Helper()

	sendAction(t, conn, "createSession", map[string]interface{}{
		"name": name,
		"user": map[string]string{"id": userID, "name": userName, "avatar": "fox"},
	})
	evt := waitFor(t, conn, model.EventSessionUpdated)
	if evt.Session == nil {
		t.Fatalf("sessionUpdated carried no snapshot")
	}
	return *evt.Session
}

func TestCreateSessionOverSocket(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv)

	snap := createOverSocket(t, conn, "refinement", "sm", "Ana")
	if snap.ScrumMasterID != "sm" || len(snap.Users) != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestJoinBroadcastsToRoom(t *testing.T) {
	srv := newTestServer(t)
	creator := dial(t, srv)
	joiner := dial(t, srv)

	snap := createOverSocket(t, creator, "refinement", "sm", "Ana")

	sendAction(t, joiner, "joinSession", map[string]interface{}{
		"sessionId": snap.ID,
		"user":      map[string]string{"id": "u1", "name": "Ben", "avatar": "dog"},
	})

	evt := waitFor(t, creator, model.EventUserJoined)
	if evt.User == nil || evt.User.ID != "u1" {
		t.Fatalf("unexpected userJoined payload: %+v", evt)
	}
	evt = waitFor(t, joiner, model.EventSessionUpdated)
	if evt.Session == nil || len(evt.Session.Users) != 2 {
		t.Fatalf("joiner snapshot roster wrong: %+v", evt.Session)
	}
}

func TestVotingOverSocket(t *testing.T) {
	srv := newTestServer(t)
	creator := dial(t, srv)
	joiner := dial(t, srv)

	snap := createOverSocket(t, creator, "refinement", "sm", "Ana")
	sendAction(t, joiner, "joinSession", map[string]interface{}{
		"sessionId": snap.ID,
		"user":      map[string]string{"id": "u1", "name": "Ben"},
	})
	waitFor(t, joiner, model.EventSessionUpdated)

	// Only the Scrum Master may open a round.
	sendAction(t, joiner, "startVoting", nil)
	if evt := waitFor(t, joiner, model.EventError); evt.Reason == "" {
		t.Fatalf("error event without a reason: %+v", evt)
	}

	sendAction(t, creator, "startVoting", nil)
	waitFor(t, creator, model.EventVotingStarted)
	waitFor(t, joiner, model.EventVotingStarted)

	sendAction(t, joiner, "submitVote", map[string]string{"value": "5"})
	evt := waitFor(t, creator, model.EventVoteSubmitted)
	if evt.UserID != "u1" {
		t.Fatalf("voteSubmitted for %q, want u1", evt.UserID)
	}

	sendAction(t, creator, "submitVote", map[string]string{"value": "5"})
	waitFor(t, creator, model.EventVoteSubmitted)

	sendAction(t, creator, "revealVotes", nil)
	revealed := waitFor(t, joiner, model.EventVotesRevealed)
	if len(revealed.Votes) != 2 {
		t.Fatalf("revealed %d votes, want 2", len(revealed.Votes))
	}
	if revealed.Statistics == nil || !revealed.Statistics.HasConsensus {
		t.Fatalf("matching votes should be consensus: %+v", revealed.Statistics)
	}
}

func TestDroppedConnectionPausesNothingButConnectivity(t *testing.T) {
	srv := newTestServer(t)
	creator := dial(t, srv)
	joiner := dial(t, srv)

	snap := createOverSocket(t, creator, "refinement", "sm", "Ana")
	sendAction(t, joiner, "joinSession", map[string]interface{}{
		"sessionId": snap.ID,
		"user":      map[string]string{"id": "u1", "name": "Ben"},
	})
	waitFor(t, creator, model.EventUserJoined)

	// An abrupt close is a transport drop, not a leave: the room sees a
	// disconnect and the roster keeps the user.
	joiner.Close()

	waitFor(t, creator, model.EventUserDisconnected)
	evt := waitFor(t, creator, model.EventSessionUpdated)
	if evt.Session == nil || len(evt.Session.Users) != 2 {
		t.Fatalf("drop must keep membership, roster: %+v", evt.Session)
	}
	for _, u := range evt.Session.Users {
		if u.ID == "u1" && u.IsConnected {
			t.Fatalf("dropped user still marked connected")
		}
	}
}

func TestLeaveRemovesMembership(t *testing.T) {
	srv := newTestServer(t)
	creator := dial(t, srv)
	joiner := dial(t, srv)

	snap := createOverSocket(t, creator, "refinement", "sm", "Ana")
	sendAction(t, joiner, "joinSession", map[string]interface{}{
		"sessionId": snap.ID,
		"user":      map[string]string{"id": "u1", "name": "Ben"},
	})
	waitFor(t, creator, model.EventUserJoined)

	sendAction(t, joiner, "leaveSession", nil)

	evt := waitFor(t, creator, model.EventUserLeft)
	if evt.UserID != "u1" {
		t.Fatalf("userLeft for %q, want u1", evt.UserID)
	}
	evt = waitFor(t, creator, model.EventSessionUpdated)
	if evt.Session == nil || len(evt.Session.Users) != 1 {
		t.Fatalf("leave must remove membership, roster: %+v", evt.Session)
	}
}
