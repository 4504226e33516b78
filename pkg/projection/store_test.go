package projection_test

import (
	"reflect"
	"testing"

	"github.com/christiaan-bronkhorst/planning-poker-magnapp/internal/model/session"
	"github.com/christiaan-bronkhorst/planning-poker-magnapp/internal/service/registry"
	"github.com/christiaan-bronkhorst/planning-poker-magnapp/pkg/projection"
)

func user(id, name string) session.User {
	return session.User{ID: id, Name: name, Avatar: "cat"}
}

// runScenario drives a registry through a full estimation flow and returns
// the emitted event stream alongside the authoritative final snapshot.
func runScenario(t *testing.T) ([]session.Event, session.Snapshot) {
	t.Helper()

	var events []session.Event
	reg := registry.New(registry.Config{}, func(evt session.Event) {
		events = append(events, evt)
	})

	snap, err := reg.CreateSession("refinement", user("sm", "Ana"))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	for _, u := range []session.User{user("u1", "Ben"), user("u2", "Cara")} {
		if _, err := reg.JoinSession(snap.ID, u); err != nil {
			t.Fatalf("JoinSession %s: %v", u.ID, err)
		}
	}
	if _, err := reg.StartVotingRound(snap.ID); err != nil {
		t.Fatalf("StartVotingRound: %v", err)
	}
	if err := reg.SubmitVote(snap.ID, "sm", session.ValueFive); err != nil {
		t.Fatalf("SubmitVote sm: %v", err)
	}
	if err := reg.SubmitVote(snap.ID, "u1", session.ValueEight); err != nil {
		t.Fatalf("SubmitVote u1: %v", err)
	}
	if _, _, err := reg.RevealVotes(snap.ID); err != nil {
		t.Fatalf("RevealVotes: %v", err)
	}
	if _, err := reg.TransferScrumMaster(snap.ID, "sm", "u1"); err != nil {
		t.Fatalf("TransferScrumMaster: %v", err)
	}

	final, ok := reg.GetSession(snap.ID)
	if !ok {
		t.Fatalf("session disappeared")
	}
	return events, final
}

func TestStoreMirrorsEventStream(t *testing.T) {
	events, want := runScenario(t)

	store := projection.New()
	for _, evt := range events {
		store.Apply(evt)
	}

	got := store.Current()
	if got == nil {
		t.Fatalf("store has no session after applying the stream")
	}
	if !reflect.DeepEqual(*got, want) {
		t.Fatalf("mirrored snapshot diverged\n got: %+v\nwant: %+v", *got, want)
	}
	if len(store.Directory()) != 1 {
		t.Fatalf("directory = %d entries, want 1", len(store.Directory()))
	}
	votes, stats := store.RevealedVotes()
	if len(votes) != 2 {
		t.Fatalf("revealed votes = %d, want 2", len(votes))
	}
	if stats == nil || stats.TotalVotes != 2 {
		t.Fatalf("statistics = %+v, want 2 total votes", stats)
	}
}

func TestStoreReplayIsIdempotent(t *testing.T) {
	events, _ := runScenario(t)

	once := projection.New()
	for _, evt := range events {
		once.Apply(evt)
	}

	// A client that reconnects mid-stream sees a prefix again. The doubled
	// stream must land on the same state.
	twice := projection.New()
	for _, evt := range events {
		twice.Apply(evt)
	}
	for _, evt := range events {
		twice.Apply(evt)
	}

	if !reflect.DeepEqual(once.Current(), twice.Current()) {
		t.Fatalf("replay changed the mirrored session\n once: %+v\ntwice: %+v",
			once.Current(), twice.Current())
	}
	onceVotes, _ := once.RevealedVotes()
	twiceVotes, _ := twice.RevealedVotes()
	if len(onceVotes) != len(twiceVotes) {
		t.Fatalf("replay changed revealed votes: %d vs %d", len(onceVotes), len(twiceVotes))
	}
}

func TestStoreIgnoresOtherSessions(t *testing.T) {
	store := projection.New()

	snap := session.Snapshot{
		ID:            "mine",
		Name:          "sprint 12",
		ScrumMasterID: "sm",
		Users:         []session.User{{ID: "sm", Name: "Ana", IsConnected: true, IsScrumMaster: true}},
	}
	store.Apply(session.Event{Type: session.EventSessionUpdated, SessionID: "mine", Session: &snap})

	store.Apply(session.Event{
		Type:      session.EventUserJoined,
		SessionID: "other",
		User:      &session.User{ID: "intruder", Name: "Eve"},
	})
	store.Apply(session.Event{Type: session.EventSessionEnded, SessionID: "other", Reason: "gone"})

	got := store.Current()
	if got == nil {
		t.Fatalf("foreign sessionEnded cleared the mirrored session")
	}
	if len(got.Users) != 1 {
		t.Fatalf("foreign userJoined leaked into the roster: %+v", got.Users)
	}
}

func TestStoreSessionEndedClearsState(t *testing.T) {
	store := projection.New()
	snap := session.Snapshot{ID: "s1", Name: "x", Users: []session.User{{ID: "u1"}}}
	store.Apply(session.Event{Type: session.EventSessionUpdated, SessionID: "s1", Session: &snap})
	store.Apply(session.Event{Type: session.EventSessionEnded, SessionID: "s1", Reason: "session expired due to inactivity"})

	if store.Current() != nil {
		t.Fatalf("session still mirrored after sessionEnded")
	}
	if store.LastError() == "" {
		t.Fatalf("end reason was not recorded")
	}
}

func TestStorePauseAndResume(t *testing.T) {
	store := projection.New()
	snap := session.Snapshot{ID: "s1", Users: []session.User{{ID: "u1", IsConnected: true}}}
	store.Apply(session.Event{Type: session.EventSessionUpdated, SessionID: "s1", Session: &snap})

	store.Apply(session.Event{Type: session.EventSessionPaused, SessionID: "s1"})
	if got := store.Current(); !got.IsPaused {
		t.Fatalf("session not paused after sessionPaused")
	}
	store.Apply(session.Event{Type: session.EventSessionResumed, SessionID: "s1"})
	if got := store.Current(); got.IsPaused {
		t.Fatalf("session still paused after sessionResumed")
	}
}

func TestStoreExpiryWarning(t *testing.T) {
	store := projection.New()
	snap := session.Snapshot{ID: "s1"}
	store.Apply(session.Event{Type: session.EventSessionUpdated, SessionID: "s1", Session: &snap})
	store.Apply(session.Event{Type: session.EventSessionExpiring, SessionID: "s1", SecondsRemaining: 60})

	if got := store.ExpiringSeconds(); got != 60 {
		t.Fatalf("ExpiringSeconds = %d, want 60", got)
	}
}
