package chat

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle-chat/backend/internal/dice"
	"chronicle-chat/backend/internal/models"
	"chronicle-chat/backend/internal/store"
	"chronicle-chat/backend/pkg/logger"
	"chronicle-chat/backend/shared/observability"
)

// fakeSender records every event it is handed. failing simulates a client
// whose send buffer is full.
type fakeSender struct {
	events  []Event
	failing bool
}

func (f *fakeSender) Send(ev Event) error {
	if f.failing {
		return assert.AnError
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeSender) typesSeen() []EventType {
	out := make([]EventType, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Type)
	}
	return out
}

func (f *fakeSender) lastOfType(t EventType) (Event, bool) {
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.events[i].Type == t {
			return f.events[i], true
		}
	}
	return Event{}, false
}

// scripted returns an intn source replaying fixed draws, so dice outcomes
// are deterministic.
func scripted(draws ...int) func(n int) int {
	i := 0
	return func(int) int {
		v := draws[i%len(draws)]
		i++
		return v
	}
}

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	dir := t.TempDir()

	profiles, err := store.NewProfileStore(filepath.Join(dir, "characters.json"))
	require.NoError(t, err)
	history, err := store.NewHistoryLog(filepath.Join(dir, "chat_history.json"))
	require.NoError(t, err)

	log := logger.New(logger.Config{Level: "error", JSON: true})
	registry := NewRegistry(profiles, testStoryteller)
	return NewCoordinator(registry, history, dice.NewEngine(), 15, log, observability.New())
}

func join(t *testing.T, c *Coordinator, connID, name string) *fakeSender {
	t.Helper()
	sender := &fakeSender{}
	c.Connect(connID, sender)
	c.Join(connID, JoinPayload{Name: name})
	return sender
}

func TestJoinReplaysStateToJoinerOnly(t *testing.T) {
	c := newTestCoordinator(t)

	alice := join(t, c, "conn-a", "Alice")
	c.SendMessage("conn-a", SendMessagePayload{Text: "first"})

	bob := join(t, c, "conn-b", "Bob")

	// The joiner gets history and roster
	historyEv, ok := bob.lastOfType(EventChatHistory)
	require.True(t, ok)
	msgs := historyEv.Payload.([]models.Message)
	require.Len(t, msgs, 1)
	assert.Equal(t, "first", msgs[0].Text)

	rosterEv, ok := bob.lastOfType(EventUsersList)
	require.True(t, ok)
	roster := rosterEv.Payload.([]models.Session)
	require.Len(t, roster, 2)
	assert.Equal(t, "Alice", roster[0].Name)
	assert.Equal(t, "Bob", roster[1].Name)

	// The joiner is announced to others, never to itself
	_, ok = alice.lastOfType(EventUserJoined)
	assert.True(t, ok)
	_, ok = bob.lastOfType(EventUserJoined)
	assert.False(t, ok)
}

func TestSendMessageReachesEverySender(t *testing.T) {
	c := newTestCoordinator(t)

	alice := join(t, c, "conn-a", "Alice")
	bob := join(t, c, "conn-b", "Bob")

	c.SendMessage("conn-a", SendMessagePayload{Text: "hello all"})

	for _, sender := range []*fakeSender{alice, bob} {
		ev, ok := sender.lastOfType(EventNewMessage)
		require.True(t, ok)
		msg := ev.Payload.(models.Message)
		assert.Equal(t, "hello all", msg.Text)
		assert.Equal(t, "Alice", msg.User.Name)
		assert.Equal(t, "conn-a", msg.User.ID)
	}
}

func TestAnonymousMessageBlanksIdentityKeepsAuthor(t *testing.T) {
	c := newTestCoordinator(t)

	join(t, c, "conn-a", testStoryteller)
	bob := join(t, c, "conn-b", "Bob")

	c.SendMessage("conn-a", SendMessagePayload{Text: "a voice from nowhere", SenderMode: "anonymous"})

	ev, ok := bob.lastOfType(EventNewMessage)
	require.True(t, ok)
	msg := ev.Payload.(models.Message)
	assert.Empty(t, msg.User.Name)
	assert.Empty(t, msg.User.Avatar)
	assert.Equal(t, "conn-a", msg.User.ID, "author identity is retained for edit checks")
	assert.Equal(t, models.SenderAnonymous, msg.SenderMode)
}

func TestCustomSenderSubstitutesNameAndAvatar(t *testing.T) {
	c := newTestCoordinator(t)

	bob := join(t, c, "conn-b", "Bob")
	join(t, c, "conn-a", testStoryteller)

	c.SendMessage("conn-a", SendMessagePayload{
		Text:         "the innkeeper waves",
		SenderMode:   "other",
		CustomSender: "Innkeeper",
	})

	ev, ok := bob.lastOfType(EventNewMessage)
	require.True(t, ok)
	msg := ev.Payload.(models.Message)
	assert.Equal(t, "Innkeeper", msg.User.Name)
	assert.Equal(t, models.DefaultAvatarURL, msg.User.Avatar)
	assert.Equal(t, "conn-a", msg.User.ID)
}

func TestCustomSenderWithoutNameFallsBackToSelf(t *testing.T) {
	c := newTestCoordinator(t)

	bob := join(t, c, "conn-b", "Bob")
	c.SendMessage("conn-b", SendMessagePayload{Text: "hi", SenderMode: "other"})

	ev, ok := bob.lastOfType(EventNewMessage)
	require.True(t, ok)
	msg := ev.Payload.(models.Message)
	assert.Equal(t, "Bob", msg.User.Name)
	assert.Equal(t, models.SenderSelf, msg.SenderMode)
}

func TestIntentsWithoutSessionAreDropped(t *testing.T) {
	c := newTestCoordinator(t)

	sender := &fakeSender{}
	c.Connect("conn-x", sender)

	c.SendMessage("conn-x", SendMessagePayload{Text: "ghost"})
	c.RollDice("conn-x", RollDicePayload{Count: 3})
	c.UpdateProfile("conn-x", UpdateProfilePayload{})

	assert.Empty(t, sender.events)
}

func TestSendFileCarriesAttachment(t *testing.T) {
	c := newTestCoordinator(t)

	alice := join(t, c, "conn-a", "Alice")
	c.SendFile("conn-a", SendFilePayload{
		Filename:    "1700000000000-map.png",
		OriginalURL: "/uploads/1700000000000-map.png",
		DisplayName: "map.png",
	})

	ev, ok := alice.lastOfType(EventNewMessage)
	require.True(t, ok)
	msg := ev.Payload.(models.Message)
	assert.Equal(t, models.MessageTypeFile, msg.Type)
	require.NotNil(t, msg.File)
	assert.Equal(t, "/uploads/1700000000000-map.png", msg.File.OriginalURL)
	assert.Equal(t, "map.png", msg.File.DisplayName)
}

func TestRollDiceProducesDiceMessage(t *testing.T) {
	c := newTestCoordinator(t)
	// Scripted rolls: 10, 7, 3 then the bonus draw 9
	c.engine = dice.NewEngineWithSource(scripted(9, 6, 2, 8))

	alice := join(t, c, "conn-a", "Alice")
	c.RollDice("conn-a", RollDicePayload{Count: 3})

	ev, ok := alice.lastOfType(EventNewMessage)
	require.True(t, ok)
	msg := ev.Payload.(models.Message)
	assert.Equal(t, models.MessageTypeDice, msg.Type)
	assert.Equal(t, 3, msg.DiceCount)
	require.NotNil(t, msg.RollResult)
	assert.Equal(t, []int{10, 7, 3}, msg.RollResult.Initial)
	assert.Equal(t, []int{9}, msg.RollResult.Extra)
	assert.Equal(t, 2, msg.RollResult.TotalSuccesses)
}

func TestRollDiceCountOutOfRangeDropped(t *testing.T) {
	c := newTestCoordinator(t)

	alice := join(t, c, "conn-a", "Alice")
	before := len(alice.events)

	c.RollDice("conn-a", RollDicePayload{Count: 0})
	c.RollDice("conn-a", RollDicePayload{Count: 16})

	assert.Len(t, alice.events, before)
}

func TestEditByAuthorRewritesMessage(t *testing.T) {
	c := newTestCoordinator(t)

	alice := join(t, c, "conn-a", "Alice")
	c.SendMessage("conn-a", SendMessagePayload{Text: "typo"})
	ev, _ := alice.lastOfType(EventNewMessage)
	id := ev.Payload.(models.Message).ID

	c.EditMessage("conn-a", EditMessagePayload{MessageID: id, NewText: "fixed"})

	edited, ok := alice.lastOfType(EventMessageEdited)
	require.True(t, ok)
	msg := edited.Payload.(models.Message)
	assert.Equal(t, "fixed", msg.Text)
	assert.True(t, msg.Edited)
	assert.Equal(t, "Alice", msg.EditedBy)
	require.NotNil(t, msg.EditTimestamp)
}

func TestEditByStrangerDenied(t *testing.T) {
	c := newTestCoordinator(t)

	alice := join(t, c, "conn-a", "Alice")
	bob := join(t, c, "conn-b", "Bob")

	c.SendMessage("conn-a", SendMessagePayload{Text: "mine"})
	ev, _ := alice.lastOfType(EventNewMessage)
	id := ev.Payload.(models.Message).ID

	c.EditMessage("conn-b", EditMessagePayload{MessageID: id, NewText: "hijacked"})

	_, ok := bob.lastOfType(EventMessageEdited)
	assert.False(t, ok)
	stored, found := c.history.Get(id)
	require.True(t, found)
	assert.Equal(t, "mine", stored.Text)
}

func TestEditByStorytellerAllowedOnAnyMessage(t *testing.T) {
	c := newTestCoordinator(t)

	alice := join(t, c, "conn-a", "Alice")
	join(t, c, "conn-s", testStoryteller)

	c.SendMessage("conn-a", SendMessagePayload{Text: "player text"})
	ev, _ := alice.lastOfType(EventNewMessage)
	id := ev.Payload.(models.Message).ID

	c.EditMessage("conn-s", EditMessagePayload{MessageID: id, NewText: "narrated over"})

	edited, ok := alice.lastOfType(EventMessageEdited)
	require.True(t, ok)
	msg := edited.Payload.(models.Message)
	assert.Equal(t, "narrated over", msg.Text)
	assert.Equal(t, testStoryteller, msg.EditedBy)
}

func TestEditAuthorizationFollowsConnectionNotDisplayName(t *testing.T) {
	c := newTestCoordinator(t)

	alice := join(t, c, "conn-a", "Alice")
	bob := join(t, c, "conn-b", "Bob")

	// Anonymous message still belongs to conn-a
	c.SendMessage("conn-a", SendMessagePayload{Text: "whisper", SenderMode: "anonymous"})
	ev, _ := alice.lastOfType(EventNewMessage)
	id := ev.Payload.(models.Message).ID

	c.EditMessage("conn-b", EditMessagePayload{MessageID: id, NewText: "stolen"})
	_, ok := bob.lastOfType(EventMessageEdited)
	assert.False(t, ok)

	c.EditMessage("conn-a", EditMessagePayload{MessageID: id, NewText: "louder whisper"})
	edited, ok := alice.lastOfType(EventMessageEdited)
	require.True(t, ok)
	assert.Equal(t, "louder whisper", edited.Payload.(models.Message).Text)
}

func TestEditMissingMessageDropped(t *testing.T) {
	c := newTestCoordinator(t)

	alice := join(t, c, "conn-a", "Alice")
	before := len(alice.events)

	c.EditMessage("conn-a", EditMessagePayload{MessageID: "no-such-id", NewText: "x"})
	assert.Len(t, alice.events, before)
}

func TestUpdateProfileBroadcastsToEveryone(t *testing.T) {
	c := newTestCoordinator(t)

	alice := join(t, c, "conn-a", "Alice")
	bob := join(t, c, "conn-b", "Bob")

	c.UpdateProfile("conn-a", UpdateProfilePayload{Description: strPtr("tall, scarred")})

	for _, sender := range []*fakeSender{alice, bob} {
		ev, ok := sender.lastOfType(EventUserUpdated)
		require.True(t, ok)
		session := ev.Payload.(models.Session)
		assert.Equal(t, "Alice", session.Name)
		assert.Equal(t, "tall, scarred", session.Description)
	}
}

func TestDisconnectAnnouncesDepartureToOthers(t *testing.T) {
	c := newTestCoordinator(t)

	alice := join(t, c, "conn-a", "Alice")
	bob := join(t, c, "conn-b", "Bob")

	c.Disconnect("conn-b")

	ev, ok := alice.lastOfType(EventUserLeft)
	require.True(t, ok)
	assert.Equal(t, "conn-b", ev.Payload)

	_, ok = bob.lastOfType(EventUserLeft)
	assert.False(t, ok)
	assert.Equal(t, 1, c.ClientCount())
}

func TestLogoutKeepsConnectionForRejoin(t *testing.T) {
	c := newTestCoordinator(t)

	join(t, c, "conn-a", "Alice")
	bob := join(t, c, "conn-b", "Bob")

	c.Logout("conn-a")
	require.Equal(t, 2, c.ClientCount())

	ev, ok := bob.lastOfType(EventUserLeft)
	require.True(t, ok)
	assert.Equal(t, "conn-a", ev.Payload)

	// Same connection joins again under a new name
	c.Join("conn-a", JoinPayload{Name: "Alya"})
	joined, ok := bob.lastOfType(EventUserJoined)
	require.True(t, ok)
	assert.Equal(t, "Alya", joined.Payload.(models.Session).Name)
}

func TestBroadcastFailureIsIsolated(t *testing.T) {
	c := newTestCoordinator(t)

	alice := join(t, c, "conn-a", "Alice")

	broken := &fakeSender{failing: true}
	c.Connect("conn-x", broken)

	c.SendMessage("conn-a", SendMessagePayload{Text: "still delivered"})

	ev, ok := alice.lastOfType(EventNewMessage)
	require.True(t, ok)
	assert.Equal(t, "still delivered", ev.Payload.(models.Message).Text)
}

func TestInterleavedSendsObservedInOneOrderEverywhere(t *testing.T) {
	c := newTestCoordinator(t)

	alice := join(t, c, "conn-a", "Alice")
	bob := join(t, c, "conn-b", "Bob")

	want := make([]string, 0, 20)
	for i := 0; i < 10; i++ {
		fromA := fmt.Sprintf("a-%d", i)
		fromB := fmt.Sprintf("b-%d", i)
		c.SendMessage("conn-a", SendMessagePayload{Text: fromA})
		c.SendMessage("conn-b", SendMessagePayload{Text: fromB})
		want = append(want, fromA, fromB)
	}

	texts := func(s *fakeSender) []string {
		out := make([]string, 0, len(s.events))
		for _, ev := range s.events {
			if ev.Type == EventNewMessage {
				out = append(out, ev.Payload.(models.Message).Text)
			}
		}
		return out
	}

	// Every receiver sees the append order, regardless of author
	assert.Equal(t, want, texts(alice))
	assert.Equal(t, want, texts(bob))

	stored := make([]string, 0, len(want))
	for _, msg := range c.history.All() {
		stored = append(stored, msg.Text)
	}
	assert.Equal(t, want, stored)
}

func TestPersistenceFailureAbortsBeforeBroadcast(t *testing.T) {
	dir := t.TempDir()
	profiles, err := store.NewProfileStore(filepath.Join(dir, "characters.json"))
	require.NoError(t, err)

	historyDir := filepath.Join(dir, "history")
	history, err := store.NewHistoryLog(filepath.Join(historyDir, "chat_history.json"))
	require.NoError(t, err)

	log := logger.New(logger.Config{Level: "error", JSON: true})
	c := NewCoordinator(NewRegistry(profiles, testStoryteller), history, dice.NewEngine(), 15, log, observability.New())

	alice := join(t, c, "conn-a", "Alice")
	c.SendMessage("conn-a", SendMessagePayload{Text: "persisted"})
	ev, _ := alice.lastOfType(EventNewMessage)
	id := ev.Payload.(models.Message).ID

	// Take the history directory away so the next flush cannot land
	require.NoError(t, os.RemoveAll(historyDir))
	before := len(alice.events)

	c.SendMessage("conn-a", SendMessagePayload{Text: "lost"})
	assert.Len(t, alice.events, before, "nothing may be broadcast for an unpersisted message")
	assert.Equal(t, 1, c.history.Len(), "the staged append must be rolled back")

	c.EditMessage("conn-a", EditMessagePayload{MessageID: id, NewText: "rewritten"})
	_, edited := alice.lastOfType(EventMessageEdited)
	assert.False(t, edited, "nothing may be broadcast for an unpersisted edit")
	stored, ok := c.history.Get(id)
	require.True(t, ok)
	assert.Equal(t, "persisted", stored.Text)
}

func TestMessageIDsSurviveClockStepBack(t *testing.T) {
	c := newTestCoordinator(t)

	base := time.Now()
	seen := map[string]bool{
		c.nextMessageID(base): true,
	}

	// The clock steps backward; ids keep advancing under the last floor
	for i := 1; i <= 5; i++ {
		id := c.nextMessageID(base.Add(-time.Duration(i) * time.Millisecond))
		assert.False(t, seen[id], "duplicate message id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, 6)
}

func TestMessageIDsAreUnique(t *testing.T) {
	c := newTestCoordinator(t)

	alice := join(t, c, "conn-a", "Alice")
	for i := 0; i < 50; i++ {
		c.SendMessage("conn-a", SendMessagePayload{Text: "burst"})
	}

	seen := make(map[string]bool)
	for _, ev := range alice.events {
		if ev.Type != EventNewMessage {
			continue
		}
		id := ev.Payload.(models.Message).ID
		assert.False(t, seen[id], "duplicate message id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, 50)
}
