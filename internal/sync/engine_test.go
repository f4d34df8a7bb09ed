package sync

import (
	"context"
	"errors"
	"path/filepath"
	stdsync "sync"
	"testing"
	"time"

	"github.com/advisorhq/advisor-backend/internal/models"
)

// fakeRemote is an in-memory RemoteStore with switchable failure modes.
type fakeRemote struct {
	mu            stdsync.Mutex
	documents     map[string]models.Document
	conversations map[string]models.Conversation
	messages      map[string][]models.Message
	settings      *models.Settings
	failWrites    bool
	failReads     bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		documents:     map[string]models.Document{},
		conversations: map[string]models.Conversation{},
		messages:      map[string][]models.Message{},
	}
}

var errRemoteDown = errors.New("remote down")

func (f *fakeRemote) Ping(context.Context) error {
	if f.failReads {
		return errRemoteDown
	}
	return nil
}

func (f *fakeRemote) ListDocuments(context.Context, string) ([]models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return nil, errRemoteDown
	}
	var out []models.Document
	for _, d := range f.documents {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeRemote) UpsertDocument(_ context.Context, doc *models.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errRemoteDown
	}
	f.documents[doc.ID] = *doc
	return nil
}

func (f *fakeRemote) DeleteDocument(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errRemoteDown
	}
	delete(f.documents, id)
	return nil
}

func (f *fakeRemote) ListConversations(context.Context, string) ([]models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return nil, errRemoteDown
	}
	var out []models.Conversation
	for _, c := range f.conversations {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeRemote) UpsertConversation(_ context.Context, conv *models.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errRemoteDown
	}
	f.conversations[conv.ID] = *conv
	return nil
}

func (f *fakeRemote) ListMessages(_ context.Context, conversationID string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return nil, errRemoteDown
	}
	return append([]models.Message(nil), f.messages[conversationID]...), nil
}

func (f *fakeRemote) InsertMessages(_ context.Context, msgs []models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errRemoteDown
	}
	for _, m := range msgs {
		f.messages[m.ConversationID] = append(f.messages[m.ConversationID], m)
	}
	return nil
}

func (f *fakeRemote) GetSettings(context.Context, string) (*models.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return nil, errRemoteDown
	}
	if f.settings == nil {
		return nil, nil
	}
	cp := *f.settings
	return &cp, nil
}

func (f *fakeRemote) UpsertSettings(_ context.Context, s *models.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errRemoteDown
	}
	cp := *s
	f.settings = &cp
	return nil
}

func testEngine(t *testing.T, remote RemoteStore) *Engine {
	t.Helper()
	store, err := NewLocalStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	return NewEngine(store, remote, EngineConfig{
		UserID:       "user-1",
		CloudEnabled: true,
		QueueLimit:   10,
	})
}

func TestSyncAllOfflineLeavesQueueUntouched(t *testing.T) {
	e := testEngine(t, newFakeRemote())
	for i := 0; i < 3; i++ {
		if err := e.QueueMutation(OpUpsertDocument, models.Document{ID: "d"}); err != nil {
			t.Fatalf("queue: %v", err)
		}
	}

	res := e.SyncAll(context.Background())
	if res.Success {
		t.Fatal("offline sync must not succeed")
	}
	if res.Reason != "Sync not available" {
		t.Fatalf("reason = %q", res.Reason)
	}
	if e.queue.Len() != 3 {
		t.Fatalf("queue len = %d, want 3", e.queue.Len())
	}
}

func TestSyncAllUploadsLocalNewerAndPullsRemote(t *testing.T) {
	remote := newFakeRemote()
	remote.documents["shared"] = models.Document{ID: "shared", Name: "remote", UpdatedAt: t0}
	remote.documents["remote-only"] = models.Document{ID: "remote-only", Name: "r", UpdatedAt: t0}

	e := testEngine(t, remote)
	e.store.Update(func(s *LocalState) {
		s.Documents["shared"] = models.Document{ID: "shared", Name: "local", UpdatedAt: t1}
		s.Documents["local-only"] = models.Document{ID: "local-only", Name: "l", UpdatedAt: t0}
	})
	e.online.Store(true)

	res := e.SyncAll(context.Background())
	if !res.Success {
		t.Fatalf("sync failed: %s", res.Reason)
	}

	if remote.documents["shared"].Name != "local" {
		t.Fatalf("newer local not uploaded: %+v", remote.documents["shared"])
	}
	if _, ok := remote.documents["local-only"]; !ok {
		t.Fatal("local-only document not uploaded")
	}
	e.store.View(func(s *LocalState) {
		if _, ok := s.Documents["remote-only"]; !ok {
			t.Fatal("remote-only document not pulled into local state")
		}
	})
}

func TestSyncConversationsUploadsMissingMessagesOnly(t *testing.T) {
	remote := newFakeRemote()
	remote.conversations["c1"] = models.Conversation{ID: "c1", OwnerID: "user-1", UpdatedAt: t0}
	remote.messages["c1"] = []models.Message{
		{ID: "m1", ConversationID: "c1", Content: "remote version"},
	}

	e := testEngine(t, remote)
	e.store.Update(func(s *LocalState) {
		s.Conversations["c1"] = models.Conversation{ID: "c1", OwnerID: "user-1", UpdatedAt: t0}
		s.Messages["c1"] = []models.Message{
			{ID: "m1", ConversationID: "c1", Content: "local version, must not overwrite"},
			{ID: "m2", ConversationID: "c1", Content: "new local message"},
		}
	})
	e.online.Store(true)

	if res := e.SyncAll(context.Background()); !res.Success {
		t.Fatalf("sync failed: %s", res.Reason)
	}

	msgs := remote.messages["c1"]
	if len(msgs) != 2 {
		t.Fatalf("remote has %d messages, want 2", len(msgs))
	}
	for _, m := range msgs {
		if m.ID == "m1" && m.Content != "remote version" {
			t.Fatalf("existing remote message rewritten: %q", m.Content)
		}
	}
}

func TestSyncCycleErrorResetsInProgress(t *testing.T) {
	remote := newFakeRemote()
	remote.failReads = true

	e := testEngine(t, remote)
	e.online.Store(true)

	res := e.SyncAll(context.Background())
	if res.Success {
		t.Fatal("expected failure with remote reads down")
	}
	if e.inProgress.Load() {
		t.Fatal("inProgress stuck after a failed cycle")
	}

	// A later cycle must be able to run again.
	remote.failReads = false
	if res := e.SyncAll(context.Background()); !res.Success {
		t.Fatalf("recovery cycle failed: %s", res.Reason)
	}
}

func TestSyncFailedUploadIsQueuedAndReplayed(t *testing.T) {
	remote := newFakeRemote()
	e := testEngine(t, remote)
	e.store.Update(func(s *LocalState) {
		s.Documents["d1"] = models.Document{ID: "d1", Name: "doc", UpdatedAt: t1}
	})
	e.online.Store(true)

	remote.failWrites = true
	if res := e.SyncAll(context.Background()); !res.Success {
		t.Fatalf("cycle should succeed even when an upload is queued: %s", res.Reason)
	}
	if e.queue.Len() != 1 {
		t.Fatalf("failed upload not queued: len=%d", e.queue.Len())
	}

	remote.failWrites = false
	if res := e.SyncAll(context.Background()); !res.Success {
		t.Fatalf("replay cycle failed: %s", res.Reason)
	}
	if e.queue.Len() != 0 {
		t.Fatalf("queue not drained: len=%d", e.queue.Len())
	}
	if _, ok := remote.documents["d1"]; !ok {
		t.Fatal("queued upload never reached the remote")
	}
}

func TestEngineStatus(t *testing.T) {
	e := testEngine(t, newFakeRemote())
	_ = e.QueueMutation(OpUpsertDocument, models.Document{ID: "d"})

	st := e.Status()
	if st.IsOnline || st.IsSyncing {
		t.Fatalf("fresh engine reports wrong flags: %+v", st)
	}
	if st.PendingOperations != 1 {
		t.Fatalf("pending = %d, want 1", st.PendingOperations)
	}
	if !st.CloudEnabled {
		t.Fatal("cloud flag lost")
	}

	e.online.Store(true)
	if res := e.SyncAll(context.Background()); !res.Success {
		t.Fatalf("sync failed: %s", res.Reason)
	}
	st = e.Status()
	if st.PendingOperations != 0 {
		t.Fatalf("pending after drain = %d", st.PendingOperations)
	}
	if _, ok := st.LastSyncAt[CategoryDocuments]; !ok {
		t.Fatal("last sync timestamp not recorded")
	}
}

func TestSetOnlineTransitionTriggersFullSync(t *testing.T) {
	remote := newFakeRemote()
	e := testEngine(t, remote)
	e.store.Update(func(s *LocalState) {
		s.Documents["d1"] = models.Document{ID: "d1", Name: "doc", UpdatedAt: t1}
	})

	e.SetOnline(context.Background(), true)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		remote.mu.Lock()
		_, ok := remote.documents["d1"]
		remote.mu.Unlock()
		if ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("online transition did not trigger a sync")
}
