package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// Mem is an in-memory implementation of every store interface. It backs
// unit tests and the no-persistence development mode. All methods are safe
// for concurrent use.
type Mem struct {
	mu            sync.RWMutex
	videos        map[string]Video
	videoOrder    []string
	comments      map[string]Comment
	settings      map[string]Setting
	conversations map[string]Conversation
	messages      map[string][]Message
	drafts        []Draft
	nextDraftID   int64
}

// Compile-time interface guards.
var (
	_ VideoStore        = (*Mem)(nil)
	_ CommentStore      = (*memComments)(nil)
	_ SettingStore      = (*memSettings)(nil)
	_ ConversationStore = (*Mem)(nil)
	_ DraftStore        = (*Mem)(nil)
)

// NewMem creates an empty in-memory store.
func NewMem() *Mem {
	return &Mem{
		videos:        make(map[string]Video),
		comments:      make(map[string]Comment),
		settings:      make(map[string]Setting),
		conversations: make(map[string]Conversation),
		messages:      make(map[string][]Message),
		nextDraftID:   1,
	}
}

// Insert implements VideoStore.
func (m *Mem) Insert(ctx context.Context, v Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.videos[v.VideoID]; exists {
		return ErrDuplicate
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	m.videos[v.VideoID] = v
	m.videoOrder = append(m.videoOrder, v.VideoID)
	return nil
}

// Get implements VideoStore.
func (m *Mem) Get(_ context.Context, videoID string) (Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.videos[videoID]
	if !ok {
		return Video{}, ErrNotFound
	}
	return v, nil
}

// List implements VideoStore.
func (m *Mem) List(_ context.Context) ([]Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Video, 0, len(m.videoOrder))
	for _, id := range m.videoOrder {
		result = append(result, m.videos[id])
	}
	return result, nil
}

// TouchLastChecked implements VideoStore.
func (m *Mem) TouchLastChecked(_ context.Context, videoID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.videos[videoID]
	if !ok {
		return ErrNotFound
	}
	v.LastCheckedAt = at
	m.videos[videoID] = v
	return nil
}

// Comments returns the CommentStore view of the in-memory store.
// CommentStore.Insert and VideoStore.Insert collide on method name, so the
// comment methods live on a separate view type over the same data.
func (m *Mem) Comments() CommentStore { return (*memComments)(m) }

type memComments Mem

func (m *memComments) Insert(_ context.Context, c Comment) error {
	mm := (*Mem)(m)
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if _, exists := mm.comments[c.CommentID]; exists {
		return ErrDuplicate
	}
	if c.Status == "" {
		c.Status = StatusPending
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	mm.comments[c.CommentID] = c
	return nil
}

func (m *memComments) Get(_ context.Context, commentID string) (Comment, error) {
	mm := (*Mem)(m)
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	c, ok := mm.comments[commentID]
	if !ok {
		return Comment{}, ErrNotFound
	}
	return c, nil
}

func (m *memComments) Seen(_ context.Context, commentID string) (bool, error) {
	mm := (*Mem)(m)
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	_, ok := mm.comments[commentID]
	return ok, nil
}

func (m *memComments) MarkReplied(_ context.Context, commentID, replyText string, at time.Time) error {
	mm := (*Mem)(m)
	mm.mu.Lock()
	defer mm.mu.Unlock()

	c, ok := mm.comments[commentID]
	if !ok {
		return ErrNotFound
	}
	c.Status = StatusReplied
	c.ReplyText = replyText
	c.RepliedAt = at
	mm.comments[commentID] = c
	return nil
}

func (m *memComments) ListByVideo(_ context.Context, videoID string) ([]Comment, error) {
	mm := (*Mem)(m)
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	var result []Comment
	for _, c := range mm.comments {
		if c.VideoID == videoID {
			result = append(result, c)
		}
	}
	slices.SortFunc(result, func(a, b Comment) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return result, nil
}

func (m *memComments) Count(_ context.Context) (int, error) {
	mm := (*Mem)(m)
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return len(mm.comments), nil
}

// Settings returns the SettingStore view of the in-memory store.
func (m *Mem) Settings() SettingStore { return (*memSettings)(m) }

type memSettings Mem

func (m *memSettings) Upsert(_ context.Context, key, value string) error {
	mm := (*Mem)(m)
	mm.mu.Lock()
	defer mm.mu.Unlock()

	mm.settings[key] = Setting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return nil
}

func (m *memSettings) Get(_ context.Context, key string) (Setting, error) {
	mm := (*Mem)(m)
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	s, ok := mm.settings[key]
	if !ok {
		return Setting{}, ErrNotFound
	}
	return s, nil
}

func (m *memSettings) ListByPrefix(_ context.Context, prefix string) ([]Setting, error) {
	mm := (*Mem)(m)
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	var result []Setting
	for key, s := range mm.settings {
		if strings.HasPrefix(key, prefix) {
			result = append(result, s)
		}
	}
	slices.SortFunc(result, func(a, b Setting) int {
		return strings.Compare(a.Key, b.Key)
	})
	return result, nil
}

// CreateConversation implements ConversationStore.
func (m *Mem) CreateConversation(_ context.Context, c Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.conversations[c.ID]; exists {
		return ErrDuplicate
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}
	m.conversations[c.ID] = c
	return nil
}

// GetConversation implements ConversationStore.
func (m *Mem) GetConversation(_ context.Context, id string) (Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conversations[id]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	return c, nil
}

// UpdateConversation implements ConversationStore.
func (m *Mem) UpdateConversation(_ context.Context, c Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[c.ID]; !ok {
		return ErrNotFound
	}
	c.UpdatedAt = time.Now().UTC()
	m.conversations[c.ID] = c
	return nil
}

// AppendMessage implements ConversationStore.
func (m *Mem) AppendMessage(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	return nil
}

// RecentMessages implements ConversationStore.
func (m *Mem) RecentMessages(_ context.Context, conversationID string, limit int) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return slices.Clone(msgs), nil
}

// InsertDraft implements DraftStore.
func (m *Mem) InsertDraft(_ context.Context, content string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextDraftID
	m.nextDraftID++
	m.drafts = append(m.drafts, Draft{
		ID:        id,
		Content:   content,
		Status:    DraftStatusDraft,
		CreatedAt: time.Now().UTC(),
	})
	return id, nil
}

// ListDrafts implements DraftStore.
func (m *Mem) ListDrafts(_ context.Context) ([]Draft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := slices.Clone(m.drafts)
	slices.Reverse(result)
	return result, nil
}
