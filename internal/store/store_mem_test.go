package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMem_VideoInsertDuplicate(t *testing.T) {
	t.Parallel()

	m := NewMem()
	ctx := context.Background()

	if err := m.Insert(ctx, Video{VideoID: "v1", Title: "first"}); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := m.Insert(ctx, Video{VideoID: "v1", Title: "second"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}

	v, err := m.Get(ctx, "v1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v.Title != "first" {
		t.Errorf("duplicate insert must not overwrite: title=%q", v.Title)
	}
}

func TestMem_TouchLastChecked(t *testing.T) {
	t.Parallel()

	m := NewMem()
	ctx := context.Background()

	if err := m.TouchLastChecked(ctx, "missing", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	_ = m.Insert(ctx, Video{VideoID: "v1"})
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if err := m.TouchLastChecked(ctx, "v1", at); err != nil {
		t.Fatalf("touch: %v", err)
	}

	v, _ := m.Get(ctx, "v1")
	if !v.LastCheckedAt.Equal(at) {
		t.Errorf("last checked = %v, want %v", v.LastCheckedAt, at)
	}
}

func TestMem_CommentDedup(t *testing.T) {
	t.Parallel()

	m := NewMem()
	cs := m.Comments()
	ctx := context.Background()

	if err := cs.Insert(ctx, Comment{CommentID: "c1", VideoID: "v1", Text: "hi"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	seen, err := cs.Seen(ctx, "c1")
	if err != nil || !seen {
		t.Fatalf("seen(c1) = %v, %v; want true", seen, err)
	}

	if err := cs.Insert(ctx, Comment{CommentID: "c1", Text: "edited"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}

	c, _ := cs.Get(ctx, "c1")
	if c.Text != "hi" || c.Status != StatusPending {
		t.Errorf("comment mutated by duplicate insert: %+v", c)
	}
}

func TestMem_MarkReplied(t *testing.T) {
	t.Parallel()

	m := NewMem()
	cs := m.Comments()
	ctx := context.Background()

	_ = cs.Insert(ctx, Comment{CommentID: "c1", VideoID: "v1"})
	at := time.Now().UTC()
	if err := cs.MarkReplied(ctx, "c1", "thanks!", at); err != nil {
		t.Fatalf("mark replied: %v", err)
	}

	c, _ := cs.Get(ctx, "c1")
	if c.Status != StatusReplied || c.ReplyText != "thanks!" {
		t.Errorf("reply not recorded: %+v", c)
	}
}

func TestMem_SettingsPrefix(t *testing.T) {
	t.Parallel()

	m := NewMem()
	s := m.Settings()
	ctx := context.Background()

	_ = s.Upsert(ctx, "jobA_interval", `"5m"`)
	_ = s.Upsert(ctx, "jobA_prompt", `"hello"`)
	_ = s.Upsert(ctx, "jobB_interval", `"1h"`)

	got, err := s.ListByPrefix(ctx, "jobA_")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 settings for jobA_, got %d", len(got))
	}
	for _, st := range got {
		if st.Key == "jobB_interval" {
			t.Error("prefix isolation violated")
		}
	}
}

func TestMem_RecentMessagesWindow(t *testing.T) {
	t.Parallel()

	m := NewMem()
	ctx := context.Background()

	_ = m.CreateConversation(ctx, Conversation{ID: "conv1", Job: "j"})
	for i := range 30 {
		_ = m.AppendMessage(ctx, Message{
			ID:             string(rune('a' + i)),
			ConversationID: "conv1",
			Role:           "user",
			CreatedAt:      time.Now().Add(time.Duration(i) * time.Second),
		})
	}

	msgs, err := m.RecentMessages(ctx, "conv1", 20)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(msgs) != 20 {
		t.Fatalf("window = %d, want 20", len(msgs))
	}
	// Window must come from the most recent end.
	if msgs[len(msgs)-1].ID != string(rune('a'+29)) {
		t.Errorf("last message = %q, want most recent", msgs[len(msgs)-1].ID)
	}
}

func TestMem_Drafts(t *testing.T) {
	t.Parallel()

	m := NewMem()
	ctx := context.Background()

	id1, err := m.InsertDraft(ctx, "first")
	if err != nil {
		t.Fatalf("insert draft: %v", err)
	}
	id2, _ := m.InsertDraft(ctx, "second")
	if id2 <= id1 {
		t.Errorf("draft IDs should increase: %d then %d", id1, id2)
	}

	drafts, _ := m.ListDrafts(ctx)
	if len(drafts) != 2 || drafts[0].Content != "second" {
		t.Errorf("ListDrafts newest-first broken: %+v", drafts)
	}
	if drafts[0].Status != DraftStatusDraft {
		t.Errorf("new draft status = %q", drafts[0].Status)
	}
}
