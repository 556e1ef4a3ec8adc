// Package chat drives jobs conversationally. Each exchange streams an
// assistant response to the caller, persists both turns, and then fires the
// target job with the user's message as a parameter.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/replyloop/replyloop/internal/cron"
	"github.com/replyloop/replyloop/internal/provider"
	"github.com/replyloop/replyloop/internal/store"
)

// historyWindow is how many recent messages are replayed as model context.
const historyWindow = 20

// titleLimit caps the conversation title, derived from the first user
// message.
const titleLimit = 100

const systemPrompt = "You are the assistant for a social automation daemon. " +
	"The user chats with you to steer a scheduled job. Answer briefly; the " +
	"job itself runs after each exchange."

// JobRunner fires a job outside its schedule. Satisfied by the scheduler.
type JobRunner interface {
	Jobs() []string
	RunNow(ctx context.Context, name string, extra map[string]any) (cron.Outcome, error)
}

// ErrUnknownJob indicates the conversation targets a job that is not
// registered.
var ErrUnknownJob = errors.New("chat: unknown job")

// Service handles conversational job exchanges.
type Service struct {
	conversations store.ConversationStore
	ai            provider.Provider
	runner        JobRunner
	logger        *slog.Logger
}

// NewService wires a chat service.
func NewService(conversations store.ConversationStore, ai provider.Provider, runner JobRunner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		conversations: conversations,
		ai:            ai,
		runner:        runner,
		logger:        logger,
	}
}

// Result is the outcome of one chat exchange.
type Result struct {
	ConversationID string `json:"conversation_id"`
	Reply          string `json:"reply"`
}

// Send runs one exchange: stream the assistant's response through emit,
// persist both turns, and fire the job. conversationID may be empty to
// start a new conversation. Turns are persisted only after the stream
// completes, so an interrupted generation leaves no half-written exchange.
// The job run happens last and its failure is logged, not surfaced: the
// conversation itself succeeded.
func (s *Service) Send(ctx context.Context, job, conversationID, userInput string, emit func(chunk string) error) (Result, error) {
	if s.ai == nil {
		return Result{}, fmt.Errorf("chat: %w", provider.ErrNotConfigured)
	}
	if err := s.checkJob(job); err != nil {
		return Result{}, err
	}

	conv, err := s.loadOrCreate(ctx, job, conversationID)
	if err != nil {
		return Result{}, err
	}

	history, err := s.conversations.RecentMessages(ctx, conv.ID, historyWindow)
	if err != nil {
		return Result{}, fmt.Errorf("chat: load history: %w", err)
	}

	reply, err := s.stream(ctx, history, userInput, emit)
	if err != nil {
		return Result{}, err
	}

	if err := s.persistExchange(ctx, conv, userInput, reply); err != nil {
		return Result{}, err
	}

	s.fireJob(ctx, job, userInput)

	return Result{ConversationID: conv.ID, Reply: reply}, nil
}

// checkJob verifies the target job exists in the registry.
func (s *Service) checkJob(job string) error {
	for _, name := range s.runner.Jobs() {
		if name == job {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownJob, job)
}

// loadOrCreate resolves the conversation, creating one when the ID is empty.
func (s *Service) loadOrCreate(ctx context.Context, job, id string) (store.Conversation, error) {
	if id != "" {
		conv, err := s.conversations.GetConversation(ctx, id)
		if err != nil {
			return store.Conversation{}, fmt.Errorf("chat: load conversation %s: %w", id, err)
		}
		return conv, nil
	}

	conv := store.Conversation{
		ID:     uuid.NewString(),
		Job:    job,
		Status: "active",
	}
	if err := s.conversations.CreateConversation(ctx, conv); err != nil {
		return store.Conversation{}, fmt.Errorf("chat: create conversation: %w", err)
	}
	return conv, nil
}

// stream generates the assistant reply, forwarding content chunks to emit.
func (s *Service) stream(ctx context.Context, history []store.Message, userInput string, emit func(string) error) (string, error) {
	messages := make([]provider.LLMMessage, 0, len(history)+2)
	messages = append(messages, provider.LLMMessage{
		Role:    provider.MessageRoleSystem,
		Content: systemPrompt,
	})
	for _, m := range history {
		messages = append(messages, provider.LLMMessage{
			Role:    provider.MessageRole(m.Role),
			Content: m.Content,
		})
	}
	messages = append(messages, provider.LLMMessage{
		Role:    provider.MessageRoleUser,
		Content: userInput,
	})

	ch, err := s.ai.Stream(ctx, provider.CompletionRequest{Messages: messages})
	if err != nil {
		return "", fmt.Errorf("chat: stream: %w", err)
	}

	var reply strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			return "", fmt.Errorf("chat: stream: %w", chunk.Err)
		}
		if chunk.Content == "" {
			continue
		}
		reply.WriteString(chunk.Content)
		if emit != nil {
			if err := emit(chunk.Content); err != nil {
				return "", fmt.Errorf("chat: emit chunk: %w", err)
			}
		}
	}
	return reply.String(), nil
}

// persistExchange appends both turns and updates the conversation record.
// The title is set once, from the first user message.
func (s *Service) persistExchange(ctx context.Context, conv store.Conversation, userInput, reply string) error {
	now := time.Now()
	userMsg := store.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           string(provider.MessageRoleUser),
		Content:        userInput,
		CreatedAt:      now,
	}
	if err := s.conversations.AppendMessage(ctx, userMsg); err != nil {
		return fmt.Errorf("chat: save user turn: %w", err)
	}

	assistantMsg := store.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           string(provider.MessageRoleAssistant),
		Content:        reply,
		CreatedAt:      now,
	}
	if err := s.conversations.AppendMessage(ctx, assistantMsg); err != nil {
		return fmt.Errorf("chat: save assistant turn: %w", err)
	}

	if conv.Title == "" {
		conv.Title = truncate(userInput, titleLimit)
	}
	conv.MessageCount += 2
	conv.UpdatedAt = now
	if err := s.conversations.UpdateConversation(ctx, conv); err != nil {
		return fmt.Errorf("chat: update conversation: %w", err)
	}
	return nil
}

// fireJob runs the target job with the user's message as a parameter.
func (s *Service) fireJob(ctx context.Context, job, userInput string) {
	outcome, err := s.runner.RunNow(ctx, job, map[string]any{"user_message": userInput})
	switch {
	case err != nil:
		s.logger.Error("chat: job run failed", "job", job, "error", err)
	case outcome.Err != nil:
		s.logger.Error("chat: job run failed", "job", job, "error", outcome.Err)
	default:
		s.logger.Info("chat: job run completed", "job", job, "duration", outcome.Duration)
	}
}

// truncate shortens s to at most limit runes.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
