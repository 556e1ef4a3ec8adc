// Package settings provides job-scoped key/value configuration persisted
// in the store. Keys are namespaced per job so two jobs can hold the same
// setting name without colliding; values are stored as JSON.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/replyloop/replyloop/internal/store"
)

// Service reads and writes job-scoped settings.
type Service struct {
	store store.SettingStore
}

// NewService creates a settings service over the given store.
func NewService(s store.SettingStore) *Service {
	return &Service{store: s}
}

// scopedKey builds the storage key for a job-scoped setting.
func scopedKey(job, key string) string {
	return job + "_" + key
}

// Set stores a setting for the job. The value is serialized as JSON.
func (s *Service) Set(ctx context.Context, job, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("settings: marshal %s/%s: %w", job, key, err)
	}
	if err := s.store.Upsert(ctx, scopedKey(job, key), string(data)); err != nil {
		return fmt.Errorf("settings: set %s/%s: %w", job, key, err)
	}
	return nil
}

// Get loads a setting for the job into out. Returns store.ErrNotFound when
// the setting has never been written.
func (s *Service) Get(ctx context.Context, job, key string, out any) error {
	raw, err := s.store.Get(ctx, scopedKey(job, key))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return fmt.Errorf("settings: get %s/%s: %w", job, key, err)
	}
	if err := json.Unmarshal([]byte(raw.Value), out); err != nil {
		return fmt.Errorf("settings: unmarshal %s/%s: %w", job, key, err)
	}
	return nil
}

// GetString loads a string setting, returning fallback when unset.
func (s *Service) GetString(ctx context.Context, job, key, fallback string) (string, error) {
	var v string
	err := s.Get(ctx, job, key, &v)
	if errors.Is(err, store.ErrNotFound) {
		return fallback, nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// GetBool loads a boolean setting, returning fallback when unset.
func (s *Service) GetBool(ctx context.Context, job, key string, fallback bool) (bool, error) {
	var v bool
	err := s.Get(ctx, job, key, &v)
	if errors.Is(err, store.ErrNotFound) {
		return fallback, nil
	}
	if err != nil {
		return false, err
	}
	return v, nil
}

// GetInt loads an integer setting, returning fallback when unset. Values
// written as JSON numbers decode through float64.
func (s *Service) GetInt(ctx context.Context, job, key string, fallback int) (int, error) {
	var v json.Number
	err := s.Get(ctx, job, key, &v)
	if errors.Is(err, store.ErrNotFound) {
		return fallback, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := v.Int64()
	if err != nil {
		return 0, fmt.Errorf("settings: %s/%s is not an integer: %w", job, key, err)
	}
	return int(n), nil
}

// All returns every setting for the job as raw JSON values, with the job
// prefix stripped from the keys.
func (s *Service) All(ctx context.Context, job string) (map[string]json.RawMessage, error) {
	prefix := job + "_"
	rows, err := s.store.ListByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("settings: list %s: %w", job, err)
	}

	out := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		key := strings.TrimPrefix(row.Key, prefix)
		out[key] = json.RawMessage(row.Value)
	}
	return out, nil
}

// SetAll writes each entry as a setting for the job.
func (s *Service) SetAll(ctx context.Context, job string, values map[string]any) error {
	for key, value := range values {
		if err := s.Set(ctx, job, key, value); err != nil {
			return err
		}
	}
	return nil
}
