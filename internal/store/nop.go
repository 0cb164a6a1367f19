package store

import (
	"context"

	"github.com/amishk599/internradar/internal/model"
)

// NopStore is a no-op store used by one-shot checks. It never persists, so
// every record reports as newly inserted on each cycle.
type NopStore struct{}

func NewNopStore() *NopStore { return &NopStore{} }

func (s *NopStore) InsertIfAbsent(context.Context, model.Job) (bool, error)  { return true, nil }
func (s *NopStore) MarkNotified(context.Context, []string) error             { return nil }
func (s *NopStore) ListUnnotified(context.Context, int) ([]model.Job, error) { return nil, nil }
func (s *NopStore) Close() error                                             { return nil }
