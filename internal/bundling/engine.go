package bundling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SystAttic/TraversiumNotificationService/internal/domain"
)

// UnseenStore is the collection of not-yet-bundled notifications the engine
// drains.
type UnseenStore interface {
	ListByTenant(ctx context.Context, scope domain.Scope) ([]domain.UnseenNotification, error)
	ListByReceiver(ctx context.Context, scope domain.Scope, receiverID string) ([]domain.UnseenNotification, error)
}

// BundleStore persists merged bundles. Merge must atomically upsert the
// bundle identified by delta.BundleKey and delete the consumed unseen rows:
// a crash between the two must not duplicate or lose notifications.
type BundleStore interface {
	Merge(ctx context.Context, scope domain.Scope, delta domain.BundleDelta, unseenIDs []string) error
}

// Engine groups unseen notifications by bundle key and merges each group
// into the bundle store exactly once.
type Engine struct {
	unseen  UnseenStore
	bundles BundleStore
}

func NewEngine(unseen UnseenStore, bundles BundleStore) *Engine {
	return &Engine{unseen: unseen, bundles: bundles}
}

// MergeTenant merges every unseen notification in the scope.
func (e *Engine) MergeTenant(ctx context.Context, scope domain.Scope) (map[string]int, error) {
	rows, err := e.unseen.ListByTenant(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("list unseen for tenant %s: %w", scope.Tenant, err)
	}
	return e.Merge(ctx, scope, rows)
}

// MergeReceiver merges the unseen notifications of a single recipient. Used
// by the read path to force-bundle before serving a feed page.
func (e *Engine) MergeReceiver(ctx context.Context, scope domain.Scope, receiverID string) (map[string]int, error) {
	rows, err := e.unseen.ListByReceiver(ctx, scope, receiverID)
	if err != nil {
		return nil, fmt.Errorf("list unseen for receiver %s: %w", receiverID, err)
	}
	return e.Merge(ctx, scope, rows)
}

// Merge groups rows by bundle key and persists one merge per group. A row
// whose key cannot be derived fails alone: it is logged, left unseen, and
// the remaining groups still proceed. A group whose rows were consumed by a
// concurrent merge (store reports ErrConflict) is skipped without error. The
// returned map holds the number of notifications merged per bundle key. A
// non-nil error reports groups that failed to persist; their rows stay
// unseen and are retried on a later pass.
func (e *Engine) Merge(ctx context.Context, scope domain.Scope, rows []domain.UnseenNotification) (map[string]int, error) {
	if len(rows) == 0 {
		return map[string]int{}, nil
	}

	groups := make(map[string][]domain.UnseenNotification)
	order := make([]string, 0, len(rows))
	for _, row := range rows {
		key, err := BundleKey(row)
		if err != nil {
			slog.Error("skipping unbundleable notification",
				"tenant", scope.Tenant, "notification_id", row.NotificationID, "err", err)
			continue
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], row)
	}

	merged := make(map[string]int, len(groups))
	var errs []error
	for _, key := range order {
		group := groups[key]
		delta := buildDelta(key, group)
		ids := make([]string, len(group))
		for i, row := range group {
			ids[i] = row.NotificationID
		}
		if err := e.bundles.Merge(ctx, scope, delta, ids); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				// A concurrent pass already consumed these rows; counting
				// them again here would double them.
				slog.Debug("bundle group consumed by a concurrent merge",
					"tenant", scope.Tenant, "bundle", key)
				continue
			}
			errs = append(errs, fmt.Errorf("merge bundle %s: %w", key, err))
			continue
		}
		merged[key] = len(group)
	}
	return merged, errors.Join(errs...)
}

// buildDelta folds one key group into a single bundle contribution: sender
// ids deduplicated, distinct media ids collected, reference ids taken from
// the first member, timestamps min/max over the group.
func buildDelta(key string, group []domain.UnseenNotification) domain.BundleDelta {
	first := group[0]
	delta := domain.BundleDelta{
		BundleKey:             key,
		ReceiverID:            first.ReceiverID,
		Type:                  first.Type,
		CollectionReferenceID: first.CollectionReferenceID,
		NodeReferenceID:       first.NodeReferenceID,
		MediaReferenceID:      first.MediaReferenceID,
		CommentReferenceID:    first.CommentReferenceID,
		Count:                 len(group),
		FirstTimestamp:        first.Timestamp,
		LastTimestamp:         first.Timestamp,
	}

	senders := make(map[string]struct{}, len(group))
	media := make(map[int64]struct{})
	for _, row := range group {
		if _, ok := senders[row.SenderID]; !ok {
			senders[row.SenderID] = struct{}{}
			delta.SenderIDs = append(delta.SenderIDs, row.SenderID)
		}
		if row.MediaReferenceID != nil {
			if _, ok := media[*row.MediaReferenceID]; !ok {
				media[*row.MediaReferenceID] = struct{}{}
				delta.MediaIDs = append(delta.MediaIDs, *row.MediaReferenceID)
			}
		}
		delta.FirstTimestamp = minTime(delta.FirstTimestamp, row.Timestamp)
		delta.LastTimestamp = maxTime(delta.LastTimestamp, row.Timestamp)
	}
	return delta
}

func minTime(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
