package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SystAttic/TraversiumNotificationService/internal/bundling"
	"github.com/SystAttic/TraversiumNotificationService/internal/domain"
	"github.com/SystAttic/TraversiumNotificationService/internal/infrastructure/sns"
	"github.com/SystAttic/TraversiumNotificationService/internal/pkg/id"
)

// UnseenStore is what the service needs from the unseen notifications table.
// PutAll must persist the rows atomically: a partial fan-out would let a
// redelivered event duplicate the recipients already stored.
type UnseenStore interface {
	PutAll(ctx context.Context, scope domain.Scope, ns []domain.UnseenNotification) error
	CountByReceiver(ctx context.Context, scope domain.Scope, receiverID string) (int, error)
}

// BundleReader pages a recipient's merged bundles, newest first.
type BundleReader interface {
	ListByReceiver(ctx context.Context, scope domain.Scope, receiverID string, offset, limit int) ([]domain.Bundle, error)
}

// Merger force-bundles a recipient's unseen rows ahead of a read.
type Merger interface {
	MergeReceiver(ctx context.Context, scope domain.Scope, receiverID string) (map[string]int, error)
}

// TenantRegistry records tenants so the bundling sweep can find them.
type TenantRegistry interface {
	Ensure(ctx context.Context, tenantID string) error
}

// Publisher is the in-process live distribution channel.
type Publisher interface {
	Publish(a domain.Announcement)
}

// Service is the notification application service: ingestion fan-out and the
// read/query boundary.
type Service interface {
	Ingest(ctx context.Context, scope domain.Scope, raw domain.RawNotification) ([]domain.UnseenNotification, error)
	CountUnseen(ctx context.Context, scope domain.Scope, userID string) (int, error)
	ListBundles(ctx context.Context, scope domain.Scope, userID string, offset, limit int) (*domain.BundleList, error)
	ListUnseenBundles(ctx context.Context, scope domain.Scope, userID string, offset, limit int) ([]domain.Bundle, error)
	ListSeenBundles(ctx context.Context, scope domain.Scope, userID string, offset, limit int) ([]domain.Bundle, error)
}

type service struct {
	unseen  UnseenStore
	bundles BundleReader
	merger  Merger
	tenants TenantRegistry
	live    Publisher
}

func NewService(unseen UnseenStore, bundles BundleReader, merger Merger, tenants TenantRegistry, live Publisher) Service {
	return &service{unseen: unseen, bundles: bundles, merger: merger, tenants: tenants, live: live}
}

// Ingest classifies one raw event, fans it out to one unseen row per
// recipient in a single atomic write, and echoes each row onto the live
// channel once the write committed. Classification happens here, once, so
// unseen rows always carry a resolved type.
func (s *service) Ingest(ctx context.Context, scope domain.Scope, raw domain.RawNotification) ([]domain.UnseenNotification, error) {
	if raw.SenderID == "" || len(raw.ReceiverIDs) == 0 {
		return nil, fmt.Errorf("%w: senderId and receiverIds are required", domain.ErrInvalidNotification)
	}
	ntype, err := bundling.Classify(raw)
	if err != nil {
		return nil, err
	}
	ts := raw.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	if err := s.tenants.Ensure(ctx, scope.Tenant); err != nil {
		return nil, err
	}

	rows := make([]domain.UnseenNotification, 0, len(raw.ReceiverIDs))
	for _, receiverID := range raw.ReceiverIDs {
		rows = append(rows, domain.UnseenNotification{
			NotificationID:        id.New(),
			SenderID:              raw.SenderID,
			ReceiverID:            receiverID,
			CollectionReferenceID: raw.CollectionReferenceID,
			NodeReferenceID:       raw.NodeReferenceID,
			MediaReferenceID:      raw.MediaReferenceID,
			CommentReferenceID:    raw.CommentReferenceID,
			Type:                  ntype,
			Timestamp:             ts,
		})
	}
	if err := s.unseen.PutAll(ctx, scope, rows); err != nil {
		return nil, fmt.Errorf("persist unseen notifications: %w", err)
	}

	for _, n := range rows {
		s.live.Publish(domain.Announcement{
			TenantID:   scope.Tenant,
			ReceiverID: n.ReceiverID,
			SenderID:   raw.SenderID,
			Type:       ntype,
			Timestamp:  ts,
		})
	}
	return rows, nil
}

func (s *service) CountUnseen(ctx context.Context, scope domain.Scope, userID string) (int, error) {
	return s.unseen.CountByReceiver(ctx, scope, userID)
}

// ListBundles serves one feed page: the principal's unseen rows are bundled
// first, then the page is read back and split so freshly merged bundles lead
// and already-seen bundles consume the remainder. Total never exceeds limit.
func (s *service) ListBundles(ctx context.Context, scope domain.Scope, userID string, offset, limit int) (*domain.BundleList, error) {
	merged, err := s.merger.MergeReceiver(ctx, scope, userID)
	if err != nil {
		return nil, err
	}

	page, err := s.bundles.ListByReceiver(ctx, scope, userID, offset, limit)
	if err != nil {
		return nil, err
	}

	list := &domain.BundleList{UnseenBundles: []domain.Bundle{}, SeenBundles: []domain.Bundle{}}
	for _, b := range page {
		if _, fresh := merged[b.BundleKey]; fresh {
			list.UnseenBundles = append(list.UnseenBundles, b)
		} else {
			list.SeenBundles = append(list.SeenBundles, b)
		}
	}
	return list, nil
}

// ListUnseenBundles force-bundles and returns only the bundles produced by
// this call.
func (s *service) ListUnseenBundles(ctx context.Context, scope domain.Scope, userID string, offset, limit int) ([]domain.Bundle, error) {
	merged, err := s.merger.MergeReceiver(ctx, scope, userID)
	if err != nil {
		return nil, err
	}
	if len(merged) == 0 {
		return []domain.Bundle{}, nil
	}

	// Freshly merged bundles have the newest last_timestamp, so they sit at
	// the head of the listing.
	page, err := s.bundles.ListByReceiver(ctx, scope, userID, 0, offset+limit+len(merged))
	if err != nil {
		return nil, err
	}
	fresh := make([]domain.Bundle, 0, len(merged))
	for _, b := range page {
		if _, ok := merged[b.BundleKey]; ok {
			fresh = append(fresh, b)
		}
	}
	if offset >= len(fresh) {
		return []domain.Bundle{}, nil
	}
	if end := offset + limit; end < len(fresh) {
		return fresh[offset:end], nil
	}
	return fresh[offset:], nil
}

func (s *service) ListSeenBundles(ctx context.Context, scope domain.Scope, userID string, offset, limit int) ([]domain.Bundle, error) {
	return s.bundles.ListByReceiver(ctx, scope, userID, offset, limit)
}

// Announcer echoes scheduler-produced bundle merges onto the live channel
// and, when configured, the SNS fan-out topic.
type Announcer struct {
	Live   Publisher
	Fanout sns.BundlePublisher // optional
}

func (a *Announcer) AnnounceBundles(ctx context.Context, scope domain.Scope, mergedKeys map[string]int) {
	now := time.Now().UTC()
	for key, count := range mergedKeys {
		a.Live.Publish(domain.Announcement{
			TenantID:  scope.Tenant,
			BundleKey: key,
			Timestamp: now,
		})
		if a.Fanout != nil {
			if err := a.Fanout.PublishBundleUpdate(ctx, scope.Tenant, key, count); err != nil {
				slog.Error("could not publish bundle update", "tenant", scope.Tenant, "bundle", key, "err", err)
			}
		}
	}
}
