package domain

import "time"

// Scope identifies the tenant partition an operation runs against.
// It is passed explicitly through every store and engine call; there is no
// ambient tenant state.
type Scope struct {
	Tenant string
}

// RawNotification is one inbound activity event as consumed from the message
// bus, addressed to one or more recipients.
type RawNotification struct {
	SenderID              string    `json:"senderId"`
	ReceiverIDs           []string  `json:"receiverIds"`
	CollectionReferenceID *int64    `json:"collectionReferenceId,omitempty"`
	NodeReferenceID       *int64    `json:"nodeReferenceId,omitempty"`
	MediaReferenceID      *int64    `json:"mediaReferenceId,omitempty"`
	CommentReferenceID    *int64    `json:"commentReferenceId,omitempty"`
	Action                Action    `json:"action"`
	Timestamp             time.Time `json:"timestamp"`
}

// UnseenNotification is a per-recipient event that has not yet been absorbed
// into a bundle. Created on ingestion, deleted when merged, never updated.
type UnseenNotification struct {
	NotificationID        string           `json:"id" dynamodbav:"notification_id"`
	TenantID              string           `json:"-" dynamodbav:"tenant_id"`
	ReceiverKey           string           `json:"-" dynamodbav:"receiver_key"`
	SenderID              string           `json:"sender_id" dynamodbav:"sender_id"`
	ReceiverID            string           `json:"receiver_id" dynamodbav:"receiver_id"`
	CollectionReferenceID *int64           `json:"collection_reference_id,omitempty" dynamodbav:"collection_reference_id,omitempty"`
	NodeReferenceID       *int64           `json:"node_reference_id,omitempty" dynamodbav:"node_reference_id,omitempty"`
	MediaReferenceID      *int64           `json:"media_reference_id,omitempty" dynamodbav:"media_reference_id,omitempty"`
	CommentReferenceID    *int64           `json:"comment_reference_id,omitempty" dynamodbav:"comment_reference_id,omitempty"`
	Type                  NotificationType `json:"type" dynamodbav:"notification_type"`
	Timestamp             time.Time        `json:"timestamp" dynamodbav:"timestamp"`
}

// Bundle is a durable, deduplicated aggregate of one or more notifications
// sharing a bundle key. Exactly one Bundle exists per (tenant, bundle key).
type Bundle struct {
	BundleKey             string           `json:"bundle_id" dynamodbav:"bundle_key"`
	TenantID              string           `json:"-" dynamodbav:"tenant_id"`
	ReceiverKey           string           `json:"-" dynamodbav:"receiver_key"`
	ReceiverID            string           `json:"receiver_id" dynamodbav:"receiver_id"`
	SenderIDs             []string         `json:"sender_ids" dynamodbav:"sender_ids"`
	Type                  NotificationType `json:"type" dynamodbav:"notification_type"`
	CollectionReferenceID *int64           `json:"collection_reference_id,omitempty" dynamodbav:"collection_reference_id,omitempty"`
	NodeReferenceID       *int64           `json:"node_reference_id,omitempty" dynamodbav:"node_reference_id,omitempty"`
	MediaReferenceID      *int64           `json:"media_reference_id,omitempty" dynamodbav:"media_reference_id,omitempty"`
	CommentReferenceID    *int64           `json:"comment_reference_id,omitempty" dynamodbav:"comment_reference_id,omitempty"`
	MediaIDs              []int64          `json:"-" dynamodbav:"media_ids,omitempty"`
	MediaCount            int              `json:"media_count,omitempty" dynamodbav:"-"`
	NotificationCount     int              `json:"notification_count" dynamodbav:"notification_count"`
	FirstTimestamp        time.Time        `json:"first_timestamp" dynamodbav:"first_timestamp"`
	LastTimestamp         time.Time        `json:"last_timestamp" dynamodbav:"last_timestamp"`
	CreatedAt             time.Time        `json:"created_at" dynamodbav:"created_at"`
}

// BundleDelta is the contribution of one merge group to a bundle: everything
// needed to create the bundle if the key is new, or increment it if not.
type BundleDelta struct {
	BundleKey             string
	ReceiverID            string
	SenderIDs             []string
	Type                  NotificationType
	CollectionReferenceID *int64
	NodeReferenceID       *int64
	MediaReferenceID      *int64
	CommentReferenceID    *int64
	MediaIDs              []int64
	Count                 int
	FirstTimestamp        time.Time
	LastTimestamp         time.Time
}

// BundleList is the feed page returned by the read boundary: bundles freshly
// merged during this request first, then previously seen bundles.
type BundleList struct {
	UnseenBundles []Bundle `json:"unseen_bundles"`
	SeenBundles   []Bundle `json:"seen_bundles"`
}

// Announcement is one item on the live distribution channel: either a
// notification/bundle event addressed to a recipient, or a heartbeat.
type Announcement struct {
	TenantID   string           `json:"-"`
	ReceiverID string           `json:"receiver_id,omitempty"`
	SenderID   string           `json:"sender_id,omitempty"`
	BundleKey  string           `json:"bundle_id,omitempty"`
	Type       NotificationType `json:"type,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

// Heartbeat returns the liveness announcement published to all subscribers.
func Heartbeat(now time.Time) Announcement {
	return Announcement{
		SenderID:   "system",
		ReceiverID: "ALL",
		Type:       TypeHealthcheck,
		Timestamp:  now,
	}
}
