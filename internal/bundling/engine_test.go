package bundling

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/SystAttic/TraversiumNotificationService/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeUnseen struct {
	rows []domain.UnseenNotification
}

func (f *fakeUnseen) ListByTenant(_ context.Context, _ domain.Scope) ([]domain.UnseenNotification, error) {
	return f.rows, nil
}

func (f *fakeUnseen) ListByReceiver(_ context.Context, _ domain.Scope, receiverID string) ([]domain.UnseenNotification, error) {
	var out []domain.UnseenNotification
	for _, row := range f.rows {
		if row.ReceiverID == receiverID {
			out = append(out, row)
		}
	}
	return out, nil
}

type mergeCall struct {
	delta domain.BundleDelta
	ids   []string
}

type fakeBundles struct {
	calls       []mergeCall
	failKey     string
	consumedKey string
}

func (f *fakeBundles) Merge(_ context.Context, _ domain.Scope, delta domain.BundleDelta, unseenIDs []string) error {
	if delta.BundleKey == f.failKey {
		return errors.New("transact failed")
	}
	if delta.BundleKey == f.consumedKey {
		return fmt.Errorf("rows already consumed: %w", domain.ErrConflict)
	}
	f.calls = append(f.calls, mergeCall{delta: delta, ids: unseenIDs})
	return nil
}

// --- helpers ---

var scope = domain.Scope{Tenant: "public"}

func likeRow(id, sender string, media int64, ts time.Time) domain.UnseenNotification {
	return domain.UnseenNotification{
		NotificationID:   id,
		SenderID:         sender,
		ReceiverID:       "recipient1",
		MediaReferenceID: ref(media),
		Type:             domain.TypeLikePhoto,
		Timestamp:        ts,
	}
}

func photoRow(id, sender string, ts time.Time) domain.UnseenNotification {
	return domain.UnseenNotification{
		NotificationID:        id,
		SenderID:              sender,
		ReceiverID:            "recipient1",
		CollectionReferenceID: ref(1),
		NodeReferenceID:       ref(2),
		MediaReferenceID:      ref(100),
		Type:                  domain.TypeAddPhoto,
		Timestamp:             ts,
	}
}

// --- tests ---

func TestMerge_GroupsSameKeyIntoOneBundle(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	unseen := &fakeUnseen{rows: []domain.UnseenNotification{
		likeRow("n1", "alice", 42, t0),
		likeRow("n2", "bob", 42, t0.Add(time.Minute)),
		likeRow("n3", "carol", 42, t0.Add(2*time.Minute)),
	}}
	bundles := &fakeBundles{}

	merged, err := NewEngine(unseen, bundles).MergeTenant(context.Background(), scope)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"recipient1-42-LIKE_PHOTO": 3}, merged)
	require.Len(t, bundles.calls, 1)

	delta := bundles.calls[0].delta
	assert.Equal(t, 3, delta.Count)
	assert.Equal(t, []string{"alice", "bob", "carol"}, delta.SenderIDs)
	assert.Equal(t, []int64{42}, delta.MediaIDs)
	assert.Equal(t, t0, delta.FirstTimestamp)
	assert.Equal(t, t0.Add(2*time.Minute), delta.LastTimestamp)
	assert.Equal(t, []string{"n1", "n2", "n3"}, bundles.calls[0].ids)
}

func TestMerge_DuplicateSendersCollapse(t *testing.T) {
	t0 := time.Now().UTC()
	unseen := &fakeUnseen{rows: []domain.UnseenNotification{
		likeRow("n1", "alice", 42, t0),
		likeRow("n2", "alice", 42, t0.Add(time.Second)),
	}}
	bundles := &fakeBundles{}

	merged, err := NewEngine(unseen, bundles).MergeTenant(context.Background(), scope)
	require.NoError(t, err)

	assert.Equal(t, 2, merged["recipient1-42-LIKE_PHOTO"])
	require.Len(t, bundles.calls, 1)
	assert.Equal(t, []string{"alice"}, bundles.calls[0].delta.SenderIDs)
	assert.Equal(t, 2, bundles.calls[0].delta.Count)
}

func TestMerge_SenderAttributedKindsStaySeparate(t *testing.T) {
	t0 := time.Now().UTC()
	unseen := &fakeUnseen{rows: []domain.UnseenNotification{
		photoRow("n1", "alice", t0),
		photoRow("n2", "bob", t0),
	}}
	bundles := &fakeBundles{}

	merged, err := NewEngine(unseen, bundles).MergeTenant(context.Background(), scope)
	require.NoError(t, err)

	assert.Len(t, merged, 2)
	assert.Equal(t, 1, merged["recipient1-alice-1-2-ADD_PHOTO"])
	assert.Equal(t, 1, merged["recipient1-bob-1-2-ADD_PHOTO"])
}

func TestMerge_CollectsDistinctMediaIDs(t *testing.T) {
	t0 := time.Now().UTC()
	rows := []domain.UnseenNotification{
		photoRow("n1", "alice", t0),
		photoRow("n2", "alice", t0),
		photoRow("n3", "alice", t0),
	}
	rows[1].MediaReferenceID = ref(101)
	rows[2].MediaReferenceID = ref(100)
	unseen := &fakeUnseen{rows: rows}
	bundles := &fakeBundles{}

	_, err := NewEngine(unseen, bundles).MergeTenant(context.Background(), scope)
	require.NoError(t, err)

	require.Len(t, bundles.calls, 1)
	assert.Equal(t, []int64{100, 101}, bundles.calls[0].delta.MediaIDs)
	assert.Equal(t, 3, bundles.calls[0].delta.Count)
}

func TestMerge_UnderivableRowIsSkippedAlone(t *testing.T) {
	t0 := time.Now().UTC()
	bad := likeRow("n2", "", 42, t0) // empty sender, key derivation fails
	unseen := &fakeUnseen{rows: []domain.UnseenNotification{
		likeRow("n1", "alice", 42, t0),
		bad,
		likeRow("n3", "bob", 42, t0),
	}}
	bundles := &fakeBundles{}

	merged, err := NewEngine(unseen, bundles).MergeTenant(context.Background(), scope)
	require.NoError(t, err)

	// The bad row is neither merged nor deleted; the good rows proceed.
	assert.Equal(t, map[string]int{"recipient1-42-LIKE_PHOTO": 2}, merged)
	require.Len(t, bundles.calls, 1)
	assert.Equal(t, []string{"n1", "n3"}, bundles.calls[0].ids)
}

func TestMerge_FailedGroupDoesNotAbortOthers(t *testing.T) {
	t0 := time.Now().UTC()
	unseen := &fakeUnseen{rows: []domain.UnseenNotification{
		likeRow("n1", "alice", 42, t0),
		photoRow("n2", "alice", t0),
	}}
	bundles := &fakeBundles{failKey: "recipient1-42-LIKE_PHOTO"}

	merged, err := NewEngine(unseen, bundles).MergeTenant(context.Background(), scope)
	require.Error(t, err)

	assert.NotContains(t, merged, "recipient1-42-LIKE_PHOTO")
	assert.Equal(t, 1, merged["recipient1-alice-1-2-ADD_PHOTO"])
}

// Two passes can read the same unseen rows, as when a user opens their feed
// while the sweeper is mid-tenant. The store cancels the losing merge; the
// engine must drop that group silently rather than count it a second time.
func TestMerge_GroupConsumedByConcurrentPassIsSkipped(t *testing.T) {
	t0 := time.Now().UTC()
	unseen := &fakeUnseen{rows: []domain.UnseenNotification{
		likeRow("n1", "alice", 42, t0),
		photoRow("n2", "alice", t0),
	}}
	bundles := &fakeBundles{consumedKey: "recipient1-42-LIKE_PHOTO"}

	merged, err := NewEngine(unseen, bundles).MergeTenant(context.Background(), scope)
	require.NoError(t, err)

	// Only the surviving group is reported; the lost one is nobody's error.
	assert.Equal(t, map[string]int{"recipient1-alice-1-2-ADD_PHOTO": 1}, merged)
	assert.NotContains(t, merged, "recipient1-42-LIKE_PHOTO")
}

func TestMergeReceiver_OnlyThatRecipient(t *testing.T) {
	t0 := time.Now().UTC()
	other := likeRow("n9", "alice", 42, t0)
	other.ReceiverID = "recipient2"
	unseen := &fakeUnseen{rows: []domain.UnseenNotification{
		likeRow("n1", "alice", 42, t0),
		other,
	}}
	bundles := &fakeBundles{}

	merged, err := NewEngine(unseen, bundles).MergeReceiver(context.Background(), scope, "recipient1")
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"recipient1-42-LIKE_PHOTO": 1}, merged)
	require.Len(t, bundles.calls, 1)
}

func TestMerge_EmptyScopeIsNoop(t *testing.T) {
	bundles := &fakeBundles{}
	merged, err := NewEngine(&fakeUnseen{}, bundles).MergeTenant(context.Background(), scope)
	require.NoError(t, err)
	assert.Empty(t, merged)
	assert.Empty(t, bundles.calls)
}
