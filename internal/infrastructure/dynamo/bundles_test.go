package dynamo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/SystAttic/TraversiumNotificationService/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeItems_DeletesAreGuarded(t *testing.T) {
	r := &BundleRepo{tableName: "notification_bundles", unseenTable: "unseen_notifications"}
	media := int64(42)
	delta := domain.BundleDelta{
		BundleKey:        "u1-42-LIKE_PHOTO",
		ReceiverID:       "u1",
		SenderIDs:        []string{"alice", "bob"},
		Type:             domain.TypeLikePhoto,
		MediaReferenceID: &media,
	}

	items, err := r.mergeItems(domain.Scope{Tenant: "public"}, delta, []string{"n1", "n2"})
	require.NoError(t, err)
	require.Len(t, items, 3)

	require.NotNil(t, items[0].Update)
	count, ok := items[0].Update.ExpressionAttributeValues[":count"].(*types.AttributeValueMemberN)
	require.True(t, ok)
	assert.Equal(t, "2", count.Value)

	// Each delete only fires if the row is still there; a row another merge
	// already consumed cancels the whole transaction instead.
	for i, id := range []string{"n1", "n2"} {
		del := items[i+1].Delete
		require.NotNil(t, del)
		assert.Equal(t, "unseen_notifications", aws.ToString(del.TableName))
		assert.Equal(t, "attribute_exists(notification_id)", aws.ToString(del.ConditionExpression))
		sk, ok := del.Key["notification_id"].(*types.AttributeValueMemberS)
		require.True(t, ok)
		assert.Equal(t, id, sk.Value)
	}
}

func TestChunk_TransactionSizedBatches(t *testing.T) {
	ids := make([]string, 250)
	for i := range ids {
		ids[i] = fmt.Sprintf("n%d", i)
	}

	chunks := chunk(ids, maxDeletesPerTransaction)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 99)
	assert.Len(t, chunks[1], 99)
	assert.Len(t, chunks[2], 52)
	assert.Equal(t, "n0", chunks[0][0])
	assert.Equal(t, "n99", chunks[1][0])
	assert.Equal(t, "n249", chunks[2][51])
}

func TestChunk_SmallInputIsOneBatch(t *testing.T) {
	chunks := chunk([]string{"n1", "n2"}, maxDeletesPerTransaction)
	require.Len(t, chunks, 1)
	assert.Equal(t, []string{"n1", "n2"}, chunks[0])
	assert.Empty(t, chunk([]string{}, maxDeletesPerTransaction))
}

func TestIsConditionCancellation(t *testing.T) {
	assert.False(t, isConditionCancellation(errors.New("throttled")))

	cancelled := &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{
			{Code: aws.String("None")},
			{Code: aws.String("ConditionalCheckFailed")},
		},
	}
	assert.True(t, isConditionCancellation(fmt.Errorf("transact: %w", cancelled)))

	conflict := &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{
			{Code: aws.String("TransactionConflict")},
		},
	}
	assert.False(t, isConditionCancellation(conflict))
}
