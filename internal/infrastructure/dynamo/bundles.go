package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/SystAttic/TraversiumNotificationService/internal/domain"
)

// Transactions are capped at 100 items; one is the bundle upsert, the rest
// are unseen-row deletes.
const maxDeletesPerTransaction = 99

// BundleRepo provides typed DynamoDB operations for the notification bundles
// table. Bundles are keyed (tenant_id, bundle_key) — the table's primary key
// is the one-bundle-per-key constraint.
type BundleRepo struct {
	client      *dynamodb.Client
	tableName   string
	unseenTable string
}

func NewBundleRepo(client *dynamodb.Client, tableName, unseenTable string) *BundleRepo {
	return &BundleRepo{client: client, tableName: tableName, unseenTable: unseenTable}
}

// Merge applies one group's delta to its bundle and deletes the consumed
// unseen rows in the same TransactWriteItems call. The upsert is a single
// read-modify-write: if_not_exists seeds create-only fields (first
// timestamp, reference ids), ADD grows the count and the sender/media sets.
// Groups larger than the transaction cap are chunked; ADD arithmetic keeps
// the totals exact across chunks. Every delete is guarded with
// attribute_exists, so a pass that lost a race to a concurrent merge of the
// same rows cancels instead of re-applying its count; that cancellation is
// reported as ErrConflict.
func (r *BundleRepo) Merge(ctx context.Context, scope domain.Scope, delta domain.BundleDelta, unseenIDs []string) error {
	for _, ids := range chunk(unseenIDs, maxDeletesPerTransaction) {
		items, err := r.mergeItems(scope, delta, ids)
		if err != nil {
			return err
		}
		if _, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: items,
		}); err != nil {
			if isConditionCancellation(err) {
				return fmt.Errorf("bundle %s rows already consumed by a concurrent merge: %w", delta.BundleKey, domain.ErrConflict)
			}
			return fmt.Errorf("merge transaction for bundle %s: %w", delta.BundleKey, err)
		}
	}
	return nil
}

// mergeItems builds one merge transaction: the bundle upsert followed by
// conditional deletes of the consumed unseen rows.
func (r *BundleRepo) mergeItems(scope domain.Scope, delta domain.BundleDelta, ids []string) ([]types.TransactWriteItem, error) {
	update, err := r.bundleUpdate(scope, delta, len(ids))
	if err != nil {
		return nil, err
	}
	items := make([]types.TransactWriteItem, 0, len(ids)+1)
	items = append(items, types.TransactWriteItem{Update: update})
	for _, id := range ids {
		items = append(items, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName:           aws.String(r.unseenTable),
				Key:                 compositeKey("tenant_id", scope.Tenant, "notification_id", id),
				ConditionExpression: aws.String("attribute_exists(notification_id)"),
			},
		})
	}
	return items, nil
}

// isConditionCancellation reports whether a transaction was cancelled by a
// failed condition check, i.e. one of the guarded deletes hit a row another
// merge already consumed.
func isConditionCancellation(err error) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return false
	}
	for _, reason := range tce.CancellationReasons {
		if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}

func (r *BundleRepo) bundleUpdate(scope domain.Scope, delta domain.BundleDelta, count int) (*types.Update, error) {
	values := map[string]types.AttributeValue{
		":recv":    &types.AttributeValueMemberS{Value: delta.ReceiverID},
		":rkey":    &types.AttributeValueMemberS{Value: receiverKey(scope.Tenant, delta.ReceiverID)},
		":ntype":   &types.AttributeValueMemberS{Value: string(delta.Type)},
		":count":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", count)},
		":senders": &types.AttributeValueMemberSS{Value: delta.SenderIDs},
	}
	for _, ts := range []struct {
		name string
		at   interface{}
	}{
		{":first", delta.FirstTimestamp},
		{":last", delta.LastTimestamp},
		{":created", delta.FirstTimestamp},
	} {
		av, err := attributevalue.Marshal(ts.at)
		if err != nil {
			return nil, fmt.Errorf("marshal timestamp: %w", err)
		}
		values[ts.name] = av
	}

	set := []string{
		"receiver_id = if_not_exists(receiver_id, :recv)",
		"receiver_key = if_not_exists(receiver_key, :rkey)",
		"notification_type = if_not_exists(notification_type, :ntype)",
		"first_timestamp = if_not_exists(first_timestamp, :first)",
		"created_at = if_not_exists(created_at, :created)",
		"last_timestamp = :last",
	}
	add := []string{"notification_count :count", "sender_ids :senders"}

	for _, ref := range []struct {
		attr  string
		value *int64
	}{
		{"collection_reference_id", delta.CollectionReferenceID},
		{"node_reference_id", delta.NodeReferenceID},
		{"media_reference_id", delta.MediaReferenceID},
		{"comment_reference_id", delta.CommentReferenceID},
	} {
		if ref.value == nil {
			continue
		}
		placeholder := ":" + ref.attr
		values[placeholder] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", *ref.value)}
		set = append(set, fmt.Sprintf("%s = if_not_exists(%s, %s)", ref.attr, ref.attr, placeholder))
	}
	if len(delta.MediaIDs) > 0 {
		values[":mids"] = numberSet(delta.MediaIDs)
		add = append(add, "media_ids :mids")
	}

	expr := "SET " + strings.Join(set, ", ") + " ADD " + strings.Join(add, ", ")
	return &types.Update{
		TableName:                 aws.String(r.tableName),
		Key:                       compositeKey("tenant_id", scope.Tenant, "bundle_key", delta.BundleKey),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeValues: values,
	}, nil
}

// ListByReceiver returns one offset/limit page of a recipient's bundles via
// the receiver_key GSI, newest last_timestamp first.
func (r *BundleRepo) ListByReceiver(ctx context.Context, scope domain.Scope, receiverID string, offset, limit int) ([]domain.Bundle, error) {
	needed := offset + limit
	var bundles []domain.Bundle
	var startKey map[string]types.AttributeValue
	for len(bundles) < needed {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			IndexName:              aws.String("receiver_key-last_timestamp-index"),
			KeyConditionExpression: aws.String("receiver_key = :rk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":rk": &types.AttributeValueMemberS{Value: receiverKey(scope.Tenant, receiverID)},
			},
			ScanIndexForward:  aws.Bool(false),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}
		var page []domain.Bundle
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal bundles: %w", err)
		}
		bundles = append(bundles, page...)
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	if offset >= len(bundles) {
		return []domain.Bundle{}, nil
	}
	bundles = bundles[offset:min(offset+limit, len(bundles))]
	for i := range bundles {
		bundles[i].MediaCount = len(bundles[i].MediaIDs)
	}
	return bundles, nil
}
