package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/SystAttic/TraversiumNotificationService/internal/domain"
)

// TransactWriteItems accepts at most 100 items.
const maxItemsPerTransaction = 100

// UnseenRepo provides typed DynamoDB operations for the unseen notifications
// table. Rows are keyed (tenant_id, notification_id); per-receiver access
// goes through the receiver_key GSI.
type UnseenRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewUnseenRepo(client *dynamodb.Client, tableName string) *UnseenRepo {
	return &UnseenRepo{client: client, tableName: tableName}
}

// TableName is used by the bundle repo to address unseen rows inside the
// merge transaction.
func (r *UnseenRepo) TableName() string { return r.tableName }

// PutAll persists one event's whole fan-out in a single TransactWriteItems
// call: either every recipient's row is stored or none is, so a redelivered
// event never finds a partial fan-out to duplicate. Fan-outs beyond the
// transaction item cap are chunked.
func (r *UnseenRepo) PutAll(ctx context.Context, scope domain.Scope, ns []domain.UnseenNotification) error {
	for _, group := range chunk(ns, maxItemsPerTransaction) {
		items := make([]types.TransactWriteItem, 0, len(group))
		for i := range group {
			group[i].TenantID = scope.Tenant
			group[i].ReceiverKey = receiverKey(scope.Tenant, group[i].ReceiverID)
			item, err := attributevalue.MarshalMap(group[i])
			if err != nil {
				return fmt.Errorf("marshal unseen notification: %w", err)
			}
			items = append(items, types.TransactWriteItem{
				Put: &types.Put{TableName: aws.String(r.tableName), Item: item},
			})
		}
		if _, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: items,
		}); err != nil {
			return fmt.Errorf("store unseen fan-out: %w", err)
		}
	}
	return nil
}

// ListByTenant returns every unseen row in the tenant scope.
func (r *UnseenRepo) ListByTenant(ctx context.Context, scope domain.Scope) ([]domain.UnseenNotification, error) {
	return r.queryAll(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("tenant_id = :tid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tid": &types.AttributeValueMemberS{Value: scope.Tenant},
		},
	})
}

// ListByReceiver returns the unseen rows of a single recipient via the
// receiver_key GSI.
func (r *UnseenRepo) ListByReceiver(ctx context.Context, scope domain.Scope, receiverID string) ([]domain.UnseenNotification, error) {
	return r.queryAll(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("receiver_key-index"),
		KeyConditionExpression: aws.String("receiver_key = :rk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":rk": &types.AttributeValueMemberS{Value: receiverKey(scope.Tenant, receiverID)},
		},
	})
}

// CountByReceiver counts a recipient's unseen rows without fetching them.
func (r *UnseenRepo) CountByReceiver(ctx context.Context, scope domain.Scope, receiverID string) (int, error) {
	count := 0
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			IndexName:              aws.String("receiver_key-index"),
			KeyConditionExpression: aws.String("receiver_key = :rk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":rk": &types.AttributeValueMemberS{Value: receiverKey(scope.Tenant, receiverID)},
			},
			Select:            types.SelectCount,
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return 0, err
		}
		count += int(out.Count)
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return count, nil
}

func (r *UnseenRepo) queryAll(ctx context.Context, input *dynamodb.QueryInput) ([]domain.UnseenNotification, error) {
	var rows []domain.UnseenNotification
	var startKey map[string]types.AttributeValue
	for {
		input.ExclusiveStartKey = startKey
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		var page []domain.UnseenNotification
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal unseen notifications: %w", err)
		}
		rows = append(rows, page...)
		if out.LastEvaluatedKey == nil {
			return rows, nil
		}
		startKey = out.LastEvaluatedKey
	}
}
