package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TenantRepo is the tenant directory: every tenant that has ever received a
// notification, enumerated by the bundling sweep.
type TenantRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewTenantRepo(client *dynamodb.Client, tableName string) *TenantRepo {
	return &TenantRepo{client: client, tableName: tableName}
}

// Ensure registers a tenant on first sight. The conditional put makes
// repeated calls for a known tenant a no-op.
func (r *TenantRepo) Ensure(ctx context.Context, tenantID string) error {
	_, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item: map[string]types.AttributeValue{
			"tenant_id":  &types.AttributeValueMemberS{Value: tenantID},
			"created_at": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
		ConditionExpression: aws.String("attribute_not_exists(tenant_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil
		}
		return fmt.Errorf("register tenant %s: %w", tenantID, err)
	}
	return nil
}

// List enumerates all known tenant ids.
func (r *TenantRepo) List(ctx context.Context) ([]string, error) {
	var tenants []string
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(r.tableName),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}
		for _, item := range out.Items {
			if id, ok := item["tenant_id"].(*types.AttributeValueMemberS); ok {
				tenants = append(tenants, id.Value)
			}
		}
		if out.LastEvaluatedKey == nil {
			return tenants, nil
		}
		startKey = out.LastEvaluatedKey
	}
}
