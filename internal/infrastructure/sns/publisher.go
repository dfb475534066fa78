package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/SystAttic/TraversiumNotificationService/internal/config"
)

// BundlePublisher fans merged bundle keys out to an SNS topic so
// out-of-process consumers (push senders, alerting) see the same state
// transitions the live channel does.
type BundlePublisher interface {
	PublishBundleUpdate(ctx context.Context, tenantID, bundleKey string, mergedCount int) error
}

type publisher struct {
	client   *sns.Client
	topicARN string
}

func NewPublisher(cfg *config.Config) (BundlePublisher, error) {
	if cfg.SNSTopicARN == "" {
		return nil, fmt.Errorf("no bundle topic configured")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return nil, err
	}
	return &publisher{client: sns.NewFromConfig(awsCfg), topicARN: cfg.SNSTopicARN}, nil
}

func (p *publisher) PublishBundleUpdate(ctx context.Context, tenantID, bundleKey string, mergedCount int) error {
	body, err := json.Marshal(map[string]interface{}{
		"bundle_id":    bundleKey,
		"merged_count": mergedCount,
	})
	if err != nil {
		return err
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"tenantId": {
				DataType:    aws.String("String"),
				StringValue: aws.String(tenantID),
			},
		},
	})
	return err
}
