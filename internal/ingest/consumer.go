package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/SystAttic/TraversiumNotificationService/internal/config"
	"github.com/SystAttic/TraversiumNotificationService/internal/domain"
	"github.com/SystAttic/TraversiumNotificationService/internal/pkg/validate"
)

const (
	tenantAttributeKey = "tenantId"
	receiveWaitSeconds = 20
	receiveBatchSize   = 10
)

// Ingestor is the application boundary the consumer hands parsed events to.
type Ingestor interface {
	Ingest(ctx context.Context, scope domain.Scope, raw domain.RawNotification) ([]domain.UnseenNotification, error)
}

// rawPayload is the wire shape of one message-bus event.
type rawPayload struct {
	Timestamp             *time.Time `json:"timestamp"`
	SenderID              string     `json:"senderId" validate:"required"`
	ReceiverIDs           []string   `json:"receiverIds" validate:"required,min=1,dive,required"`
	CollectionReferenceID *int64     `json:"collectionReferenceId"`
	NodeReferenceID       *int64     `json:"nodeReferenceId"`
	MediaReferenceID      *int64     `json:"mediaReferenceId"`
	CommentReferenceID    *int64     `json:"commentReferenceId"`
	Action                string     `json:"action" validate:"required"`
}

// Consumer long-polls the notification queue and feeds events into the
// ingestion path. Malformed or unclassifiable messages are logged and
// deleted (skipped, never retried); messages that fail on infrastructure are
// left on the queue for redelivery.
type Consumer struct {
	client        *sqs.Client
	queueURL      string
	defaultTenant string
	ingestor      Ingestor
}

// NewClient creates an SQS client, honoring the LocalStack endpoint override
// the same way the DynamoDB client does.
func NewClient(cfg *config.Config) *sqs.Client {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		panic("failed to load AWS config: " + err.Error())
	}

	clientOpts := []func(*sqs.Options){}
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return sqs.NewFromConfig(awsCfg, clientOpts...)
}

func NewConsumer(client *sqs.Client, queueURL, defaultTenant string, ingestor Ingestor) *Consumer {
	return &Consumer{client: client, queueURL: queueURL, defaultTenant: defaultTenant, ingestor: ingestor}
}

// Run receives until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	slog.Info("notification consumer started", "queue", c.queueURL)
	for {
		if ctx.Err() != nil {
			return
		}
		out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:              aws.String(c.queueURL),
			MaxNumberOfMessages:   receiveBatchSize,
			WaitTimeSeconds:       receiveWaitSeconds,
			MessageAttributeNames: []string{tenantAttributeKey},
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("could not receive messages", "err", err)
			time.Sleep(time.Second)
			continue
		}
		for _, msg := range out.Messages {
			c.handle(ctx, msg)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg types.Message) {
	tenant := c.tenantOf(msg)
	scope := domain.Scope{Tenant: tenant}

	raw, err := ParsePayload(aws.ToString(msg.Body))
	if err != nil {
		slog.Error("invalid notification payload, skipping message",
			"tenant", tenant, "message_id", aws.ToString(msg.MessageId), "err", err)
		c.delete(ctx, msg)
		return
	}

	saved, err := c.ingestor.Ingest(ctx, scope, raw)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidNotification) {
			slog.Error("unclassifiable notification, skipping message",
				"tenant", tenant, "message_id", aws.ToString(msg.MessageId), "err", err)
			c.delete(ctx, msg)
			return
		}
		// Transient failure: leave the message for redelivery.
		slog.Error("could not ingest notification",
			"tenant", tenant, "message_id", aws.ToString(msg.MessageId), "err", err)
		return
	}

	slog.Info("ingested notification", "tenant", tenant, "recipients", len(saved))
	c.delete(ctx, msg)
}

// ParsePayload decodes and validates one message body into a RawNotification.
func ParsePayload(body string) (domain.RawNotification, error) {
	var p rawPayload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return domain.RawNotification{}, fmt.Errorf("%w: %v", domain.ErrInvalidNotification, err)
	}
	if err := validate.Struct(p); err != nil {
		return domain.RawNotification{}, fmt.Errorf("%w: %v", domain.ErrInvalidNotification, err)
	}
	action, err := domain.ParseAction(p.Action)
	if err != nil {
		return domain.RawNotification{}, err
	}

	raw := domain.RawNotification{
		SenderID:              p.SenderID,
		ReceiverIDs:           p.ReceiverIDs,
		CollectionReferenceID: p.CollectionReferenceID,
		NodeReferenceID:       p.NodeReferenceID,
		MediaReferenceID:      p.MediaReferenceID,
		CommentReferenceID:    p.CommentReferenceID,
		Action:                action,
	}
	if p.Timestamp != nil {
		raw.Timestamp = *p.Timestamp
	}
	return raw, nil
}

func (c *Consumer) tenantOf(msg types.Message) string {
	if attr, ok := msg.MessageAttributes[tenantAttributeKey]; ok && attr.StringValue != nil && *attr.StringValue != "" {
		return *attr.StringValue
	}
	return c.defaultTenant
}

func (c *Consumer) delete(ctx context.Context, msg types.Message) {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		slog.Warn("could not delete message", "message_id", aws.ToString(msg.MessageId), "err", err)
	}
}
