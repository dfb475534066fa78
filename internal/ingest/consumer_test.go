package ingest

import (
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/SystAttic/TraversiumNotificationService/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayload_Valid(t *testing.T) {
	body := `{
		"senderId": "alice",
		"receiverIds": ["u1", "u2"],
		"mediaReferenceId": 42,
		"action": "LIKE",
		"timestamp": "2026-03-01T12:00:00Z"
	}`

	raw, err := ParsePayload(body)
	require.NoError(t, err)

	assert.Equal(t, "alice", raw.SenderID)
	assert.Equal(t, []string{"u1", "u2"}, raw.ReceiverIDs)
	require.NotNil(t, raw.MediaReferenceID)
	assert.Equal(t, int64(42), *raw.MediaReferenceID)
	assert.Nil(t, raw.CollectionReferenceID)
	assert.Equal(t, domain.ActionLike, raw.Action)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), raw.Timestamp)
}

func TestParsePayload_MissingTimestampIsZero(t *testing.T) {
	raw, err := ParsePayload(`{"senderId":"alice","receiverIds":["u1"],"action":"FOLLOW"}`)
	require.NoError(t, err)
	assert.True(t, raw.Timestamp.IsZero())
}

func TestParsePayload_NotJSON(t *testing.T) {
	_, err := ParsePayload("not json at all")
	assert.True(t, errors.Is(err, domain.ErrInvalidNotification))
}

func TestParsePayload_MissingRequiredFields(t *testing.T) {
	cases := map[string]string{
		"no sender":       `{"receiverIds":["u1"],"action":"FOLLOW"}`,
		"no receivers":    `{"senderId":"alice","action":"FOLLOW"}`,
		"empty receivers": `{"senderId":"alice","receiverIds":[],"action":"FOLLOW"}`,
		"blank receiver":  `{"senderId":"alice","receiverIds":[""],"action":"FOLLOW"}`,
		"no action":       `{"senderId":"alice","receiverIds":["u1"]}`,
	}
	for name, body := range cases {
		_, err := ParsePayload(body)
		assert.True(t, errors.Is(err, domain.ErrInvalidNotification), name)
	}
}

func TestParsePayload_UnknownAction(t *testing.T) {
	_, err := ParsePayload(`{"senderId":"alice","receiverIds":["u1"],"action":"EXPLODE"}`)
	assert.True(t, errors.Is(err, domain.ErrInvalidNotification))
}

func TestTenantOf(t *testing.T) {
	c := &Consumer{defaultTenant: "public"}

	msg := types.Message{}
	assert.Equal(t, "public", c.tenantOf(msg))

	msg.MessageAttributes = map[string]types.MessageAttributeValue{
		"tenantId": {StringValue: aws.String("acme")},
	}
	assert.Equal(t, "acme", c.tenantOf(msg))

	msg.MessageAttributes["tenantId"] = types.MessageAttributeValue{StringValue: aws.String("")}
	assert.Equal(t, "public", c.tenantOf(msg))
}
