package resubmission

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aristath/dealflow/internal/domain"
	testingpkg "github.com/aristath/dealflow/internal/testing"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	args []*redis.XAddArgs
	err  error
}

func (f *fakeStream) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.args = append(f.args, a)
	cmd := redis.NewStringCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal("1-0")
	}
	return cmd
}

type fakePublisher struct {
	key string
	msg amqp.Publishing
	err error
}

func (f *fakePublisher) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	f.key = key
	f.msg = msg
	return f.err
}

func TestRedisSink_Publish(t *testing.T) {
	stream := &fakeStream{}
	sink := NewRedisSink(stream, "deals.resubmission", 1000)
	n := notice("n-1", testingpkg.FixtureEpoch)

	require.NoError(t, sink.Publish(context.Background(), n))
	require.Len(t, stream.args, 1)
	args := stream.args[0]
	assert.Equal(t, "deals.resubmission", args.Stream)
	assert.Equal(t, int64(1000), args.MaxLen)
	assert.True(t, args.Approx)

	values := args.Values.(map[string]interface{})
	assert.Equal(t, "n-1", values["event_id"])
	var decoded domain.ApplicantNotice
	require.NoError(t, json.Unmarshal([]byte(values["data"].(string)), &decoded))
	assert.Equal(t, n.FailingDimensions, decoded.FailingDimensions)
	assert.NotContains(t, values["data"], "investor")

	stream.err = errors.New("connection refused")
	assert.Error(t, sink.Publish(context.Background(), n))
	assert.Equal(t, "redis:deals.resubmission", sink.Name())
}

func TestAMQPSink_Publish(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewAMQPSink(pub, "deal_resubmission_events")

	require.NoError(t, sink.Publish(context.Background(), notice("n-1", testingpkg.FixtureEpoch)))
	assert.Equal(t, "deal_resubmission_events", pub.key)
	assert.Equal(t, amqp.Persistent, pub.msg.DeliveryMode)
	assert.Equal(t, "application/json", pub.msg.ContentType)
	assert.Equal(t, "n-1", pub.msg.MessageId)
	assert.Contains(t, string(pub.msg.Body), `"failing_dimensions":["revenue_share_ratio"]`)

	pub.err = errors.New("channel closed")
	assert.ErrorContains(t, sink.Publish(context.Background(), notice("n-2", testingpkg.FixtureEpoch)), "channel closed")
}

func TestNewRedisClient_RejectsBadURL(t *testing.T) {
	_, err := NewRedisClient("not a url", "")
	assert.Error(t, err)

	client, err := NewRedisClient("redis://localhost:6379/2", "secret")
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, "secret", client.Options().Password)
	assert.Equal(t, 2, client.Options().DB)
}
