package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/mixtape-crawler/internal/crawler"
	"github.com/JakeFAU/mixtape-crawler/internal/mixtape"
)

func newTopic(t *testing.T) (*pstest.Server, *pubsub.Topic) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "mixtape-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, "records")
	require.NoError(t, err)
	return srv, topic
}

func TestPublishSendsEnvelope(t *testing.T) {
	srv, topic := newTopic(t)
	pub := New(topic)
	defer func() { _ = pub.Close() }()

	env := crawler.RecordEnvelope{
		CrawlID:   "crawl-1",
		RecordKey: "key-1",
		Record:    mixtape.CrawledRecord{Artist: "A", DetailURL: "https://www.datpiff.com/a.html"},
	}
	id, err := pub.Publish(context.Background(), "ignored", env)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "crawl-1", msgs[0].Attributes["crawl_id"])
	assert.Equal(t, "key-1", msgs[0].Attributes["record_key"])

	var got crawler.RecordEnvelope
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, "A", got.Record.Artist)
}

func TestPublishPlainPayload(t *testing.T) {
	srv, topic := newTopic(t)
	pub := New(topic)
	defer func() { _ = pub.Close() }()

	_, err := pub.Publish(context.Background(), "", map[string]int{"n": 1})
	require.NoError(t, err)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"n":1}`, string(msgs[0].Data))
	assert.Empty(t, msgs[0].Attributes)
}

func TestPublishRequiresTopic(t *testing.T) {
	_, err := New(nil).Publish(context.Background(), "", "x")
	require.Error(t, err)
}
