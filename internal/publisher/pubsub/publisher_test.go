package pubsub_test

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

	pspublisher "github.com/JakeFAU/storefront-crawler/internal/publisher/pubsub"
)

func newFakeClient(t *testing.T) (*pstest.Server, *pubsub.Client) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.Dial(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	return srv, client
}

func TestPublisherPublishesJSON(t *testing.T) {
	ctx := context.Background()
	srv, client := newFakeClient(t)

	_, err := client.CreateTopic(ctx, "price-observations")
	require.NoError(t, err)

	pub := pspublisher.New(client)
	id, err := pub.Publish(ctx, "price-observations", map[string]any{
		"url":   "https://shop.example/p/1",
		"price": 1500,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)
	assert.Equal(t, "application/json", msgs[0].Attributes["content_type"])

	var body map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Data, &body))
	assert.Equal(t, "https://shop.example/p/1", body["url"])
	assert.InDelta(t, 1500, body["price"], 0)

	require.NoError(t, pub.Close())
}

func TestPublisherUnknownTopic(t *testing.T) {
	ctx := context.Background()
	_, client := newFakeClient(t)

	pub := pspublisher.New(client)
	t.Cleanup(func() { _ = pub.Close() })

	_, err := pub.Publish(ctx, "missing", "payload")
	require.ErrorContains(t, err, "publish message")
}

func TestPublisherRejectsUnmarshalablePayload(t *testing.T) {
	_, client := newFakeClient(t)

	pub := pspublisher.New(client)
	t.Cleanup(func() { _ = pub.Close() })

	_, err := pub.Publish(context.Background(), "price-observations", make(chan int))
	require.ErrorContains(t, err, "marshal payload")
}

func TestDialRequiresProject(t *testing.T) {
	_, err := pspublisher.Dial(context.Background(), "")
	require.ErrorContains(t, err, "project id")
}

func TestUnconfiguredPublisher(t *testing.T) {
	pub := &pspublisher.Publisher{}
	_, err := pub.Publish(context.Background(), "t", "x")
	require.Error(t, err)
	require.NoError(t, pub.Close())
}
