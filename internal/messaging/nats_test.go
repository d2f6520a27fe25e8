package messaging

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/listingflow/internal/models"
)

func TestNewMessage(t *testing.T) {
	src := models.Descriptor{Container: "listings-raw", Key: "people/1.json"}
	msg := NewMessage("listings.exported", src, []byte(`{"name":"Luke"}`))

	assert.Equal(t, "listings.exported", msg.Subject)
	assert.Equal(t, `{"name":"Luke"}`, string(msg.Data))
	assert.Equal(t, "listings-raw", msg.Header.Get(HeaderContainer))
	assert.Equal(t, "people/1.json", msg.Header.Get(HeaderKey))
}

func TestDefaultNATSConfig(t *testing.T) {
	cfg := DefaultNATSConfig("nats://localhost:4222", "listings.exported")
	assert.Equal(t, -1, cfg.MaxReconnects)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestNewNATSEmitter_RequiresSubject(t *testing.T) {
	_, err := NewNATSEmitter(DefaultNATSConfig("nats://localhost:4222", ""))
	require.Error(t, err)
}

func TestEmit_CancelledContext(t *testing.T) {
	e := &NATSEmitter{subject: "listings.exported"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Emit(ctx, models.Descriptor{Container: "c", Key: "k"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNATSEmitter_PublishesToSubscribers(t *testing.T) {
	srv := natsserver.RunRandClientPortServer()
	defer srv.Shutdown()

	sub, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	defer sub.Close()
	received, err := sub.SubscribeSync("listings.exported")
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	emitter, err := NewNATSEmitter(DefaultNATSConfig(srv.ClientURL(), "listings.exported"))
	require.NoError(t, err)
	defer emitter.Close()

	src := models.Descriptor{Container: "listings-raw", Key: "people/1.json"}
	require.NoError(t, emitter.Emit(context.Background(), src, []byte(`{"name":"Luke"}`)))

	msg, err := received.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Luke"}`, string(msg.Data))
	assert.Equal(t, "listings-raw", msg.Header.Get(HeaderContainer))
	assert.Equal(t, "people/1.json", msg.Header.Get(HeaderKey))
}

func TestNATSEmitter_ClosedConnection(t *testing.T) {
	srv := natsserver.RunRandClientPortServer()
	defer srv.Shutdown()

	emitter, err := NewNATSEmitter(DefaultNATSConfig(srv.ClientURL(), "listings.exported"))
	require.NoError(t, err)
	emitter.conn.Close()

	err = emitter.Emit(context.Background(), models.Descriptor{Container: "c", Key: "k"}, nil)
	assert.ErrorIs(t, err, nats.ErrConnectionClosed)
}
