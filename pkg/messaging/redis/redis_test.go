package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisBrokerPublish(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	sub := client.Subscribe(context.Background(), "practice.appointment.booked")
	defer sub.Close()
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	broker := NewRedisBroker(client, DefaultConfig(), zerolog.Nop())
	require.NoError(t, broker.Publish(context.Background(), "practice.appointment.booked", []byte(`{"id":"1"}`)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"1"}`, msg.Payload)
}

func TestRedisBrokerOpensCircuit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	mr.Close()

	cfg := DefaultConfig()
	cfg.FailureThreshold = 2
	broker := NewRedisBroker(client, cfg, zerolog.Nop()).(*RedisBroker)

	for i := 0; i < 2; i++ {
		assert.Error(t, broker.Publish(context.Background(), "ch", []byte("x")))
	}
	assert.Equal(t, gobreaker.StateOpen, broker.cb.State())

	err := broker.Publish(context.Background(), "ch", []byte("x"))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}
