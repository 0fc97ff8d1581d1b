package delivery

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	RelayChannel = "talentnest:push"

	relayQueue          = 256
	relayPublishTimeout = 2 * time.Second
	relayRetryMax       = 30 * time.Second
)

type relayEnvelope struct {
	Origin  string          `json:"origin"`
	User    string          `json:"user"`
	Payload json.RawMessage `json:"payload"`
}

// RedisRelay fans frames out between nodes over Redis pub/sub so a user
// connected to another node still receives them. Frames published by this
// node are ignored when they come back.
type RedisRelay struct {
	client *redis.Client
	nodeID string
	log    *zap.Logger

	out       chan relayEnvelope
	ready     chan struct{}
	readyOnce sync.Once
	retryMin  time.Duration
}

var _ Relay = (*RedisRelay)(nil)

func NewRedisRelay(client *redis.Client, nodeID string, log *zap.Logger) *RedisRelay {
	return &RedisRelay{
		client:   client,
		nodeID:   nodeID,
		log:      log,
		out:      make(chan relayEnvelope, relayQueue),
		ready:    make(chan struct{}),
		retryMin: 500 * time.Millisecond,
	}
}

// Publish queues a frame for the other nodes. It never blocks; frames are
// dropped when the queue is full.
func (r *RedisRelay) Publish(user string, payload []byte) {
	env := relayEnvelope{Origin: r.nodeID, User: user, Payload: payload}
	select {
	case r.out <- env:
	default:
		r.log.Warn("relay queue full, dropping frame", zap.String("user", user))
	}
}

// Ready is closed once the subscription is active.
func (r *RedisRelay) Ready() <-chan struct{} {
	return r.ready
}

// Serve keeps the relay subscribed until ctx is done, resubscribing with
// exponential backoff whenever Run fails.
func (r *RedisRelay) Serve(ctx context.Context, sink func(user string, payload []byte) int) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.retryMin
	b.MaxInterval = relayRetryMax
	b.MaxElapsedTime = 0

	_ = backoff.RetryNotify(func() error {
		started := time.Now()
		err := r.Run(ctx, sink)
		if err == nil || ctx.Err() != nil {
			return nil
		}
		// a subscription that held for a while starts over from the shortest wait
		if time.Since(started) > relayRetryMax {
			b.Reset()
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		r.log.Warn("push relay down, resubscribing", zap.Error(err), zap.Duration("wait", wait))
	})
}

// Run subscribes to the relay channel and hands every foreign frame to sink,
// publishing queued frames in between. It returns when ctx is done.
func (r *RedisRelay) Run(ctx context.Context, sink func(user string, payload []byte) int) error {
	sub := r.client.Subscribe(ctx, RelayChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return errors.Wrap(err, "relay subscribe")
	}
	r.readyOnce.Do(func() { close(r.ready) })
	r.log.Info("push relay subscribed", zap.String("channel", RelayChannel), zap.String("node", r.nodeID))

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-r.out:
			r.publish(ctx, env)
		case msg, ok := <-messages:
			if !ok {
				return errors.New("relay subscription closed")
			}
			r.receive(msg, sink)
		}
	}
}

func (r *RedisRelay) publish(ctx context.Context, env relayEnvelope) {
	data, err := json.Marshal(env)
	if err != nil {
		r.log.Error("encode relay frame", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, relayPublishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, RelayChannel, data).Err(); err != nil {
		r.log.Warn("relay publish failed", zap.String("user", env.User), zap.Error(err))
	}
}

func (r *RedisRelay) receive(msg *redis.Message, sink func(string, []byte) int) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		r.log.Warn("malformed relay frame", zap.Error(err))
		return
	}
	if env.Origin == r.nodeID {
		return
	}
	sink(env.User, env.Payload)
}
