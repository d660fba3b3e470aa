package subscriber

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"feedflow/logger"
	"feedflow/models"
)

// Client consumes one broker subscription bound to a single symbol.
// Each delivery is decoded, validated and filtered on the broker's own
// callback goroutine, so the hot path only decodes and enqueues; it
// never performs I/O or waits.
type Client struct {
	subscription string
	symbol       string
	source       Source
	enqueue      func(models.BarMessage) bool
	log          *logger.Log

	// rejectLimit keeps a malformed-payload storm from flooding the log.
	rejectLimit *rate.Limiter
}

// NewClient binds subscription to symbol. enqueue hands a decoded bar to
// the owning feed; its return value reports whether the feed still
// accepts data, but the delivery is acknowledged either way so a stopped
// feed does not trigger broker redelivery storms.
func NewClient(source Source, subscription, symbol string, enqueue func(models.BarMessage) bool) *Client {
	return &Client{
		subscription: subscription,
		symbol:       symbol,
		source:       source,
		enqueue:      enqueue,
		log:          logger.GetLogger(),
		rejectLimit:  rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// Handle tracks one subscribe attempt.
type Handle struct {
	ID     string
	cancel context.CancelFunc
	done   chan error
}

// Done yields the terminal error of the streaming pull: nil on clean
// cancellation, the transport error otherwise.
func (h *Handle) Done() <-chan error { return h.done }

// Cancel stops the streaming pull. In-flight deliveries still settle.
func (h *Handle) Cancel() { h.cancel() }

// Subscribe verifies the subscription exists and opens a streaming pull
// on it. The returned handle reports the pull's terminal error.
func (c *Client) Subscribe(ctx context.Context) (*Handle, error) {
	recv := c.source.Subscription(c.subscription)

	ok, err := recv.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve subscription %s: %w", c.subscription, err)
	}
	if !ok {
		return nil, fmt.Errorf("subscription %s does not exist", c.subscription)
	}

	recvCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		ID:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan error, 1),
	}

	go func() {
		err := recv.Receive(recvCtx, c.onMessage)
		if err == nil && recvCtx.Err() == nil {
			err = errors.New("streaming pull completed unexpectedly")
		}
		h.done <- err
		close(h.done)
	}()

	c.log.WithComponent("subscription_client").WithFields(logger.Fields{
		"subscription": c.subscription,
		"symbol":       c.symbol,
		"attempt_id":   h.ID,
	}).Info("subscribed")

	return h, nil
}

// onMessage runs on the broker client's delivery goroutines.
func (c *Client) onMessage(_ context.Context, msg *Message) {
	bar, err := models.DecodeBar(msg.Data)
	if err != nil {
		if errors.Is(err, models.ErrNotBar) {
			// Foreign message types share the topic; not an error.
			msg.Ack()
			return
		}
		logger.IncrementBarRejected()
		if c.rejectLimit.Allow() {
			c.log.WithComponent("subscription_client").WithFields(logger.Fields{
				"subscription": c.subscription,
				"symbol":       c.symbol,
			}).WithError(err).Warn("rejecting message for redelivery")
		}
		msg.Nack()
		return
	}

	if bar.Symbol != c.symbol {
		// Processed successfully, just not ours.
		logger.IncrementBarFiltered()
		msg.Ack()
		return
	}

	logger.IncrementBarRead(c.subscription, len(msg.Data))
	c.enqueue(bar)
	msg.Ack()
}
