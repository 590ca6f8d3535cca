// Package events publishes a record of every broadcast transaction to a
// local journal, a Redis list or a RabbitMQ queue.
package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"OpenMCP-EVM/pkg/logger"

	"github.com/google/uuid"
)

// Event describes one broadcast transaction.
type Event struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Network   string            `json:"network"`
	From      string            `json:"from"`
	To        string            `json:"to"`
	Hash      string            `json:"hash"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Event kinds.
const (
	KindNativeTransfer  = "transfer.native"
	KindTokenTransfer   = "transfer.erc20"
	KindTokenApproval   = "approve.erc20"
	KindNFTTransfer     = "transfer.erc721"
	KindMultiTransfer   = "transfer.erc1155"
	KindSwapBuy         = "swap.buy"
	KindSwapSell        = "swap.sell"
	KindAddLiquidity    = "liquidity.add"
	KindContractWrite   = "contract.write"
	KindLiquidityLocked = "liquidity.lock"
)

// Publisher delivers events to a sink.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// Multi fans an event out to several publishers.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, evt Event) error {
	var err error
	for _, p := range m {
		err = errors.Join(err, p.Publish(ctx, evt))
	}
	return err
}

func (m Multi) Close() error {
	var err error
	for _, p := range m {
		err = errors.Join(err, p.Close())
	}
	return err
}

// Recorder stamps events and publishes them. Publish failures are logged and
// never returned: the transaction has already been broadcast.
type Recorder struct {
	pub Publisher
	now func() time.Time
	log *slog.Logger
}

// NewRecorder wraps pub. A nil publisher records nothing.
func NewRecorder(pub Publisher) *Recorder {
	if pub == nil {
		pub = Noop{}
	}
	return &Recorder{pub: pub, now: time.Now, log: logger.Named("events")}
}

// Record publishes evt after filling its id and timestamp.
func (r *Recorder) Record(ctx context.Context, evt Event) {
	if r == nil {
		return
	}
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = r.now().UTC()
	}
	if err := r.pub.Publish(ctx, evt); err != nil {
		r.log.Warn("event publish failed",
			slog.String("kind", evt.Kind),
			slog.String("hash", evt.Hash),
			slog.Any("error", err),
		)
	}
}
