// Package watch streams pair creations off chain. It holds a raw WebSocket
// JSON-RPC log subscription against the node, filtered to the configured
// factories' PairCreated topic, and fans decoded events out on the signal
// bus for downstream consumers.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"

	"github.com/dexsniper/sniperd/internal/domain"
	"github.com/dexsniper/sniperd/internal/exchange"
	"github.com/dexsniper/sniperd/internal/metrics"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	handshakeTimeout = 15 * time.Second

	subscribeID = 1

	wordSize = 32

	defaultReconnectMin = 2 * time.Second
	defaultReconnectMax = 60 * time.Second
)

// PairSink receives decoded pair-creation events. The redis signal bus
// satisfies it.
type PairSink interface {
	PublishPairEvent(ctx context.Context, ev domain.PairEvent) error
}

// Config carries the watcher settings.
type Config struct {
	// Network names the chain this watcher runs against, stamped onto
	// every published event.
	Network string

	// WSURL is the node's WebSocket JSON-RPC endpoint.
	WSURL string

	// ReconnectMin and ReconnectMax bound the exponential backoff between
	// connection attempts.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// Watcher subscribes to PairCreated logs for every factory in the registry
// and publishes one PairEvent per creation. It reconnects with backoff on
// disconnect and survives node restarts.
type Watcher struct {
	cfg       Config
	factories []exchange.Descriptor
	byFactory map[common.Address]exchange.Descriptor
	sink      PairSink
	rec       *metrics.Recorder
	logger    *slog.Logger
	closeOnce sync.Once
	done      chan struct{}
}

// NewWatcher creates a watcher over the registry's factories.
func NewWatcher(cfg Config, registry *exchange.Registry, sink PairSink, rec *metrics.Recorder, logger *slog.Logger) (*Watcher, error) {
	if cfg.WSURL == "" {
		return nil, fmt.Errorf("watch: ws url required")
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = defaultReconnectMin
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = defaultReconnectMax
	}

	factories := registry.All()
	byFactory := make(map[common.Address]exchange.Descriptor, len(factories))
	for _, d := range factories {
		byFactory[d.Factory] = d
	}

	return &Watcher{
		cfg:       cfg,
		factories: factories,
		byFactory: byFactory,
		sink:      sink,
		rec:       rec,
		logger:    logger.With(slog.String("component", "pair_watcher")),
		done:      make(chan struct{}),
	}, nil
}

// Run connects, subscribes, and pumps events until ctx is cancelled or the
// watcher is closed. Reconnects with exponential backoff on disconnect.
func (w *Watcher) Run(ctx context.Context) error {
	if len(w.factories) == 0 {
		w.logger.Info("no factories to watch, exiting")
		return nil
	}

	delay := w.cfg.ReconnectMin
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		default:
		}

		subscribed, err := w.runConnection(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if subscribed {
			delay = w.cfg.ReconnectMin
		}

		w.rec.RecordWSReconnect()
		w.logger.Warn("pair stream disconnected, reconnecting",
			slog.Duration("retry_in", delay),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > w.cfg.ReconnectMax {
			delay = w.cfg.ReconnectMax
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() { close(w.done) })
}

// runConnection dials the node, subscribes, and reads until the connection
// drops. subscribed reports whether the subscription was established, so the
// caller can reset its backoff.
func (w *Watcher) runConnection(ctx context.Context) (subscribed bool, err error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, w.cfg.WSURL, nil)
	if err != nil {
		return false, fmt.Errorf("watch: dial %s: %w", w.cfg.WSURL, err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	subID, err := w.subscribe(conn)
	if err != nil {
		return false, err
	}
	w.logger.Info("pair stream subscribed",
		slog.String("subscription", subID),
		slog.Int("factories", len(w.factories)))

	// Closing the socket is the only way to unblock the read pump.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-w.done:
			conn.Close()
		case <-stop:
		}
	}()
	go w.pingLoop(conn, stop)

	return true, w.readLoop(ctx, conn, subID)
}

// subscribe sends the eth_subscribe call and waits for its confirmation. The
// node answers the call before delivering any notifications.
func (w *Watcher) subscribe(conn *websocket.Conn) (string, error) {
	addrs := make([]common.Address, 0, len(w.factories))
	for _, d := range w.factories {
		addrs = append(addrs, d.Factory)
	}
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      subscribeID,
		Method:  "eth_subscribe",
		Params: []any{"logs", logFilter{
			Address: addrs,
			Topics:  [][]common.Hash{{pairCreatedTopic}},
		}},
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(req); err != nil {
		return "", fmt.Errorf("watch: subscribe: %w", err)
	}

	var resp rpcEnvelope
	if err := conn.ReadJSON(&resp); err != nil {
		return "", fmt.Errorf("watch: subscribe confirmation: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("watch: subscribe rejected: %w", resp.Error)
	}
	var subID string
	if err := json.Unmarshal(resp.Result, &subID); err != nil {
		return "", fmt.Errorf("watch: decode subscription id: %w", err)
	}
	if subID == "" {
		return "", fmt.Errorf("watch: node returned empty subscription id")
	}
	return subID, nil
}

// readLoop pumps messages off the connection until it drops or the watcher
// shuts down.
func (w *Watcher) readLoop(ctx context.Context, conn *websocket.Conn, subID string) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return nil
			default:
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("watch: read: %v: %w", err, domain.ErrWSDisconnect)
		}
		w.handleMessage(ctx, subID, raw)
	}
}

// pingLoop keeps the connection alive between log deliveries.
func (w *Watcher) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage decodes one frame and publishes the pair event it carries,
// if any. Frames that are not log notifications for our subscription are
// dropped silently.
func (w *Watcher) handleMessage(ctx context.Context, subID string, raw []byte) {
	var env rpcEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return
	}
	if env.Method != "eth_subscription" || env.Params == nil || env.Params.Subscription != subID {
		return
	}

	var entry logEntry
	if err := json.Unmarshal(env.Params.Result, &entry); err != nil {
		w.logger.Debug("dropping undecodable log", slog.String("error", err.Error()))
		return
	}
	if entry.Removed {
		w.logger.Debug("reorg removed a pair log", slog.String("tx", entry.TxHash.Hex()))
		return
	}

	ev, err := w.decodePairCreated(entry)
	if err != nil {
		w.logger.Debug("skipping log", slog.String("error", err.Error()))
		return
	}

	if err := w.sink.PublishPairEvent(ctx, ev); err != nil {
		w.logger.Warn("pair event publish failed",
			slog.String("pair", ev.PairAddress.Hex()),
			slog.String("error", err.Error()))
		return
	}

	w.rec.RecordPairDiscovered(string(ev.Exchange))
	w.logger.Info("pair discovered",
		slog.String("exchange", string(ev.Exchange)),
		slog.String("pair", ev.PairAddress.Hex()),
		slog.String("token0", ev.Token0.Hex()),
		slog.String("token1", ev.Token1.Hex()),
		slog.Uint64("block", ev.BlockNumber))
}

// decodePairCreated maps a raw factory log onto a PairEvent. token0 and
// token1 ride in the indexed topics, the pair address is the first data word.
func (w *Watcher) decodePairCreated(entry logEntry) (domain.PairEvent, error) {
	d, ok := w.byFactory[entry.Address]
	if !ok {
		return domain.PairEvent{}, fmt.Errorf("log from unwatched factory %s", entry.Address.Hex())
	}
	if len(entry.Topics) != 3 || entry.Topics[0] != pairCreatedTopic {
		return domain.PairEvent{}, fmt.Errorf("log is not a pair creation")
	}
	if len(entry.Data) < wordSize {
		return domain.PairEvent{}, fmt.Errorf("pair creation data too short: %d bytes", len(entry.Data))
	}
	return domain.PairEvent{
		Network:      w.cfg.Network,
		Exchange:     d.ID,
		PairAddress:  common.BytesToAddress(entry.Data[:wordSize]),
		Token0:       common.BytesToAddress(entry.Topics[1].Bytes()),
		Token1:       common.BytesToAddress(entry.Topics[2].Bytes()),
		BlockNumber:  uint64(entry.BlockNumber),
		DiscoveredAt: time.Now().UTC(),
	}, nil
}
