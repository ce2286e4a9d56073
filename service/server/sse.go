package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/gabrielcipriano/bittensor-explorer/service/metrics"
	natspkg "github.com/gabrielcipriano/bittensor-explorer/service/nats"
)

const (
	statsStreamName   = "stats"
	sseKeepalive      = 15 * time.Second
	sseMessageBacklog = 10
)

// SSEPublisher relays token stats events from JetStream to SSE clients.
type SSEPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

// NewSSEPublisher connects to NATS for SSE relaying.
func NewSSEPublisher(natsURL string, logger *slog.Logger) (*SSEPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("bittensor-explorer-sse"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	logger.Info("SSE publisher initialized", "nats_url", natsURL)
	return &SSEPublisher{nc: nc, js: js, logger: logger}, nil
}

// Close closes the NATS connection.
func (p *SSEPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("SSE publisher closed")
	}
	return nil
}

// sseWriter writes events and flushes after each one.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s sseWriter) event(name string, data []byte) {
	fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data)
	s.flush()
}

func (s sseWriter) comment(text string) {
	fmt.Fprintf(s.w, ": %s\n\n", text)
	s.flush()
}

func (s sseWriter) flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}

// handleStreamStats streams token stats snapshots as they are published.
// GET /api/v1/stream/stats?symbol=TAO
func handleStreamStats(publisher *SSEPublisher, defaultSymbol string, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			symbol = defaultSymbol
		}
		subject := natspkg.SubjectPrefix + symbol

		// The server write timeout would cut long-lived streams.
		if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
			logger.DebugContext(ctx, "could not clear write deadline", "error", err)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		flusher, _ := w.(http.Flusher)
		out := sseWriter{w: w, flusher: flusher}
		out.flush()

		cons, err := publisher.js.CreateOrUpdateConsumer(ctx, natspkg.StreamName, jetstream.ConsumerConfig{
			FilterSubject: subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			DeliverPolicy: jetstream.DeliverNewPolicy,
		})
		if err != nil {
			logger.ErrorContext(ctx, "failed to create consumer", "subject", subject, "error", err)
			out.event("error", []byte(`{"error":"failed to subscribe"}`))
			return
		}

		if m != nil {
			m.RecordSSEConnectionChange(statsStreamName, 1)
			defer m.RecordSSEConnectionChange(statsStreamName, -1)
		}
		logger.DebugContext(ctx, "SSE client connected", "symbol", symbol, "remote_addr", r.RemoteAddr)

		msgs := make(chan jetstream.Msg, sseMessageBacklog)
		done := make(chan struct{})
		go func() {
			defer close(done)
			cc, err := cons.Consume(func(msg jetstream.Msg) {
				select {
				case msgs <- msg:
				case <-ctx.Done():
				}
			})
			if err != nil {
				logger.ErrorContext(ctx, "failed to start consuming messages", "error", err)
				return
			}
			<-ctx.Done()
			cc.Stop()
		}()

		connected, _ := json.Marshal(map[string]string{"symbol": symbol})
		out.event("connected", connected)

		keepalive := time.NewTicker(sseKeepalive)
		defer keepalive.Stop()

		for {
			select {
			case <-keepalive.C:
				out.comment("keepalive")

			case msg := <-msgs:
				var event natspkg.TokenStatsEvent
				if err := json.Unmarshal(msg.Data(), &event); err != nil {
					logger.WarnContext(ctx, "failed to unmarshal event", "error", err)
					msg.Ack()
					continue
				}
				data, err := json.Marshal(event)
				if err != nil {
					logger.WarnContext(ctx, "failed to marshal event", "error", err)
					msg.Ack()
					continue
				}
				out.event("stats", data)
				msg.Ack()
				if m != nil {
					m.RecordSSEEventSent(statsStreamName, "stats")
				}

			case <-ctx.Done():
				logger.DebugContext(ctx, "SSE client disconnected", "symbol", symbol, "remote_addr", r.RemoteAddr)
				return

			case <-done:
				return
			}
		}
	})
}
