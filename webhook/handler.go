package webhook

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/agora-commons/agora/metrics"
)

// GitHub delivery metadata headers.
const (
	deliveryHeader = "X-GitHub-Delivery"
	eventHeader    = "X-GitHub-Event"
)

// maxBodyBytes bounds how much of a delivery is read before the MAC check.
const maxBodyBytes = 5 << 20

// dedupeWindow is how many recent delivery IDs are remembered. GitHub
// redelivers on timeouts; a bounded LRU is enough to absorb the common case
// without unbounded growth.
const dedupeWindow = 4096

// Publisher hands an accepted delivery to the re-indexing pipeline.
// *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Handler is the HTTP endpoint for inbound webhook deliveries. Verification
// happens over the raw body bytes before any parsing; accepted deliveries
// are deduplicated by delivery ID and fanned out on a NATS subject for the
// out-of-scope indexer.
type Handler struct {
	gate *Gate
	pub  Publisher
	seen *lru.Cache[string, struct{}]
	log  *zap.Logger
}

// SubjectPrefix is the NATS subject tree accepted deliveries are published
// under, suffixed with the event name.
const SubjectPrefix = "agora.reindex."

// NewHandler creates the delivery endpoint. pub may be nil, in which case
// accepted deliveries are acknowledged but not fanned out.
func NewHandler(gate *Gate, pub Publisher, log *zap.Logger) (*Handler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	seen, err := lru.New[string, struct{}](dedupeWindow)
	if err != nil {
		return nil, fmt.Errorf("create dedupe cache: %w", err)
	}
	return &Handler{gate: gate, pub: pub, seen: seen, log: log}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeStatus(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeStatus(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if len(body) > maxBodyBytes {
		metrics.WebhookDeliveries.WithLabelValues("oversize").Inc()
		writeStatus(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}

	if !h.gate.Verify(body, r.Header.Get(SignatureHeader)) {
		metrics.WebhookDeliveries.WithLabelValues("rejected").Inc()
		h.log.Warn("webhook delivery rejected",
			zap.String("delivery", r.Header.Get(deliveryHeader)),
			zap.String("event", r.Header.Get(eventHeader)))
		writeStatus(w, http.StatusUnauthorized, "signature verification failed")
		return
	}

	delivery := r.Header.Get(deliveryHeader)
	if delivery != "" {
		if _, dup := h.seen.Get(delivery); dup {
			metrics.WebhookDeliveries.WithLabelValues("duplicate").Inc()
			writeAccepted(w, "duplicate")
			return
		}
		h.seen.Add(delivery, struct{}{})
	}

	event := r.Header.Get(eventHeader)
	if event == "" {
		event = "unknown"
	}
	if h.pub != nil {
		if err := h.pub.Publish(SubjectPrefix+event, body); err != nil {
			// The delivery authenticated; GitHub will redeliver on 5xx and
			// the dedupe entry is dropped so the retry goes through.
			h.seen.Remove(delivery)
			metrics.WebhookDeliveries.WithLabelValues("publish_error").Inc()
			h.log.Error("webhook fan-out failed", zap.String("event", event), zap.Error(err))
			writeStatus(w, http.StatusBadGateway, "delivery accepted but not queued")
			return
		}
	}

	metrics.WebhookDeliveries.WithLabelValues("accepted").Inc()
	h.log.Info("webhook delivery accepted",
		zap.String("delivery", delivery),
		zap.String("event", event),
		zap.Int("bytes", len(body)))
	writeAccepted(w, "accepted")
}

func writeAccepted(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func writeStatus(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]map[string]string{
		"error": {"code": "WEBHOOK_REJECTED", "message": msg},
	})
}
