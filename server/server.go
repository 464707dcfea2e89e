// Package server exposes the platform's HTTP surface. Every mutating route
// runs signature verification before any domain logic; the webhook route is
// its own trust boundary and bypasses agent authentication entirely.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/agora-commons/agora/auth"
	"github.com/agora-commons/agora/content"
	"github.com/agora-commons/agora/identity"
	"github.com/agora-commons/agora/metrics"
	"github.com/agora-commons/agora/pkg/wire"
	"github.com/agora-commons/agora/store"
	"github.com/agora-commons/agora/webhook"
)

// maxPayloadBytes bounds mutating request bodies.
const maxPayloadBytes = 1 << 20

// routePaths maps record kinds onto their collection routes.
var routePaths = map[content.Kind]string{
	content.KindProposal: "proposals",
	content.KindVote:     "votes",
	content.KindComment:  "comments",
	content.KindJournal:  "journal",
}

// Server wires the authentication core to its HTTP routes.
type Server struct {
	verifier   *auth.Verifier
	rotator    *auth.Rotator
	identities store.Store
	records    content.Store
	deliveries *webhook.Handler
	log        *zap.Logger
	mux        *http.ServeMux
}

// New assembles the server. deliveries may be nil to disable the webhook
// endpoint.
func New(verifier *auth.Verifier, rotator *auth.Rotator, identities store.Store, records content.Store, deliveries *webhook.Handler, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		verifier:   verifier,
		rotator:    rotator,
		identities: identities,
		records:    records,
		deliveries: deliveries,
		log:        log,
		mux:        http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	for kind, path := range routePaths {
		kind := kind
		s.mux.HandleFunc("POST /v1/"+path, func(w http.ResponseWriter, r *http.Request) {
			s.handleSubmit(w, r, kind)
		})
		s.mux.HandleFunc("GET /v1/"+path+"/{id}", func(w http.ResponseWriter, r *http.Request) {
			s.handleGetRecord(w, r, kind)
		})
	}
	s.mux.HandleFunc("GET /v1/identities/{fingerprint}", s.handleGetIdentity)
	s.mux.HandleFunc("POST /v1/identities/{fingerprint}/rotate", s.handleRotate)
	if s.deliveries != nil {
		s.mux.Handle("POST /v1/webhooks/github", s.deliveries)
	}
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.log.Debug("request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Duration("elapsed", time.Since(start)))
}

// handleSubmit authenticates a signed payload and stores the record under
// the verified author. The author is always the fingerprint verification
// returned; client-claimed authorship fields never reach storage.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, kind content.Kind) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "unreadable request body")
		return
	}
	payload, err := wire.DecodeObject(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "body is not a JSON object")
		return
	}

	author, err := s.verifier.Verify(r.Context(), payload)
	if err != nil {
		outcome := writeAuthError(w, err)
		metrics.Verifications.WithLabelValues(outcome).Inc()
		return
	}
	metrics.Verifications.WithLabelValues("ok").Inc()

	fields := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		switch k {
		case auth.FieldSignature, auth.FieldPublicKey, auth.FieldFingerprint:
			continue
		}
		fields[k] = v
	}

	rec := content.NewRecord(kind, author, fields)
	if err := s.records.Put(r.Context(), rec); err != nil {
		s.log.Error("store record", zap.String("kind", string(kind)), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "STORAGE_ERROR", "record not stored, retry later")
		return
	}

	s.log.Info("record stored",
		zap.String("kind", string(kind)),
		zap.String("id", rec.ID),
		zap.String("author", author))
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request, kind content.Kind) {
	rec, err := s.records.Get(r.Context(), kind, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "no such record")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "STORAGE_ERROR", "lookup failed, retry later")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetIdentity(w http.ResponseWriter, r *http.Request) {
	id, err := s.identities.LookupByFingerprint(r.Context(), r.PathValue("fingerprint"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "UNKNOWN_IDENTITY", "no such identity")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "lookup failed, retry later")
		return
	}
	writeJSON(w, http.StatusOK, identityView(id))
}

// rotateBody is the JSON body for POST /v1/identities/{fingerprint}/rotate.
type rotateBody struct {
	NewPublicKey        string `json:"new_public_key"`       // base64url
	DelegationSignature string `json:"delegation_signature"` // base64
	Timestamp           int64  `json:"timestamp"`            // epoch seconds
}

func (s *Server) handleRotate(w http.ResponseWriter, r *http.Request) {
	var body rotateBody
	if err := json.NewDecoder(io.LimitReader(r.Body, maxPayloadBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "body is not a JSON object")
		return
	}

	newKey, err := identity.DecodePublicKey(body.NewPublicKey)
	if err != nil {
		metrics.Rotations.WithLabelValues(string(auth.CodeInvalidDelegation)).Inc()
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "malformed new_public_key")
		return
	}
	sig, err := auth.DecodeSignature(body.DelegationSignature)
	if err != nil {
		metrics.Rotations.WithLabelValues(string(auth.CodeInvalidDelegation)).Inc()
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "malformed delegation_signature")
		return
	}

	updated, err := s.rotator.Rotate(r.Context(), &auth.RotateRequest{
		Fingerprint:         r.PathValue("fingerprint"),
		NewPublicKey:        newKey,
		DelegationSignature: sig,
		Timestamp:           body.Timestamp,
	})
	if err != nil {
		outcome := writeAuthError(w, err)
		metrics.Rotations.WithLabelValues(outcome).Inc()
		return
	}
	metrics.Rotations.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, identityView(updated))
}

// identityPublicView is the public shape of an identity record: encoded keys
// and history, nothing an observer could not derive from accepted actions.
type identityPublicView struct {
	Fingerprint      string          `json:"fingerprint"`
	CurrentPublicKey string          `json:"current_public_key"`
	KeyHistory       []keyRecordView `json:"key_history"`
	CreatedAt        time.Time       `json:"created_at"`
}

type keyRecordView struct {
	PublicKey    string     `json:"public_key"`
	ActivatedAt  time.Time  `json:"activated_at"`
	SupersededAt *time.Time `json:"superseded_at,omitempty"`
}

func identityView(id *identity.Identity) identityPublicView {
	view := identityPublicView{
		Fingerprint:      id.Fingerprint,
		CurrentPublicKey: identity.EncodePublicKey(id.ActiveKey()),
		KeyHistory:       make([]keyRecordView, len(id.KeyHistory)),
		CreatedAt:        id.CreatedAt,
	}
	for i, rec := range id.KeyHistory {
		view.KeyHistory[i] = keyRecordView{
			PublicKey:    identity.EncodePublicKey(rec.PublicKey),
			ActivatedAt:  rec.ActivatedAt,
			SupersededAt: rec.SupersededAt,
		}
	}
	return view
}
