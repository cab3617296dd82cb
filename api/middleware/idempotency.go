package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/assetledger/api/responses"
	pkgerrors "github.com/angelmondragon/assetledger/pkg/errors"
	"github.com/angelmondragon/assetledger/pkg/logger"
	pkgredis "github.com/angelmondragon/assetledger/pkg/redis"
)

const (
	idempotencyHeader  = "Idempotency-Key"
	replayedHeader     = "Idempotent-Replayed"
	maxIdempotencyKey  = 255
	maxReplayableBody  = 1 << 20
	defaultReplayTTL   = 24 * time.Hour
	defaultInFlightTTL = time.Minute
)

type IdempotencyOption func(*idempotencySettings)

type idempotencySettings struct {
	replayTTL   time.Duration
	inFlightTTL time.Duration
}

// WithReplayTTL sets how long a completed response is replayed.
func WithReplayTTL(ttl time.Duration) IdempotencyOption {
	return func(s *idempotencySettings) { s.replayTTL = ttl }
}

// WithInFlightTTL bounds how long a crashed request can block its key.
func WithInFlightTTL(ttl time.Duration) IdempotencyOption {
	return func(s *idempotencySettings) { s.inFlightTTL = ttl }
}

// storedResponse is the redis value under an idempotency key. A record with
// Pending set marks a request that claimed the key and has not finished.
type storedResponse struct {
	Pending     bool   `json:"pending,omitempty"`
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body,omitempty"`
}

// Idempotency makes mutating inventory routes safe to retry. Requests
// without an Idempotency-Key header pass straight through. The first request
// with a key claims it, runs, and its response is replayed for later
// requests carrying the same key and body. 5xx and 409 outcomes release the
// key so the caller can retry for real.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger, opts ...IdempotencyOption) func(http.Handler) http.Handler {
	settings := idempotencySettings{replayTTL: defaultReplayTTL, inFlightTTL: defaultInFlightTTL}
	for _, opt := range opts {
		opt(&settings)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if store == nil || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			fail := func(err error) { responses.WriteError(ctx, logg, w, err) }

			if len(clientKey) > maxIdempotencyKey {
				fail(pkgerrors.New(pkgerrors.CodeValidation, "idempotency key too long").
					WithDetails(map[string]any{"field": idempotencyHeader}))
				return
			}
			body, err := io.ReadAll(io.LimitReader(r.Body, maxReplayableBody+1))
			if err != nil {
				fail(pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			if len(body) > maxReplayableBody {
				fail(pkgerrors.New(pkgerrors.CodeValidation, "request body too large for an idempotent request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			fingerprint := fingerprintRequest(r, body)
			key := store.IdempotencyKey(r.Method+" "+r.URL.Path, clientKey)

			claim, _ := json.Marshal(storedResponse{Pending: true, Fingerprint: fingerprint})
			claimed, err := store.SetNX(ctx, key, string(claim), settings.inFlightTTL)
			if err != nil {
				fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replayOrReject(w, r, store, key, fingerprint, logg)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			// The claim goes either way; a storable outcome replaces it.
			if err := store.Del(ctx, key); err != nil && logg != nil {
				logg.Error(ctx, "release idempotency claim", err)
			}
			status := capture.statusCode()
			if status >= http.StatusInternalServerError || status == http.StatusConflict {
				return
			}
			done, _ := json.Marshal(storedResponse{
				Fingerprint: fingerprint,
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        base64.StdEncoding.EncodeToString(capture.body.Bytes()),
			})
			if _, err := store.SetNX(ctx, key, string(done), settings.replayTTL); err != nil && logg != nil {
				logg.Error(ctx, "store idempotent response", err)
			}
		})
	}
}

func replayOrReject(w http.ResponseWriter, r *http.Request, store pkgredis.IdempotencyStore, key, fingerprint string, logg *logger.Logger) {
	ctx := r.Context()
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// Claim expired between SetNX and Get.
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConcurrentModification, "idempotency key changed hands, retry"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency record"))
		return
	}

	var prior storedResponse
	if err := json.Unmarshal([]byte(raw), &prior); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case prior.Fingerprint != fingerprint:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request"))
	case prior.Pending:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConcurrentModification, "a request with this idempotency key is still running"))
	default:
		if logg != nil {
			logg.Info(logg.WithField(ctx, "idempotency_key", key), "replaying stored response")
		}
		body, _ := base64.StdEncoding.DecodeString(prior.Body)
		if prior.ContentType != "" {
			w.Header().Set("Content-Type", prior.ContentType)
		}
		w.Header().Set(replayedHeader, "true")
		w.WriteHeader(prior.Status)
		_, _ = w.Write(body)
	}
}

func fingerprintRequest(r *http.Request, body []byte) string {
	h := sha256.New()
	io.WriteString(h, r.Method)
	io.WriteString(h, "\n")
	io.WriteString(h, r.URL.RequestURI())
	io.WriteString(h, "\n")
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
