// Package idempotency lets a client safely resubmit a request by sending the
// same Idempotency-Key header. The first request reserves the key in Redis;
// a successful response is stored and replayed for later duplicates.
package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	HeaderKey = "Idempotency-Key"
	keyPrefix = "bookstore:idempotency:"
)

// ErrInFlight is returned when another request holding the same key has not finished yet.
var ErrInFlight = errors.New("request with this idempotency key is still in progress")

type Record struct {
	Pending     bool   `json:"pending,omitempty"`
	StatusCode  int    `json:"status_code,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

type Store struct {
	client *redis.Client
	ttl    time.Duration
	scope  func(*http.Request) string
}

func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// ScopeBy namespaces keys per caller so two callers choosing the same key
// never see each other's responses.
func (s *Store) ScopeBy(fn func(*http.Request) string) *Store {
	s.scope = fn
	return s
}

// Begin reserves key. It returns (nil, nil) when the caller now owns the key,
// the stored record when the request already completed, or ErrInFlight.
func (s *Store) Begin(ctx context.Context, key string) (*Record, error) {
	pending, err := json.Marshal(Record{Pending: true})
	if err != nil {
		return nil, err
	}

	ok, err := s.client.SetNX(ctx, keyPrefix+key, pending, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("reserve idempotency key: %w", err)
	}
	if ok {
		return nil, nil
	}

	raw, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Expired or released between SETNX and GET; let the client retry.
			return nil, ErrInFlight
		}
		return nil, fmt.Errorf("load idempotency key: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	if rec.Pending {
		return nil, ErrInFlight
	}

	return &rec, nil
}

func (s *Store) Complete(ctx context.Context, key string, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, keyPrefix+key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store idempotency record: %w", err)
	}
	return nil
}

// Release drops a reservation so a failed request can be resubmitted.
func (s *Store) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// Middleware guards a handler with the store. Requests without the header
// pass straight through. Only 2xx responses are remembered.
func (s *Store) Middleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderKey)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if s.scope != nil {
				key = s.scope(r) + ":" + key
			}

			ctx := r.Context()
			rec, err := s.Begin(ctx, key)
			switch {
			case errors.Is(err, ErrInFlight):
				writeError(w, http.StatusConflict, err.Error())
				return
			case err != nil:
				logger.Error("idempotency lookup failed", zap.Error(err), zap.String("key", key))
				writeError(w, http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable))
				return
			case rec != nil:
				if rec.ContentType != "" {
					w.Header().Set("Content-Type", rec.ContentType)
				}
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(rec.StatusCode)
				w.Write(rec.Body)
				return
			}

			rw := &recorder{ResponseWriter: w, status: http.StatusOK}

			// A panicking handler must not leave the key pending until the TTL.
			defer func() {
				p := recover()
				s.settle(ctx, logger, key, rw, p == nil)
				if p != nil {
					panic(p)
				}
			}()

			next.ServeHTTP(rw, r)
		})
	}
}

// settle stores a finished 2xx response and releases the key otherwise.
func (s *Store) settle(ctx context.Context, logger *zap.Logger, key string, rw *recorder, finished bool) {
	// The request context may already be cancelled; bookkeeping must still happen.
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	var err error
	if finished && rw.status >= 200 && rw.status < 300 {
		err = s.Complete(bg, key, Record{
			StatusCode:  rw.status,
			ContentType: rw.Header().Get("Content-Type"),
			Body:        rw.body.Bytes(),
		})
	} else {
		err = s.Release(bg, key)
	}
	if err != nil {
		logger.Warn("idempotency bookkeeping failed", zap.Error(err), zap.String("key", key))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
