package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"vkusync-backend/internal/components/assert"
	"vkusync-backend/internal/components/chrono"
	"vkusync-backend/internal/components/telemetry"
	"vkusync-backend/internal/store"
	"vkusync-backend/pkg/serviceutil"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	report_verify = "verify-token"

	tokenLength = 40
)

// DefaultTokenCacheTTL bounds how long a token revoked by another process (the cli) keeps
// working against a running server.
const DefaultTokenCacheTTL = 30 * time.Second

var ErrInvalidToken = errors.New("invalid token")

type ownerCtxKeyType int

var ownerCtxKey ownerCtxKeyType

// OwnerFromContext returns the owner the request was authenticated as, it panics when the
// request did not go through the auth middleware.
func OwnerFromContext(ctx context.Context) string {
	owner, ok := ctx.Value(ownerCtxKey).(string)
	if !ok {
		panic("owner ctx is not set")
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("owner", owner))
	return owner
}

func withOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerCtxKey, owner)
}

// HashToken is the form a token is stored and looked up in.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// IssueToken creates a new api token for owner. The plain token is only ever returned here,
// a zero ttl never expires.
func IssueToken(ctx context.Context, tokens store.TokenStore, clock chrono.TimeAPI, owner, label string, ttl time.Duration) (string, store.Token, error) {
	assert.NotEmptyStr(owner, "owner")

	plain, err := random.String(tokenLength)
	if err != nil {
		return "", store.Token{}, fmt.Errorf("generate token: %w", err)
	}

	now := clock.Now()
	token := store.Token{
		Hash:      HashToken(plain),
		Owner:     owner,
		Label:     label,
		CreatedAt: now,
	}
	if ttl > 0 {
		expires := now.Add(ttl)
		token.ExpiresAt = &expires
	}
	err = tokens.CreateToken(ctx, token)
	if err != nil {
		return "", store.Token{}, fmt.Errorf("save token: %w", err)
	}
	return plain, token, nil
}

// TokenVerifier resolves bearer tokens to their owner.
type TokenVerifier struct {
	tokens store.TokenStore
	cache  *expirable.LRU[string, store.Token]
	time   chrono.TimeAPI
	tel    telemetry.API
}

type verifierConfig struct {
	cacheTTL time.Duration
}

type VerifierOption func(cfg *verifierConfig)

// WithTokenCacheTTL sets how long a verified token is trusted without reading the store again.
func WithTokenCacheTTL(ttl time.Duration) VerifierOption {
	return func(cfg *verifierConfig) {
		if ttl > 0 {
			cfg.cacheTTL = ttl
		}
	}
}

func NewTokenVerifier(tokens store.TokenStore, clock chrono.TimeAPI, tel telemetry.API, options ...VerifierOption) TokenVerifier {
	assert.NotNil(tokens, "tokens")

	cfg := verifierConfig{cacheTTL: DefaultTokenCacheTTL}
	for _, opt := range options {
		opt(&cfg)
	}

	return TokenVerifier{
		tokens: tokens,
		cache:  expirable.NewLRU[string, store.Token](2048, nil, cfg.cacheTTL),
		time:   clock,
		tel:    telemetry.NewScopedAPI("auth", tel),
	}
}

func (v TokenVerifier) VerifyToken(ctx context.Context, token string) (store.Token, error) {
	ctx, span := tracer.Start(ctx, "VerifyToken")
	defer span.End()

	if token == "" {
		span.SetStatus(codes.Error, "empty token")
		return store.Token{}, ErrInvalidToken
	}

	hash := HashToken(token)
	cached, ok := v.cache.Get(hash)
	if !ok {
		found, err := v.tokens.GetToken(ctx, hash)
		if errors.Is(err, store.ErrNotFound) {
			span.SetStatus(codes.Error, "invalid token")
			return store.Token{}, ErrInvalidToken
		}
		if err != nil {
			v.tel.ReportBroken(report_verify, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "got unexpected error while reading token")
			return store.Token{}, err
		}
		cached = found
		v.cache.Add(hash, cached)
	}

	if cached.Expired(v.time.Now()) {
		v.cache.Remove(hash)
		span.SetStatus(codes.Error, "expired token")
		return store.Token{}, ErrInvalidToken
	}
	return cached, nil
}

// Revoke deletes the token and drops it from this verifier's cache. Verifiers in other
// processes keep accepting it until their cache entry expires.
func (v TokenVerifier) Revoke(ctx context.Context, token string) (bool, error) {
	hash := HashToken(token)
	v.cache.Remove(hash)
	return v.tokens.DeleteToken(ctx, hash)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// limiters hands out one rate limiter per token, idle limiters are forgotten.
type limiters struct {
	limit rate.Limit
	burst int
	cache *expirable.LRU[string, *rate.Limiter]
}

func newLimiters(perSecond float64, burst int) limiters {
	return limiters{
		limit: rate.Limit(perSecond),
		burst: burst,
		cache: expirable.NewLRU[string, *rate.Limiter](4096, nil, time.Hour),
	}
}

func (l limiters) allow(key string) bool {
	if l.limit <= 0 {
		return true
	}
	limiter, ok := l.cache.Get(key)
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.cache.Add(key, limiter)
	}
	return limiter.Allow()
}

func (s Service) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			serviceutil.WriteError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		found, err := s.verifier.VerifyToken(r.Context(), token)
		if errors.Is(err, ErrInvalidToken) {
			serviceutil.WriteError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		if err != nil {
			serviceutil.WriteError(w, http.StatusInternalServerError, "failed to verify token")
			return
		}
		if !s.limiters.allow(found.Hash) {
			serviceutil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r.WithContext(withOwner(r.Context(), found.Owner)))
	})
}
