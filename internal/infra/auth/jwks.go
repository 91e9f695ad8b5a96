package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type JWKSOptions struct {
	URL string
	// TTL кэша ключей; по истечении ключи перечитываются при следующем запросе
	TTL time.Duration
	// RequestsPerMinute ограничивает походы к IdP (в том числе на неизвестный kid)
	RequestsPerMinute int
	Client            *http.Client
	Clock             func() time.Time
	Logger            *zap.Logger
}

// JWKSKeySource: ключи внешнего IdP с кэшем по kid.
// Экземпляр создается один раз при старте и передается в Policy явно.
type JWKSKeySource struct {
	url     string
	ttl     time.Duration
	client  *http.Client
	now     func() time.Time
	logger  *zap.Logger
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker

	fetchMu   sync.Mutex // один поход к IdP за раз
	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func NewJWKSKeySource(opts JWKSOptions) (*JWKSKeySource, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("jwks url is required")
	}
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Minute
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 5
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	// Настройка предохранителя: если IdP лежит, не долбим его и живем на закэшированных ключах
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "jwks",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	perMinute := opts.RequestsPerMinute
	return &JWKSKeySource{
		url:     opts.URL,
		ttl:     opts.TTL,
		client:  opts.Client,
		now:     opts.Clock,
		logger:  opts.Logger.Named("jwks"),
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60), perMinute),
		cb:      cb,
		keys:    make(map[string]*rsa.PublicKey),
	}, nil
}

func (s *JWKSKeySource) Methods() []string { return []string{jwt.SigningMethodRS256.Alg()} }

func (s *JWKSKeySource) VerifyKey(ctx context.Context, token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("token has no kid")
	}
	return s.Key(ctx, kid)
}

// Key возвращает ключ по kid: из свежего кэша, иначе после перечитывания JWKS.
// Если IdP недоступен или лимит исчерпан, отдаем устаревший ключ, если он есть.
func (s *JWKSKeySource) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if key, fresh := s.cached(kid); key != nil && fresh {
		return key, nil
	}

	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()

	// Пока ждали мьютекс, кэш мог обновить другой запрос
	key, fresh := s.cached(kid)
	if key != nil && fresh {
		return key, nil
	}

	if !s.limiter.Allow() {
		if key != nil {
			return key, nil
		}
		return nil, fmt.Errorf("jwks refetch rate limited, unknown kid %q", kid)
	}

	if err := s.refresh(ctx); err != nil {
		s.logger.Warn("jwks refresh failed", zap.String("kid", kid), zap.Error(err))
		if key != nil {
			return key, nil
		}
		return nil, err
	}

	if key, _ = s.cached(kid); key == nil {
		return nil, fmt.Errorf("unknown kid %q", kid)
	}
	return key, nil
}

func (s *JWKSKeySource) cached(kid string) (*rsa.PublicKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := s.keys[kid]
	return key, !s.fetchedAt.IsZero() && s.now().Sub(s.fetchedAt) < s.ttl
}

func (s *JWKSKeySource) refresh(ctx context.Context) error {
	res, err := s.cb.Execute(func() (interface{}, error) {
		var set *JWKSet
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(3),
			retry.DelayType(retry.BackOffDelay),
		)
		err := r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			var fetchErr error
			set, fetchErr = s.fetch(tCtx)
			return fetchErr
		})
		return set, err
	})
	if err != nil {
		return err
	}

	keys := make(map[string]*rsa.PublicKey)
	for _, jwk := range res.(*JWKSet).Keys {
		if jwk.Kid == "" || (jwk.Use != "" && jwk.Use != "sig") {
			continue
		}
		pub, err := jwk.RSAPublicKey()
		if err != nil {
			s.logger.Warn("skipping malformed jwk", zap.String("kid", jwk.Kid), zap.Error(err))
			continue
		}
		keys[jwk.Kid] = pub
	}
	if len(keys) == 0 {
		return fmt.Errorf("jwks at %s has no usable signing keys", s.url)
	}

	s.mu.Lock()
	s.keys = keys
	s.fetchedAt = s.now()
	s.mu.Unlock()

	s.logger.Debug("jwks refreshed", zap.Int("keys", len(keys)))
	return nil
}

func (s *JWKSKeySource) fetch(ctx context.Context) (*JWKSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jwks request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("jwks endpoint returned %d", resp.StatusCode)
	}

	var set JWKSet
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&set); err != nil {
		return nil, fmt.Errorf("decode jwks: %w", err)
	}
	return &set, nil
}
