package middlewarectx

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"golang.org/x/time/rate"

	"github.com/formpulse/backend/internal/config"
	"github.com/formpulse/backend/internal/http/response"
	"github.com/formpulse/backend/internal/models"
	"github.com/formpulse/backend/internal/services/access"
)

const (
	// maxLimiters ограничивает число хранимых корзин.
	maxLimiters = 10000
	// idleTTL — после такого простоя корзина считается полной и может быть удалена.
	idleTTL = 10 * time.Minute
	// anonPrefix — префикс ключей корзин анонимных клиентов.
	anonPrefix = "ip:"
)

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter выдаёт каждому субъекту свою корзину токенов.
// Скорость зависит от тарифа, анонимные запросы учитываются по адресу клиента.
// Заголовок X-Forwarded-For учитывается только от доверенных прокси.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*bucket
	tiers    map[models.Tier]rate.Limit
	anon     rate.Limit
	burst    int
	proxies  []netip.Prefix
	max      int
	now      func() time.Time
}

// NewRateLimiter создаёт RateLimiter по настройкам cfg.
func NewRateLimiter(cfg config.RateLimit) (*RateLimiter, error) {
	const op = "middlewarectx.NewRateLimiter"

	proxies := make([]netip.Prefix, 0, len(cfg.TrustedProxies))
	for _, raw := range cfg.TrustedProxies {
		p, err := parsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: trusted proxy %q: %w", op, raw, err)
		}
		proxies = append(proxies, p)
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*bucket),
		tiers: map[models.Tier]rate.Limit{
			models.TierFree:       rate.Limit(cfg.FreeRPS),
			models.TierPro:        rate.Limit(cfg.ProRPS),
			models.TierEnterprise: rate.Limit(cfg.EnterpriseRPS),
		},
		anon:    rate.Limit(cfg.AnonymousRPS),
		burst:   burst,
		proxies: proxies,
		max:     maxLimiters,
		now:     time.Now,
	}, nil
}

func parsePrefix(raw string) (netip.Prefix, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "/") {
		p, err := netip.ParsePrefix(raw)
		return p.Masked(), err
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()), nil
}

// Allow расходует один токен из корзины ключа key со скоростью limit.
func (rl *RateLimiter) Allow(key string, limit rate.Limit) bool {
	rl.mu.Lock()
	now := rl.now()
	b, ok := rl.limiters[key]
	if !ok {
		if len(rl.limiters) >= rl.max {
			rl.evict(now)
		}
		b = &bucket{lim: rate.NewLimiter(limit, rl.burst)}
		rl.limiters[key] = b
	}
	b.seen = now
	rl.mu.Unlock()
	return b.lim.AllowN(now, 1)
}

// evict освобождает место в карте корзин. Сначала удаляются простаивающие
// корзины, затем самая старая анонимная и только потом самая старая вообще.
// Вызывается под rl.mu.
func (rl *RateLimiter) evict(now time.Time) {
	for key, b := range rl.limiters {
		if now.Sub(b.seen) > idleTTL {
			delete(rl.limiters, key)
		}
	}
	if len(rl.limiters) < rl.max {
		return
	}

	var oldestAnon, oldest string
	var anonSeen, seen time.Time
	for key, b := range rl.limiters {
		if strings.HasPrefix(key, anonPrefix) && (oldestAnon == "" || b.seen.Before(anonSeen)) {
			oldestAnon, anonSeen = key, b.seen
		}
		if oldest == "" || b.seen.Before(seen) {
			oldest, seen = key, b.seen
		}
	}
	if oldestAnon != "" {
		delete(rl.limiters, oldestAnon)
		return
	}
	delete(rl.limiters, oldest)
}

// keyFor возвращает ключ корзины и скорость для запроса.
// Смена тарифа даёт новую корзину с новой скоростью.
func (rl *RateLimiter) keyFor(r *http.Request) (string, rate.Limit) {
	if ac, ok := access.FromContext(r.Context()); ok {
		p := ac.Principal()
		limit, known := rl.tiers[p.Tier]
		if !known {
			limit = rl.tiers[models.TierFree]
		}
		return "user:" + p.ID + ":" + string(p.Tier), limit
	}
	return anonPrefix + rl.clientIP(r), rl.anon
}

// clientIP возвращает адрес клиента. X-Forwarded-For разбирается справа налево,
// пока адреса принадлежат доверенным прокси. Без доверенных прокси заголовок игнорируется.
func (rl *RateLimiter) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	addr, err := netip.ParseAddr(host)
	if err != nil || !rl.trusted(addr) {
		return host
	}

	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			return host
		}
		if !rl.trusted(hop) {
			return hop.Unmap().String()
		}
		host = hop.Unmap().String()
	}
	return host
}

func (rl *RateLimiter) trusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range rl.proxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Middleware возвращает middleware, отвечающее 429 при исчерпании корзины.
// Должно стоять после AccessMiddleware, чтобы видеть субъекта.
func (rl *RateLimiter) Middleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, limit := rl.keyFor(r)
			if !rl.Allow(key, limit) {
				log.Warn("too many requests",
					slog.String("op", "middlewarectx.RateLimit"),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("key", key))
				w.WriteHeader(http.StatusTooManyRequests)
				render.JSON(w, r, response.AccessError("rate_limited", "Too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
