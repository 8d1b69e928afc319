package middleware

import (
	"net/http"
	"sync"
	"time"

	"clubpos/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const purgeInterval = 5 * time.Minute

// contador counts hits for one key inside a fixed window.
type contador struct {
	mu        sync.Mutex
	count     int
	windowEnd time.Time
}

// hit registers one request and reports whether it is within limit.
func (e *contador) hit(now time.Time, limit int, window time.Duration) (bool, time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if now.After(e.windowEnd) {
		e.count = 0
		e.windowEnd = now.Add(window)
	}
	e.count++
	return e.count <= limit, e.windowEnd
}

func (e *contador) vencido(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return now.After(e.windowEnd)
}

// limitador holds the counters of one rate limiter.
type limitador struct {
	nombre string
	mu     sync.Mutex
	claves map[string]*contador
}

var (
	credenciales = newLimitador("credenciales")
	api          = newLimitador("api")
)

func newLimitador(nombre string) *limitador {
	l := &limitador{nombre: nombre, claves: make(map[string]*contador)}
	go l.purgar()
	return l
}

func (l *limitador) clave(key string) *contador {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.claves[key]
	if !ok {
		e = &contador{}
		l.claves[key] = e
	}
	return e
}

// purgar drops expired counters so IPs that never return do not pile up.
func (l *limitador) purgar() {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		l.mu.Lock()
		purged := 0
		for key, e := range l.claves {
			if e.vencido(now) {
				delete(l.claves, key)
				purged++
			}
		}
		remaining := len(l.claves)
		l.mu.Unlock()
		if purged > 0 {
			log.Debug().Str("limiter", l.nombre).Int("purged", purged).Int("remaining", remaining).Msg("rate limiter purged")
		}
	}
}

// LoginRateLimiter limits credential attempts to limit per minute per IP and
// route. Employee login, pairing redemption, PIN login and quick start each
// get their own budget, so failed pairing attempts do not lock a register
// out of PIN login.
func LoginRateLimiter(limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, _ := credenciales.clave(c.ClientIP()+"|"+c.FullPath()).hit(time.Now(), limit, time.Minute)
		if !ok {
			log.Warn().Str("ip", c.ClientIP()).Str("path", c.FullPath()).Msg("rate limit de credenciales excedido")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("Demasiados intentos. Intente en 1 minuto."))
			return
		}
		c.Next()
	}
}

// RateLimiter is the general per-IP limiter applied to every route.
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, windowEnd := api.clave(c.ClientIP()).hit(time.Now(), limit, window)
		if !ok {
			c.Header("Retry-After", windowEnd.Format(time.RFC1123))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("Demasiadas solicitudes. Intente nuevamente en un momento."))
			return
		}
		c.Next()
	}
}
