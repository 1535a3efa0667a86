// Package httplimit adapts a limiter.Limiter to HTTP handler chains, for
// both net/http-style routers (chi, the standard mux) and Gin.
//
// On denial the middleware writes the limiter's 429 response and never
// invokes the downstream handler. On success it stamps the X-RateLimit
// headers and passes through. If the limiter itself fails — possible only
// with remote backends — the middleware logs and fails open: the limiter
// must never be the reason a healthy request turns into an error.
package httplimit

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lodgekit/ratelimit/pkg/limiter"
)

// Middleware wraps next behind l.
func Middleware(l *limiter.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			dec, err := l.AllowRequest(r)
			if err != nil {
				log.Printf("rate limiter %q failed, allowing request: %v", l.Config().Name, err)
				next.ServeHTTP(w, r)
				return
			}
			if !dec.Allowed {
				WriteDeny(w, l.BuildDenyResponse(dec))
				return
			}
			setAllowHeaders(w.Header(), l, dec)
			next.ServeHTTP(w, r)
		})
	}
}

// Gin is the same contract as Middleware for Gin handler chains.
func Gin(l *limiter.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		dec, err := l.AllowRequest(c.Request)
		if err != nil {
			log.Printf("rate limiter %q failed, allowing request: %v", l.Config().Name, err)
			c.Next()
			return
		}
		if !dec.Allowed {
			resp := l.BuildDenyResponse(dec)
			for k, vs := range resp.Headers {
				c.Writer.Header()[k] = vs
			}
			c.AbortWithStatusJSON(resp.Status, resp.Body)
			return
		}
		setAllowHeaders(c.Writer.Header(), l, dec)
		c.Next()
	}
}

// WriteDeny renders a prepared deny response onto w.
func WriteDeny(w http.ResponseWriter, resp limiter.DenyResponse) {
	for k, vs := range resp.Headers {
		w.Header()[k] = vs
	}
	w.WriteHeader(resp.Status)
	_ = json.NewEncoder(w).Encode(resp.Body)
}

func setAllowHeaders(h http.Header, l *limiter.Limiter, dec limiter.Decision) {
	h.Set("X-RateLimit-Limit", strconv.FormatInt(l.Config().MaxRequests, 10))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(dec.Remaining, 10))
}
