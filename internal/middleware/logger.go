package middleware

import (
	"app/internal/logger"
	"net/http"
)

// LoggerMiddleware logs each request to the quota API after it has
// been served. Guest traffic is tagged so consume storms from a single
// anonymous caller are easy to pick out of the debug stream.
func LoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)

		log := logger.New()
		evt := log.Debug()
		if guestID := r.Header.Get(GuestIDHeader); guestID != "" {
			evt = evt.Str("guest_id", guestID)
		}
		// Full request URI including query params
		evt.Msgf("%s %s", r.Method, r.URL.RequestURI())
	})
}
