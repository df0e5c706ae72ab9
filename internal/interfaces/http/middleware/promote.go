package middleware

import (
	"net/http"
)

// promoteExempt lists paths that must stay reachable over plain HTTP
// so probes and scrapers behind the load balancer keep working.
var promoteExempt = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// HTTPSPromote redirects plain-HTTP requests to their HTTPS
// equivalent with 301. Requests already secured, directly or via a
// terminating proxy, pass through. onRedirect, when set, is called
// once per issued redirect.
func HTTPSPromote(onRedirect func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSecure(r) || promoteExempt[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			if onRedirect != nil {
				onRedirect()
			}
			target := "https://" + r.Host + r.URL.RequestURI()
			http.Redirect(w, r, target, http.StatusMovedPermanently)
		})
	}
}

func isSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return r.Header.Get("X-Forwarded-Proto") == "https"
}
