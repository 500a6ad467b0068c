package shield

import "net/http"

// HeadToGet rewrites incoming HEAD requests to GET before routing, so
// health checks and link probes hit the GET handlers instead of a 405.
// net/http drops the body on HEAD responses by itself.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}
