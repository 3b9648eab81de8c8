package health

import (
	"net/http"

	"github.com/star/isstracker/internal/dataset"
)

// Healthz returns 200 "ok\n" unconditionally.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Readyz returns a handler that reports 200 "ready\n" while store holds
// state vectors and 503 otherwise (before the first load or after a clear).
func Readyz(store *dataset.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		if store.Get().Empty() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("not ready: no data loaded\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready\n"))
	}
}
