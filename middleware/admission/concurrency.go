package admission

import (
	"net/http"

	"admission-gateway/middleware/admission/application"
)

// ConcurrencyMiddleware limita quantas requisições admitidas chamam o upstream ao
// mesmo tempo. Sem vaga dentro do prazo do serviço, responde 503.
func ConcurrencyMiddleware(svc application.ConcurrencyService) func(next http.Handler) http.Handler {
	if svc.Pool == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := svc.Acquire(r.Context())
			if !ok {
				WriteDetail(w, http.StatusServiceUnavailable, "Server is busy, try again shortly.")
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
