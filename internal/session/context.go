package session

import (
	"context"
	"net/http"
)

type holderContextKey struct{}

// MissingProviderError reports use of the accessor outside a context that
// carries a Holder. It is a programming error and is raised with panic.
type MissingProviderError struct{}

func (e *MissingProviderError) Error() string {
	return "session: Current must be used within a request handled under session.Middleware; wrap the handler chain with the holder at start-up"
}

// NewContext attaches the holder to ctx.
func NewContext(ctx context.Context, h *Holder) context.Context {
	return context.WithValue(ctx, holderContextKey{}, h)
}

// FromContext returns the holder attached to ctx, if any.
func FromContext(ctx context.Context) (*Holder, bool) {
	if ctx == nil {
		return nil, false
	}
	h, ok := ctx.Value(holderContextKey{}).(*Holder)
	return h, ok && h != nil
}

// Current returns the session snapshot visible from ctx. It panics with
// *MissingProviderError when no holder is in scope.
func Current(ctx context.Context) State {
	h, ok := FromContext(ctx)
	if !ok {
		panic(&MissingProviderError{})
	}
	return h.State()
}

// Middleware places h in every request context below it.
func Middleware(h *Holder, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), h)))
	})
}
