// Package httpmiddleware provides the net/http middleware chain of the API
// server.
package httpmiddleware

import (
	"net/http"

	"github.com/go-faster/jx"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Wrap applies middlewares to h. The first middleware is the outermost.
func Wrap(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// ErrorBody encodes the {message, error} JSON body used by every error
// response of the API.
func ErrorBody(message, errText string) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("message")
	e.Str(message)
	e.FieldStart("error")
	e.Str(errText)
	e.ObjEnd()

	return append([]byte(nil), e.Bytes()...)
}

// WriteError writes an ErrorBody response.
func WriteError(w http.ResponseWriter, status int, message, errText string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(ErrorBody(message, errText))
}
