package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// Kind classifies a failed completion.
type Kind string

const (
	KindUnauthorized      Kind = "unauthorized"
	KindRateLimited       Kind = "rate_limited"
	KindBadRequest        Kind = "bad_request"
	KindServerError       Kind = "server_error"
	KindNetworkError      Kind = "network_error"
	KindMalformedResponse Kind = "malformed_response"
	KindCanceled          Kind = "canceled"
)

// Apology returns the fixed user-facing text for the kind. It never carries
// provider detail.
func (k Kind) Apology() string {
	switch k {
	case KindUnauthorized:
		return "❌ Error de autenticación: La API key parece ser incorrecta. Por favor verifica tu clave de Mistral."
	case KindRateLimited:
		return "⏳ Límite de solicitudes alcanzado. Por favor espera un momento antes de intentar de nuevo."
	case KindBadRequest:
		return "⚠️ Error en la solicitud. El mensaje puede ser demasiado largo o contener caracteres no válidos."
	case KindServerError:
		return "🔧 Error del servidor de Mistral. Por favor intenta de nuevo en unos momentos."
	case KindMalformedResponse:
		return "Lo siento, hubo un problema al procesar tu mensaje. ¿Podrías intentarlo de nuevo?"
	case KindCanceled:
		return "⏹️ Solicitud cancelada. No se generó ninguna respuesta."
	case KindNetworkError:
		fallthrough
	default:
		return "❌ Error inesperado de conexión. Por favor verifica tu conexión e intenta de nuevo."
	}
}

// Error is the technical side of a failed completion, meant for logs and the
// admin view. Users only ever see Kind.Apology.
type Error struct {
	Kind   Kind
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("completion %s (HTTP %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("completion %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// classify maps a provider or transport failure to an Error.
func classify(err error) *Error {
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindCanceled, Err: err}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &Error{Kind: kindForStatus(apiErr.HTTPStatusCode), Status: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &Error{Kind: kindForStatus(reqErr.HTTPStatusCode), Status: reqErr.HTTPStatusCode, Err: err}
	}

	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &Error{Kind: KindMalformedResponse, Err: err}
	}

	// timeouts, refused connections and anything unrecognised
	return &Error{Kind: KindNetworkError, Err: err}
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindUnauthorized
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindServerError
	case status >= 400:
		return KindBadRequest
	case status >= 200 && status < 300:
		return KindMalformedResponse
	default:
		return KindNetworkError
	}
}
