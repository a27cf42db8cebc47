package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"ollama-bridge/internal/ollama"
)

const (
	errTypeInvalidRequest = "invalid_request_error"
	errTypeUnavailable    = "service_unavailable"
	errTypeUpstream       = "upstream_error"
	errTypeServer         = "server_error"

	msgGenerateFailed = "Failed to generate response"
	msgModelsFailed   = "Failed to fetch models from Ollama"
)

type requestError struct {
	Status  int
	Message string
	Type    string
	Code    string
}

func (e requestError) Error() string {
	return e.Message
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code,omitempty"`
	} `json:"error"`
}

func writeError(c echo.Context, status int, message, errType, code string) error {
	var payload errorBody
	payload.Error.Message = message
	payload.Error.Type = errType
	payload.Error.Code = code
	return c.JSON(status, payload)
}

// handleError renders every error in the OpenAI envelope. Responses that
// are already committed, such as a started event stream, are left alone.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = writeError(c, reqErr.Status, reqErr.Message, reqErr.Type, reqErr.Code)
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = writeError(c, he.Code, fmt.Sprint(he.Message), errTypeInvalidRequest, "")
		return
	}

	s.log.Error("unhandled error", zap.String("uri", c.Request().RequestURI), zap.Error(err))
	_ = writeError(c, http.StatusInternalServerError, err.Error(), errTypeServer, "")
}

// toHTTPError classifies an upstream failure. rejected is the message used
// when the upstream answered with a non-success status.
func toHTTPError(err error, rejected string) error {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		return reqErr
	}

	var unavailable *ollama.UnavailableError
	if errors.As(err, &unavailable) {
		return requestError{
			Status:  http.StatusServiceUnavailable,
			Message: "Ollama service unavailable: " + unavailable.Error(),
			Type:    errTypeUnavailable,
		}
	}

	var statusErr *ollama.StatusError
	if errors.As(err, &statusErr) {
		status := statusErr.StatusCode
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		return requestError{
			Status:  status,
			Message: rejected,
			Type:    errTypeUpstream,
		}
	}

	return requestError{
		Status:  http.StatusInternalServerError,
		Message: err.Error(),
		Type:    errTypeServer,
	}
}

func (s *Server) decodeRequestBody(c echo.Context, target any) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, s.cfg.Server.MaxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		return decodeError(err)
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "request body must contain a single JSON object",
			Type:    errTypeInvalidRequest,
		}
	}
	return nil
}

func decodeError(err error) error {
	var (
		maxErr    *http.MaxBytesError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, io.EOF):
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "request body is required",
			Type:    errTypeInvalidRequest,
		}
	case errors.As(err, &maxErr):
		return requestError{
			Status:  http.StatusRequestEntityTooLarge,
			Message: fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit),
			Type:    errTypeInvalidRequest,
		}
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.Is(err, io.ErrUnexpectedEOF):
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("invalid JSON payload: %v", err),
			Type:    errTypeInvalidRequest,
		}
	default:
		return requestError{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
			Type:    errTypeInvalidRequest,
		}
	}
}
