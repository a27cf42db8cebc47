package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"ollama-bridge/internal/metrics"
	"ollama-bridge/internal/ollama"
	"ollama-bridge/internal/stream"
	"ollama-bridge/internal/translator"
)

const serviceName = "Ollama OpenAI Compatible API"

type rootResponse struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Endpoints   []string `json:"endpoints"`
	Status      string   `json:"status"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Ollama  string `json:"ollama"`
	API     string `json:"api,omitempty"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, rootResponse{
		Name:        serviceName,
		Version:     s.version,
		Description: "OpenAI-compatible proxy for Ollama",
		Endpoints: []string{
			"/v1/models",
			"/v1/chat/completions",
			"/v1/completions",
			"/health",
		},
		Status: "running",
	})
}

// handleHealth always answers 200; the upstream state is in the body.
func (s *Server) handleHealth(c echo.Context) error {
	v, err := s.upstream.Version(c.Request().Context())
	if err != nil {
		s.log.Warn("health probe failed", zap.Error(err))
		return c.JSON(http.StatusOK, healthResponse{
			Status: "unhealthy",
			Ollama: "disconnected",
			Error:  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, healthResponse{
		Status:  "healthy",
		Ollama:  "connected",
		API:     "openai-compatible",
		Version: v.Version,
	})
}

func (s *Server) handleModels(c echo.Context) error {
	tags, err := s.upstream.Tags(c.Request().Context())
	if err != nil {
		return toHTTPError(err, msgModelsFailed)
	}
	list := translator.NewModelList(translator.ModelsFromTags(tags), s.now().Unix())
	return c.JSON(http.StatusOK, list)
}

func (s *Server) handleChatCompletions(c echo.Context) error {
	var req translator.ChatCompletionRequest
	if err := s.decodeRequestBody(c, &req); err != nil {
		return err
	}

	payload := req.ToUpstream()
	if req.Stream {
		return s.streamGenerate(c, payload, translator.NewChatChunks(req.Model, s.now))
	}

	resp, err := s.upstream.Generate(c.Request().Context(), payload)
	if err != nil {
		return toHTTPError(err, msgGenerateFailed)
	}

	out := translator.FromGenerateChat(req.Model, s.now().Unix(), resp)
	metrics.RecordTokens(req.Model, out.Usage.PromptTokens, out.Usage.CompletionTokens)
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleCompletions(c echo.Context) error {
	var req translator.CompletionRequest
	if err := s.decodeRequestBody(c, &req); err != nil {
		return err
	}

	payload := req.ToUpstream()
	if req.Stream {
		return s.streamGenerate(c, payload, translator.NewCompletionChunks(req.Model, s.now))
	}

	resp, err := s.upstream.Generate(c.Request().Context(), payload)
	if err != nil {
		return toHTTPError(err, msgGenerateFailed)
	}

	out := translator.FromGenerateCompletion(req.Model, s.now().Unix(), resp)
	metrics.RecordTokens(req.Model, out.Usage.PromptTokens, out.Usage.CompletionTokens)
	return c.JSON(http.StatusOK, out)
}

// streamGenerate answers with an event stream. Upstream failures are
// reported in-band, so the status is 200 unless the client left before
// anything was written.
func (s *Server) streamGenerate(c echo.Context, payload ollama.GenerateRequest, chunks translator.ChunkFactory) error {
	sink, err := newSSESink(c.Response())
	if err != nil {
		return err
	}

	metrics.StreamsActive.Inc()
	defer metrics.StreamsActive.Dec()

	ctx := c.Request().Context()
	tr := stream.NewTranslator(chunks)
	log := s.log.With(zap.String("model", payload.Model))

	var streamErr error
	body, err := s.upstream.GenerateStream(ctx, payload)
	var statusErr *ollama.StatusError
	switch {
	case err == nil:
		streamErr = stream.Pump(ctx, body, tr, sink)
		body.Close()
	case ctx.Err() != nil:
		streamErr = ctx.Err()
	case errors.As(err, &statusErr):
		streamErr = sink.Send(tr.Reject(statusErr.Body))
	default:
		streamErr = sink.Send(tr.Fail(err))
	}

	if skipped := tr.Skipped(); skipped > 0 {
		metrics.StreamSkippedLinesTotal.Add(float64(skipped))
		log.Debug("skipped malformed stream lines", zap.Int("count", skipped))
	}

	switch tr.State() {
	case stream.Done:
		usage := tr.Usage()
		metrics.StreamOutcomesTotal.WithLabelValues(metrics.OutcomeDone).Inc()
		metrics.RecordTokens(payload.Model, usage.PromptTokens, usage.CompletionTokens)
		log.Info("stream completed",
			zap.Int("prompt_tokens", usage.PromptTokens),
			zap.Int("completion_tokens", usage.CompletionTokens),
		)
	case stream.ErrorSent:
		metrics.StreamOutcomesTotal.WithLabelValues(metrics.OutcomeError).Inc()
		log.Warn("stream ended with error", zap.String("reason", tr.Failure()))
	default:
		metrics.StreamOutcomesTotal.WithLabelValues(metrics.OutcomeClientGone).Inc()
		log.Info("client disconnected from stream", zap.NamedError("cause", streamErr))
	}
	return nil
}
