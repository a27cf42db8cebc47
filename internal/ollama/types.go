package ollama

// GenerateRequest is the only payload shape /api/generate accepts.
type GenerateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options GenerateOptions `json:"options"`
}

// GenerateOptions carries sampling parameters. TopP is omitted when nil.
type GenerateOptions struct {
	Temperature float64  `json:"temperature"`
	NumPredict  int      `json:"num_predict"`
	TopP        *float64 `json:"top_p,omitempty"`
}

// GenerateResponse is the single object returned by a non-streaming
// generate call, and also the shape of every line of a streaming one.
// Absent fields decode to their zero value.
type GenerateResponse struct {
	Model           string `json:"model,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason,omitempty"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error,omitempty"`
}

// TagsResponse lists locally installed models.
type TagsResponse struct {
	Models []Tag `json:"models"`
}

// Tag describes one installed model.
type Tag struct {
	Name       string `json:"name"`
	Model      string `json:"model,omitempty"`
	ModifiedAt string `json:"modified_at,omitempty"`
	Size       int64  `json:"size,omitempty"`
	Digest     string `json:"digest,omitempty"`
}

// VersionResponse is returned by /api/version.
type VersionResponse struct {
	Version string `json:"version"`
}
