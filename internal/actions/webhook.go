package actions

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voxflow/voxflow/internal/expressions"
	"github.com/voxflow/voxflow/pkg/schema"
)

const (
	defaultWebhookTimeout  = 30 * time.Second
	maxWebhookResponseBody = 10 * 1024 * 1024 // 10MB
)

// webhookAction dispatches call-webhook steps over HTTP. Success is any
// 2xx status; the response body is returned as the step output.
type webhookAction struct {
	client *http.Client
}

// NewCallWebhook creates the call-webhook executor. client may be nil.
func NewCallWebhook(client *http.Client) Action {
	if client == nil {
		client = &http.Client{Timeout: defaultWebhookTimeout}
	}
	return &webhookAction{client: client}
}

func (a *webhookAction) Type() schema.StepType { return schema.StepCallWebhook }

func (a *webhookAction) Execute(ctx context.Context, in Input) (string, error) {
	cfg, ok := in.Config.(*schema.CallWebhookConfig)
	if !ok {
		return "", schema.NewError(schema.ErrCodeValidation, "call-webhook: wrong config payload")
	}

	url := expressions.Resolve(cfg.URL, in.RunContext)
	if url == "" {
		return "", schema.NewError(schema.ErrCodeValidation, "call-webhook: empty url")
	}

	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodPost
	}

	payload := ""
	if cfg.Body != "" {
		payload = expressions.Resolve(cfg.Body, in.RunContext)
	}

	return withRetries(ctx, cfg.Retries, func() (string, error) {
		return a.deliver(ctx, cfg, url, method, payload, in)
	})
}

func (a *webhookAction) deliver(ctx context.Context, cfg *schema.CallWebhookConfig, url, method, payload string, in Input) (string, error) {
	var body io.Reader
	if payload != "" {
		body = strings.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return "", schema.NewErrorf(schema.ErrCodeValidation, "call-webhook: %s", err.Error()).WithCause(err)
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, expressions.Resolve(v, in.RunContext))
	}
	if req.Header.Get("Content-Type") == "" && body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", schema.NewErrorf(schema.ErrCodeExecution, "call-webhook: %s", err.Error()).WithCause(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxWebhookResponseBody))
	if err != nil {
		return "", schema.NewErrorf(schema.ErrCodeExecution, "call-webhook: read response: %s", err.Error()).WithCause(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", schema.NewErrorf(schema.ErrCodeExecution,
			"call-webhook: %s returned %d", url, resp.StatusCode).
			WithDetails(map[string]any{"status": resp.StatusCode, "body": string(data)})
	}
	return string(data), nil
}
