package openai

import (
    "context"
    "errors"
    "strings"

    openai "github.com/openai/openai-go/v2"
    "github.com/openai/openai-go/v2/option"
    "github.com/openai/openai-go/v2/shared"
    "github.com/rs/zerolog"

    "github.com/omursimsek/JIRA-metrics/internal/config"
)

// Known root-cause labels; the classifier must pick one or answer "unknown".
var rootCauseLabels = []string{
    "requirements gap",
    "design flaw",
    "coding error",
    "configuration",
    "data issue",
    "environment",
    "third-party",
    "test gap",
    "unknown",
}

type Client struct {
    api     openai.Client
    model   string
    enabled bool
    log     zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    return &Client{
        api:     openai.NewClient(option.WithAPIKey(cfg.OpenAIKey), option.WithRequestTimeout(cfg.OpenAITimeout)),
        model:   cfg.OpenAIModel,
        enabled: strings.TrimSpace(cfg.OpenAIKey) != "",
        log:     log,
    }
}

// Enabled reports whether a key is configured; callers skip classification
// entirely when it is not.
func (c *Client) Enabled() bool { return c.enabled }

// ClassifyRootCause asks the model to pick one root-cause label for a
// resolved bug from its summary and resolution text.
func (c *Client) ClassifyRootCause(ctx context.Context, key, summary, resolution string) (string, error) {
    if !c.enabled { return "", errors.New("openai: missing key") }
    prompt := "Bug " + key + "\nSummary: " + summary
    if resolution != "" { prompt += "\nResolution: " + resolution }
    resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
        Model: shared.ChatModel(c.model),
        Messages: []openai.ChatCompletionMessageParamUnion{
            openai.SystemMessage("You classify bug root causes. Answer with exactly one of: " + strings.Join(rootCauseLabels, ", ") + ". No other text."),
            openai.UserMessage(prompt),
        },
    })
    if err != nil { return "", err }
    if len(resp.Choices) == 0 { return "", errors.New("openai: no choices") }
    got := strings.ToLower(strings.TrimSpace(resp.Choices[0].Message.Content))
    for _, l := range rootCauseLabels {
        if got == l { return l, nil }
    }
    c.log.Debug().Str("key", key).Str("answer", got).Msg("root cause answer not in label set")
    return "unknown", nil
}
