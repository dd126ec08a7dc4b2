package backend

import (
	"strings"

	"github.com/noctics/central/pkg/api"
)

// hostedModelAliases maps known internal model names to their hosted
// equivalents for openai_compatible endpoints. Names not in the table are
// sent through unchanged.
var hostedModelAliases = map[string]string{
	"noxllm-05b:latest": "gpt-4o-mini",
	"noxllm-3b:latest":  "gpt-4o-mini",
	"qwen/qwen3-1.7b":   "gpt-4o-mini",
}

// promptPairWindow bounds the flattened generate-mode prompt to the last
// three user/assistant exchange pairs.
const promptPairWindow = 6

// BuildBody shapes a request body for the endpoint's mode. It never fails:
// missing optional fields are omitted and an empty message list yields an
// empty prompt or messages body.
func BuildBody(msgs []api.Message, ep Endpoint, opts Options) any {
	switch ep.Mode {
	case ModeGenerate:
		return generateBody{
			Model:   opts.Model,
			System:  api.SystemText(msgs),
			Prompt:  flattenPrompt(msgs),
			Stream:  opts.Stream,
			Options: tuningOptions(opts),
		}

	case ModeChat:
		return chatBody{
			Model:    opts.Model,
			Messages: plainMessages(msgs),
			Stream:   opts.Stream,
			Options:  tuningOptions(opts),
		}

	default:
		return openAIBody{
			Model:       ResolveModel(opts),
			Messages:    plainMessages(msgs),
			Temperature: opts.Temperature,
			MaxTokens:   opts.MaxTokens,
			Stream:      opts.Stream,
		}
	}
}

// ResolveModel resolves the model identifier for openai_compatible
// endpoints: explicit override, else the alias table, else the configured
// model string, in that priority order.
func ResolveModel(opts Options) string {
	if opts.ModelOverride != "" {
		return opts.ModelOverride
	}
	if hosted, ok := hostedModelAliases[opts.Model]; ok {
		return hosted
	}
	return opts.Model
}

// flattenPrompt renders the last three user/assistant exchange pairs as
// role-delimited blocks, always terminated by an empty assistant delimiter
// that signals "continue here" to the backend. System messages travel in
// the scalar system field, never in the prompt. An empty exchange yields
// an empty prompt.
//
// The window is pair-aligned: during a live turn the history ends with the
// just-committed user message, so a plain message-count cut would open on
// the assistant half of a severed pair. The cut widens by one in that case
// to keep the pair whole.
func flattenPrompt(msgs []api.Message) string {
	var exchange []api.Message
	for _, m := range msgs {
		if m.Role == api.RoleSystem {
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		exchange = append(exchange, m)
	}
	if len(exchange) > promptPairWindow {
		start := len(exchange) - promptPairWindow
		if exchange[start].Role == api.RoleAssistant {
			start--
		}
		exchange = exchange[start:]
	}
	if len(exchange) == 0 {
		return ""
	}

	blocks := make([]string, 0, len(exchange)+1)
	for _, m := range exchange {
		blocks = append(blocks, "<|im_start|>"+string(m.Role)+"\n"+strings.TrimSpace(m.Content)+"\n<|im_end|>")
	}
	blocks = append(blocks, "<|im_start|>assistant\n")
	return strings.Join(blocks, "\n")
}

// plainMessages flattens messages to plain role+content records. The copy
// keeps callers from aliasing engine-owned history in the payload.
func plainMessages(msgs []api.Message) []api.Message {
	out := make([]api.Message, len(msgs))
	copy(out, msgs)
	return out
}

// tuningOptions nests the optional runtime tuning fields under the
// "options" sub-object used by generate/chat modes. Returns nil (field
// omitted) when nothing is set.
func tuningOptions(opts Options) map[string]any {
	o := make(map[string]any)
	if opts.Temperature != nil {
		o["temperature"] = *opts.Temperature
	}
	if opts.MaxTokens != nil && *opts.MaxTokens > 0 {
		o["num_predict"] = *opts.MaxTokens
	}
	if opts.NumThread != nil {
		o["num_thread"] = *opts.NumThread
	}
	if opts.NumCtx != nil {
		o["num_ctx"] = *opts.NumCtx
	}
	if opts.NumBatch != nil {
		o["num_batch"] = *opts.NumBatch
	}
	if opts.KeepAlive != "" {
		o["keep_alive"] = opts.KeepAlive
	}
	if len(o) == 0 {
		return nil
	}
	return o
}
