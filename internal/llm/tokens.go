package llm

import (
	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// BPE ranks come from the files embedded in tiktoken-go-loader. The default
// loader downloads them on first use with no deadline, which would stall a
// finished stream whenever outbound traffic is blocked.
func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// TokenCounter counts the tokens a message list consumes for a model.
type TokenCounter func(model string, messages []ChatMessage) (int, error)

// CountTokens counts chat tokens with the model's BPE encoding, falling back
// to cl100k_base for models tiktoken does not know.
func CountTokens(model string, messages []ChatMessage) (int, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		if err != nil {
			return 0, err
		}
	}

	// 3 tokens of framing per message plus 3 priming the reply.
	total := 3
	for _, msg := range messages {
		total += 3
		total += len(enc.Encode(msg.Role, nil, nil))
		total += len(enc.Encode(msg.Content, nil, nil))
	}
	return total, nil
}

// EstimateTokens is the rough fallback used when no encoding is available.
func EstimateTokens(messages []ChatMessage) int {
	n := 0
	for _, msg := range messages {
		n += len(msg.Content)
	}
	return n / 4
}

func countOrEstimate(counter TokenCounter, model string, messages []ChatMessage) int {
	if counter != nil {
		if n, err := counter(model, messages); err == nil {
			return n
		}
	}
	return EstimateTokens(messages)
}
