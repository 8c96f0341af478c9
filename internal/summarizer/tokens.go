package summarizer

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// encodingName pins a single stable BPE vocabulary so EstimateTokens is
// deterministic across calls regardless of which model ends up serving the
// chat/completions request (spec.md §4.E: "the exact algorithm is not
// required to match any model's internal tokenizer but must be
// deterministic").
const encodingName = "cl100k_base"

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

func encoding() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding(encodingName)
	})
	return enc, encErr
}

// EstimateTokens returns a deterministic token count for text. If the
// tokenizer's vocabulary can't be loaded (tiktoken-go's default loader
// downloads it on first use), it falls back to a fixed
// bytes-per-token approximation so compression-threshold decisions still
// degrade gracefully instead of failing the call.
func EstimateTokens(text string) int {
	e, err := encoding()
	if err != nil {
		return len(text) / 4
	}
	return len(e.Encode(text, nil, nil))
}
