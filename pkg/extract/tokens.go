package extract

import (
	"github.com/pkoukk/tiktoken-go"
)

const fallbackEncoding = "cl100k_base"

// TruncateTokens trims text to at most maxTokens tokens for the given model.
// It returns the (possibly shortened) text and whether truncation happened.
// When the model is unknown to the tokenizer the cl100k_base encoding is
// used instead.
func TruncateTokens(text, model string, maxTokens int) (string, bool) {
	if maxTokens <= 0 || text == "" {
		return text, false
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			// No tokenizer available; leave the text untouched rather
			// than guessing at a byte budget.
			return text, false
		}
	}

	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text, false
	}
	return enc.Decode(tokens[:maxTokens]), true
}
