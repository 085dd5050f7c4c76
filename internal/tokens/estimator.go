// Package tokens estimates completion token counts for replies whose
// upstream backend reported no usage block.
package tokens

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Estimator counts tokens with a tiktoken codec. The backend does not tell
// us its model, so a modern encoding is used as the estimate basis and the
// result is flagged estimated in completion metadata.
type Estimator struct {
	once  sync.Once
	codec tokenizer.Codec
	err   error
}

// NewEstimator creates an estimator. The codec is loaded lazily on first use.
func NewEstimator() *Estimator {
	return &Estimator{}
}

// EstimateTokens returns the token count of text under the o200k_base
// encoding.
func (e *Estimator) EstimateTokens(text string) (int, error) {
	e.once.Do(func() {
		e.codec, e.err = tokenizer.Get(tokenizer.O200kBase)
	})
	if e.err != nil {
		return 0, fmt.Errorf("load tokenizer encoding: %w", e.err)
	}

	ids, _, err := e.codec.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}
