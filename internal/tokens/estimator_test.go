package tokens

import "testing"

func TestEstimateTokens(t *testing.T) {
	e := NewEstimator()

	n, err := e.EstimateTokens("The deadline for the Q3 report is March 1.")
	if err != nil {
		t.Fatalf("EstimateTokens returned error: %v", err)
	}
	if n == 0 {
		t.Error("non-empty text must estimate to at least one token")
	}

	again, err := e.EstimateTokens("The deadline for the Q3 report is March 1.")
	if err != nil {
		t.Fatalf("EstimateTokens returned error on reuse: %v", err)
	}
	if again != n {
		t.Errorf("estimate not deterministic: %d then %d", n, again)
	}
}

func TestEstimateTokensEmpty(t *testing.T) {
	e := NewEstimator()

	n, err := e.EstimateTokens("")
	if err != nil {
		t.Fatalf("EstimateTokens returned error: %v", err)
	}
	if n != 0 {
		t.Errorf("empty text estimated %d tokens, want 0", n)
	}
}
