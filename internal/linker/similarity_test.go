package linker

import (
	"math"
	"testing"
)

func TestCosineSimilarityIdenticalTexts(t *testing.T) {
	s := "enterprise cybersecurity RMF assessment and authorization support"
	if got := CosineSimilarity(s, s); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("identical texts = %v, want 1.0", got)
	}
}

func TestCosineSimilarityDisjointVocabulary(t *testing.T) {
	if got := CosineSimilarity("lawn mowing landscaping services", "quantum cryptography research"); got != 0 {
		t.Fatalf("disjoint vocabularies = %v, want 0.0", got)
	}
}

func TestCosineSimilarityCaseAndPunctuation(t *testing.T) {
	a := CosineSimilarity("Zero-Trust Network Access!", "zero trust network access")
	if math.Abs(a-1.0) > 1e-9 {
		t.Fatalf("case/punctuation variants = %v, want 1.0", a)
	}
}

func TestCosineSimilarityPartialOverlap(t *testing.T) {
	got := CosineSimilarity("cyber security support", "cyber security audit")
	if got <= 0 || got >= 1 {
		t.Fatalf("partial overlap = %v, want strictly between 0 and 1", got)
	}
}

func TestCosineSimilarityEmpty(t *testing.T) {
	if got := CosineSimilarity("", "anything"); got != 0 {
		t.Fatalf("empty text = %v, want 0.0", got)
	}
}
