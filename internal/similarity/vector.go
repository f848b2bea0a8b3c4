package similarity

import (
	"math"
	"sort"
)

// Term is one vector component.
type Term struct {
	Token  string
	Weight float64
}

// Vector is a term-frequency vector sorted by token. Weights are counts
// divided by the document's token count.
type Vector struct {
	terms []Term
	norm  float64
}

// NewVector builds the TF vector of a token stream.
func NewVector(tokens []string) Vector {
	if len(tokens) == 0 {
		return Vector{}
	}

	counts := make(map[string]int, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}

	total := float64(len(tokens))
	terms := make([]Term, 0, len(counts))
	for token, count := range counts {
		terms = append(terms, Term{Token: token, Weight: float64(count) / total})
	}
	sort.Slice(terms, func(i, j int) bool {
		return terms[i].Token < terms[j].Token
	})

	var sum float64
	for _, term := range terms {
		sum += term.Weight * term.Weight
	}

	return Vector{terms: terms, norm: math.Sqrt(sum)}
}

func (v Vector) Len() int {
	return len(v.terms)
}

func (v Vector) Empty() bool {
	return len(v.terms) == 0 || v.norm == 0
}

func (v Vector) Norm() float64 {
	return v.norm
}

func (v Vector) Terms() []Term {
	out := make([]Term, len(v.terms))
	copy(out, v.terms)
	return out
}

// Weight returns the TF weight of token, zero when absent.
func (v Vector) Weight(token string) float64 {
	idx := sort.Search(len(v.terms), func(i int) bool {
		return v.terms[i].Token >= token
	})
	if idx < len(v.terms) && v.terms[idx].Token == token {
		return v.terms[idx].Weight
	}
	return 0
}

// Cosine returns the cosine similarity of a and b in [0,1]. An empty vector
// on either side yields 0.
//
// The dot product walks both sorted term lists in token order, so the sum is
// accumulated identically for (a,b) and (b,a) and the result is exactly
// symmetric.
func Cosine(a, b Vector) float64 {
	if a.Empty() || b.Empty() {
		return 0
	}

	var dot float64
	i, j := 0, 0
	for i < len(a.terms) && j < len(b.terms) {
		switch {
		case a.terms[i].Token == b.terms[j].Token:
			dot += a.terms[i].Weight * b.terms[j].Weight
			i++
			j++
		case a.terms[i].Token < b.terms[j].Token:
			i++
		default:
			j++
		}
	}

	score := dot / (a.norm * b.norm)
	switch {
	case math.IsNaN(score) || score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}
