package classifier

import (
	"math"

	"github.com/M7madAwawdeh/smart-email-classifier/internal/models"
)

// Model computes a probability distribution over the category taxonomy
// for a preprocessed text. The distribution covers every category and
// sums to 1. Implementations must be deterministic.
type Model interface {
	Probabilities(text string) models.Probabilities
}

// NaiveBayes is a multinomial naive-bayes text model with Laplace
// smoothing. It is the pluggable probability primitive of the system;
// transformer-class models would slot in behind the same interface.
type NaiveBayes struct {
	logPrior   map[models.Category]float64
	logProb    map[models.Category]map[string]float64
	logUnseen  map[models.Category]float64
	vocabulary map[string]struct{}
}

// TrainNaiveBayes fits a model from normalized texts grouped by category.
// Categories absent from the input still get a smoothed slot so the
// output distribution always covers the full taxonomy.
func TrainNaiveBayes(corpus map[models.Category][]string) *NaiveBayes {
	m := &NaiveBayes{
		logPrior:   make(map[models.Category]float64),
		logProb:    make(map[models.Category]map[string]float64),
		logUnseen:  make(map[models.Category]float64),
		vocabulary: make(map[string]struct{}),
	}

	tokenCounts := make(map[models.Category]map[string]int)
	totalTokens := make(map[models.Category]int)
	totalDocs := 0

	for _, category := range models.Categories() {
		tokenCounts[category] = make(map[string]int)
		for _, text := range corpus[category] {
			totalDocs++
			for _, token := range Tokenize(Preprocess(text)) {
				tokenCounts[category][token]++
				totalTokens[category]++
				m.vocabulary[token] = struct{}{}
			}
		}
	}

	vocabSize := float64(len(m.vocabulary))
	if vocabSize == 0 {
		vocabSize = 1
	}

	numCategories := float64(len(models.Categories()))
	for _, category := range models.Categories() {
		docs := float64(len(corpus[category]))
		// Smoothed prior keeps empty categories representable.
		m.logPrior[category] = math.Log((docs + 1) / (float64(totalDocs) + numCategories))

		denominator := float64(totalTokens[category]) + vocabSize
		m.logProb[category] = make(map[string]float64, len(tokenCounts[category]))
		for token, count := range tokenCounts[category] {
			m.logProb[category][token] = math.Log((float64(count) + 1) / denominator)
		}
		m.logUnseen[category] = math.Log(1 / denominator)
	}

	return m
}

// Probabilities returns the normalized distribution over the taxonomy.
func (m *NaiveBayes) Probabilities(text string) models.Probabilities {
	tokens := Tokenize(Preprocess(text))

	scores := make(map[models.Category]float64, len(models.Categories()))
	maxScore := math.Inf(-1)
	for _, category := range models.Categories() {
		score := m.logPrior[category]
		for _, token := range tokens {
			if _, known := m.vocabulary[token]; !known {
				// Out-of-vocabulary tokens shift every class equally.
				continue
			}
			if logp, ok := m.logProb[category][token]; ok {
				score += logp
			} else {
				score += m.logUnseen[category]
			}
		}
		scores[category] = score
		if score > maxScore {
			maxScore = score
		}
	}

	// Softmax in log space for numerical stability.
	sum := 0.0
	probs := make(models.Probabilities, len(scores))
	for category, score := range scores {
		p := math.Exp(score - maxScore)
		probs[category] = p
		sum += p
	}
	for category := range probs {
		probs[category] /= sum
	}
	return probs
}
