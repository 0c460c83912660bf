// Package sampling implements the ten-stage logits-to-token pipeline
// spec.md §4.5 defines.
package sampling

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Config holds the sampling knobs spec.md §6 enumerates, with their
// defaults applied by Defaults().
type Config struct {
	Temperature float64
	TopP        float64
	MinP        float64
	TfsZ        float64
	TypicalP    float64

	RepetitionPenalty float64
	FrequencyPenalty  float64
	PresencePenalty   float64

	TopK      int
	MaxTokens int

	Seed *uint64

	UseGreedy bool

	StopTokenIDs  []int64
	StopSequences []string
}

// Defaults returns the spec.md §6 default configuration.
func Defaults() Config {
	return Config{
		Temperature:       0.7,
		TopP:              0.95,
		MinP:              0.0,
		TfsZ:              1.0,
		TypicalP:          1.0,
		RepetitionPenalty: 1.0,
		FrequencyPenalty:  0.0,
		PresencePenalty:   0.0,
		TopK:              40,
		MaxTokens:         2048,
		UseGreedy:         false,
		StopTokenIDs:      []int64{0, 2},
	}
}

// NewRand constructs the splittable PRNG spec.md §4.5 calls for: seeded
// from cfg.Seed when set, else from two values drawn from rand/v2's
// randomly seeded global source, so two calls without a seed never
// coincidentally share a stream.
func NewRand(cfg Config) *rand.Rand {
	if cfg.Seed != nil {
		return rand.New(rand.NewPCG(*cfg.Seed, *cfg.Seed^0x9e3779b97f4a7c15))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// Sample runs the greedy fast path or the full ten-stage pipeline over
// logits (a dense fp32 slice of length V) and returns the drawn token id.
// recent is the rolling window of already-generated token ids used by the
// three penalty stages.
func Sample(logits []float32, cfg Config, recent []int64, rng *rand.Rand) int64 {
	if cfg.UseGreedy || cfg.Temperature <= 1e-6 {
		return argmax(logits)
	}

	work := make([]float64, len(logits))
	for i, v := range logits {
		work[i] = float64(v)
	}

	applyRepetitionPenalty(work, recent, cfg.RepetitionPenalty)
	applyFrequencyPenalty(work, recent, cfg.FrequencyPenalty)
	applyPresencePenalty(work, recent, cfg.PresencePenalty)

	probs := softmax(work, cfg.Temperature)
	probs = applyMinP(probs, cfg.MinP)
	probs = applyTopK(probs, cfg.TopK)
	probs = applyTopP(probs, cfg.TopP)
	probs = applyTailFree(probs, cfg.TfsZ)
	probs = applyTypical(probs, cfg.TypicalP)

	return draw(probs, rng)
}

func argmax(logits []float32) int64 {
	best := 0
	for i := 1; i < len(logits); i++ {
		if logits[i] > logits[best] {
			best = i
		}
	}
	return int64(best)
}

// countRecent returns the distinct recent token ids and their occurrence
// counts, used by all three penalty stages.
func countRecent(recent []int64) map[int64]int {
	counts := make(map[int64]int, len(recent))
	for _, t := range recent {
		counts[t]++
	}
	return counts
}

// applyRepetitionPenalty is stage 1: for each distinct recent token t
// occurring c times, logits[t] /= r^c if positive, else logits[t] *= r^c.
func applyRepetitionPenalty(logits []float64, recent []int64, r float64) {
	if r == 1.0 || len(recent) == 0 {
		return
	}
	for t, c := range countRecent(recent) {
		if int(t) < 0 || int(t) >= len(logits) {
			continue
		}
		factor := math.Pow(r, float64(c))
		if logits[t] > 0 {
			logits[t] /= factor
		} else {
			logits[t] *= factor
		}
	}
}

// applyFrequencyPenalty is stage 2: logits[t] -= c * f.
func applyFrequencyPenalty(logits []float64, recent []int64, f float64) {
	if f == 0 || len(recent) == 0 {
		return
	}
	for t, c := range countRecent(recent) {
		if int(t) < 0 || int(t) >= len(logits) {
			continue
		}
		logits[t] -= float64(c) * f
	}
}

// applyPresencePenalty is stage 3: logits[t] -= p for each distinct present
// token, regardless of count.
func applyPresencePenalty(logits []float64, recent []int64, p float64) {
	if p == 0 || len(recent) == 0 {
		return
	}
	for t := range countRecent(recent) {
		if int(t) < 0 || int(t) >= len(logits) {
			continue
		}
		logits[t] -= p
	}
}

// softmax is stage 4: probs[i] = exp((logits[i]-max)/max(temperature,1e-6)),
// normalized to sum to 1.
func softmax(logits []float64, temperature float64) []float64 {
	temp := math.Max(temperature, 1e-6)
	maxLogit := logits[0]
	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}
	probs := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		probs[i] = math.Exp((v - maxLogit) / temp)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

func renormalize(probs []float64) []float64 {
	var sum float64
	for _, p := range probs {
		sum += p
	}
	if sum <= 0 {
		return probs
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// applyMinP is stage 5: zero every probability below min_p * max(probs).
func applyMinP(probs []float64, minP float64) []float64 {
	if minP <= 0 {
		return probs
	}
	maxP := 0.0
	for _, p := range probs {
		if p > maxP {
			maxP = p
		}
	}
	floor := minP * maxP
	any := false
	for i, p := range probs {
		if p < floor {
			probs[i] = 0
		} else {
			any = true
		}
	}
	if !any {
		return probs
	}
	return renormalize(probs)
}

type idxProb struct {
	idx int
	p   float64
}

// sortedDesc returns (index, prob) pairs sorted by descending probability,
// ties broken by ascending index, matching every stage's tie-break rule.
func sortedDesc(probs []float64) []idxProb {
	pairs := make([]idxProb, len(probs))
	for i, p := range probs {
		pairs[i] = idxProb{idx: i, p: p}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].p != pairs[j].p {
			return pairs[i].p > pairs[j].p
		}
		return pairs[i].idx < pairs[j].idx
	})
	return pairs
}

// applyTopK is stage 6: keep the k highest-probability entries, zero the
// rest, renormalize. k <= 0 or k >= len(probs) is a no-op.
func applyTopK(probs []float64, k int) []float64 {
	if k <= 0 || k >= len(probs) {
		return probs
	}
	pairs := sortedDesc(probs)
	out := make([]float64, len(probs))
	for i := 0; i < k; i++ {
		out[pairs[i].idx] = probs[pairs[i].idx]
	}
	return renormalize(out)
}

// applyTopP is stage 7: sort descending, accumulate until cumulative mass
// reaches p, keep the index that crosses the threshold, zero the rest.
func applyTopP(probs []float64, p float64) []float64 {
	if p >= 1.0 {
		return probs
	}
	pairs := sortedDesc(probs)
	out := make([]float64, len(probs))
	var cum float64
	for _, pr := range pairs {
		out[pr.idx] = probs[pr.idx]
		cum += pr.p
		if cum >= p {
			break
		}
	}
	return renormalize(out)
}

// applyTailFree is stage 8: first differences of the sorted probabilities,
// normalized, cumulative cutoff at z.
func applyTailFree(probs []float64, z float64) []float64 {
	if z >= 1.0 {
		return probs
	}
	pairs := sortedDesc(probs)
	n := len(pairs)
	if n < 3 {
		return probs
	}
	sortedP := make([]float64, n)
	for i, pr := range pairs {
		sortedP[i] = pr.p
	}
	diffs := make([]float64, n-1)
	var diffSum float64
	for i := 0; i < n-1; i++ {
		d := sortedP[i] - sortedP[i+1]
		if d < 0 {
			d = -d
		}
		diffs[i] = d
		diffSum += d
	}
	if diffSum == 0 {
		return probs
	}
	out := make([]float64, len(probs))
	var cum float64
	kept := 0
	for i, d := range diffs {
		cum += d / diffSum
		kept++
		out[pairs[i].idx] = probs[pairs[i].idx]
		if cum >= z {
			break
		}
	}
	// Tail-free's cutoff is over first differences, one shorter than the
	// sorted list; always retain the top entry that anchors the first
	// difference.
	out[pairs[0].idx] = probs[pairs[0].idx]
	_ = kept
	return renormalize(out)
}

// applyTypical is stage 9: rank by |-log(p) - H| ascending where H is the
// distribution's Shannon entropy, accumulate until cumulative probability
// reaches p.
func applyTypical(probs []float64, p float64) []float64 {
	if p >= 1.0 {
		return probs
	}
	nonZero := make([]float64, 0, len(probs))
	for _, pr := range probs {
		if pr > 0 {
			nonZero = append(nonZero, pr)
		}
	}
	if len(nonZero) == 0 {
		return probs
	}
	h := stat.Entropy(nonZero)

	type scored struct {
		idx   int
		p     float64
		score float64
	}
	scoredEntries := make([]scored, 0, len(probs))
	for i, pr := range probs {
		if pr <= 0 {
			continue
		}
		nll := -math.Log(pr)
		scoredEntries = append(scoredEntries, scored{idx: i, p: pr, score: math.Abs(nll - h)})
	}
	sort.Slice(scoredEntries, func(i, j int) bool {
		if scoredEntries[i].score != scoredEntries[j].score {
			return scoredEntries[i].score < scoredEntries[j].score
		}
		return scoredEntries[i].idx < scoredEntries[j].idx
	})

	out := make([]float64, len(probs))
	var cum float64
	for _, s := range scoredEntries {
		out[s.idx] = s.p
		cum += s.p
		if cum >= p {
			break
		}
	}
	return renormalize(out)
}

// draw is stage 10: the categorical sample. r ~ U[0,1); return the first
// index whose cumulative mass >= r, in ascending-index order.
func draw(probs []float64, rng *rand.Rand) int64 {
	r := rng.Float64()
	var cum float64
	for i, p := range probs {
		cum += p
		if cum >= r {
			return int64(i)
		}
	}
	return int64(len(probs) - 1)
}
