package classifier

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"slices"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// Sample is one labelled training row.
type Sample struct {
	Features []float64
	Label    string
}

// TrainConfig controls forest training.
type TrainConfig struct {
	// Trees is the number of trees in the forest (default: 100).
	Trees int

	// MaxDepth limits tree depth; 0 grows until leaves are pure.
	MaxDepth int

	// MinSamplesSplit is the smallest node that is split (default: 2).
	MinSamplesSplit int

	// MaxFeatures is the number of features considered per split
	// (default: sqrt of the feature count, at least 1).
	MaxFeatures int

	// Seed makes training deterministic (default: 42).
	Seed uint64

	// Workers bounds parallel tree construction (default: GOMAXPROCS).
	Workers int
}

// DefaultTrainConfig returns the defaults used by cmd/train.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Trees:           100,
		MinSamplesSplit: 2,
		Seed:            42,
	}
}

// Train fits a random forest on samples. Each tree sees a bootstrap sample
// and a random feature subset at every split.
func Train(ctx context.Context, samples []Sample, cfg TrainConfig) (*Forest, error) {
	if len(samples) == 0 {
		return nil, ErrNoTrainingData
	}
	nFeatures := len(samples[0].Features)
	if nFeatures == 0 {
		return nil, fmt.Errorf("%w: samples have no features", ErrNoTrainingData)
	}

	if cfg.Trees <= 0 {
		cfg.Trees = 100
	}
	if cfg.MinSamplesSplit < 2 {
		cfg.MinSamplesSplit = 2
	}
	if cfg.MaxFeatures <= 0 || cfg.MaxFeatures > nFeatures {
		cfg.MaxFeatures = max(1, int(math.Sqrt(float64(nFeatures))))
	}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}

	classes := labels(samples)
	classIndex := make(map[string]int, len(classes))
	for i, c := range classes {
		classIndex[c] = i
	}

	x := make([][]float64, len(samples))
	y := make([]int, len(samples))
	for i, s := range samples {
		if len(s.Features) != nFeatures {
			return nil, fmt.Errorf("%w: sample %d has %d features, want %d", ErrFeatureCount, i, len(s.Features), nFeatures)
		}
		x[i] = s.Features
		y[i] = classIndex[s.Label]
	}

	trees := make([]Tree, cfg.Trees)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for t := range trees {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b := &treeBuilder{
				x:        x,
				y:        y,
				nClasses: len(classes),
				cfg:      cfg,
				rng:      rand.New(rand.NewPCG(cfg.Seed, uint64(t))),
			}
			trees[t] = Tree{Nodes: b.fit(b.bootstrap(len(x)))}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("training forest: %w", err)
	}

	features := FeatureNames
	if nFeatures != len(FeatureNames) {
		features = make([]string, nFeatures)
		for i := range features {
			features[i] = fmt.Sprintf("f%d", i)
		}
	}

	return &Forest{
		Version:   FormatVersion,
		Features:  slices.Clone(features),
		Classes:   classes,
		Trees:     trees,
		TrainedAt: time.Now().UTC(),
	}, nil
}

// Split shuffles samples deterministically and holds out testFraction of
// them.
func Split(samples []Sample, testFraction float64, seed uint64) (train, test []Sample) {
	shuffled := slices.Clone(samples)
	rng := rand.New(rand.NewPCG(seed, seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	nTest := int(math.Round(float64(len(shuffled)) * testFraction))
	nTest = min(max(nTest, 0), len(shuffled))
	return shuffled[nTest:], shuffled[:nTest]
}

// Accuracy is the fraction of samples c labels correctly.
func Accuracy(c Classifier, samples []Sample) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrNoTrainingData
	}
	correct := 0
	for _, s := range samples {
		label, err := c.Predict(s.Features)
		if err != nil {
			return 0, err
		}
		if label == s.Label {
			correct++
		}
	}
	return float64(correct) / float64(len(samples)), nil
}

func labels(samples []Sample) []string {
	seen := make(map[string]struct{})
	for _, s := range samples {
		seen[s.Label] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

type treeBuilder struct {
	x        [][]float64
	y        []int
	nClasses int
	cfg      TrainConfig
	rng      *rand.Rand
	nodes    []Node
}

func (b *treeBuilder) bootstrap(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = b.rng.IntN(n)
	}
	return idx
}

func (b *treeBuilder) fit(idx []int) []Node {
	b.nodes = b.nodes[:0]
	b.grow(idx, 0)
	return b.nodes
}

// grow appends the subtree for idx and returns its root index. Children are
// appended after their parent.
func (b *treeBuilder) grow(idx []int, depth int) int {
	counts := b.classCounts(idx)
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Left: -1, Right: -1, Class: argmax(counts)})

	if isPure(counts) || len(idx) < b.cfg.MinSamplesSplit || (b.cfg.MaxDepth > 0 && depth >= b.cfg.MaxDepth) {
		return id
	}

	feature, threshold, ok := b.bestSplit(idx, counts)
	if !ok {
		return id
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id].Feature = feature
	b.nodes[id].Threshold = threshold
	b.nodes[id].Left = l
	b.nodes[id].Right = r
	return id
}

// bestSplit searches a random feature subset for the threshold with the
// lowest weighted Gini impurity.
func (b *treeBuilder) bestSplit(idx []int, counts []int) (int, float64, bool) {
	n := float64(len(idx))
	bestScore := gini(counts, len(idx)) - 1e-12
	bestFeature, bestThreshold, found := -1, 0.0, false

	nFeatures := len(b.x[0])
	candidates := b.rng.Perm(nFeatures)[:b.cfg.MaxFeatures]

	sorted := slices.Clone(idx)
	left := make([]int, b.nClasses)
	right := make([]int, b.nClasses)

	for _, f := range candidates {
		sort.Slice(sorted, func(i, j int) bool { return b.x[sorted[i]][f] < b.x[sorted[j]][f] })
		clear(left)
		copy(right, counts)

		for i := 0; i < len(sorted)-1; i++ {
			c := b.y[sorted[i]]
			left[c]++
			right[c]--

			cur, next := b.x[sorted[i]][f], b.x[sorted[i+1]][f]
			if cur == next {
				continue
			}

			nl := i + 1
			nr := len(sorted) - nl
			score := (float64(nl)*gini(left, nl) + float64(nr)*gini(right, nr)) / n
			if score < bestScore {
				bestScore = score
				bestFeature = f
				bestThreshold = cur + (next-cur)/2
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

func (b *treeBuilder) classCounts(idx []int) []int {
	counts := make([]int, b.nClasses)
	for _, i := range idx {
		counts[b.y[i]]++
	}
	return counts
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		g -= p * p
	}
	return g
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}
