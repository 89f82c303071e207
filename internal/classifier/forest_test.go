package classifier_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropsense/cropsense/internal/classifier"
)

// stump is a one-split forest: rainfall <= 100 is maize, otherwise rice.
func stump() *classifier.Forest {
	return &classifier.Forest{
		Version:  classifier.FormatVersion,
		Features: classifier.FeatureNames,
		Classes:  []string{"maize", "rice"},
		Trees: []classifier.Tree{{Nodes: []classifier.Node{
			{Feature: 3, Threshold: 100, Left: 1, Right: 2},
			{Left: -1, Right: -1, Class: 0},
			{Left: -1, Right: -1, Class: 1},
		}}},
	}
}

func TestForest_Predict(t *testing.T) {
	f := stump()

	label, err := f.Predict([]float64{25, 70, 6.5, 50})
	require.NoError(t, err)
	assert.Equal(t, "maize", label)

	label, err = f.Predict([]float64{25, 70, 6.5, 200})
	require.NoError(t, err)
	assert.Equal(t, "rice", label)
}

func TestForest_PredictWrongFeatureCount(t *testing.T) {
	_, err := stump().Predict([]float64{25, 70})
	assert.ErrorIs(t, err, classifier.ErrFeatureCount)
}

func TestForest_MajorityVote(t *testing.T) {
	f := stump()
	leaf := func(class int) classifier.Tree {
		return classifier.Tree{Nodes: []classifier.Node{{Left: -1, Right: -1, Class: class}}}
	}
	f.Trees = []classifier.Tree{leaf(1), leaf(1), leaf(0)}

	label, err := f.Predict([]float64{0, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, "rice", label)

	// ties go to the first class
	f.Trees = []classifier.Tree{leaf(1), leaf(0)}
	label, err = f.Predict([]float64{0, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, "maize", label)
}

func TestForest_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, stump().Save(path))

	loaded, err := classifier.Load(path)
	require.NoError(t, err)

	label, err := loaded.Predict([]float64{25, 70, 6.5, 200})
	require.NoError(t, err)
	assert.Equal(t, "rice", label)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := classifier.Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte("not json"), 0o600))
	_, err = classifier.Load(garbage)
	assert.Error(t, err)
}

func TestForest_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *classifier.Forest)
	}{
		{"version", func(f *classifier.Forest) { f.Version = 99 }},
		{"no classes", func(f *classifier.Forest) { f.Classes = nil }},
		{"no trees", func(f *classifier.Forest) { f.Trees = nil }},
		{"class out of range", func(f *classifier.Forest) { f.Trees[0].Nodes[1].Class = 5 }},
		{"feature out of range", func(f *classifier.Forest) { f.Trees[0].Nodes[0].Feature = 9 }},
		{"child loops back", func(f *classifier.Forest) { f.Trees[0].Nodes[0].Left = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := stump()
			tt.mutate(f)
			assert.ErrorIs(t, f.Validate(), classifier.ErrInvalidModel)
		})
	}

	assert.NoError(t, stump().Validate())
}

// separableSamples builds two well separated clusters on rainfall.
func separableSamples() []classifier.Sample {
	var samples []classifier.Sample
	for i := 0; i < 60; i++ {
		d := float64(i % 10)
		samples = append(samples,
			classifier.Sample{Features: []float64{20 + d, 60 + d, 6 + d/10, 30 + d}, Label: "maize"},
			classifier.Sample{Features: []float64{24 + d, 80 + d, 6 + d/10, 220 + d}, Label: "rice"},
		)
	}
	return samples
}

func TestTrain_LearnsSeparableData(t *testing.T) {
	samples := separableSamples()
	train, test := classifier.Split(samples, 0.2, 42)

	cfg := classifier.DefaultTrainConfig()
	cfg.Trees = 15
	forest, err := classifier.Train(context.Background(), train, cfg)
	require.NoError(t, err)
	require.NoError(t, forest.Validate())

	assert.Equal(t, []string{"maize", "rice"}, forest.Classes)
	assert.Len(t, forest.Trees, 15)

	acc, err := classifier.Accuracy(forest, test)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, acc, 0.95)
}

func TestTrain_Deterministic(t *testing.T) {
	cfg := classifier.DefaultTrainConfig()
	cfg.Trees = 5

	a, err := classifier.Train(context.Background(), separableSamples(), cfg)
	require.NoError(t, err)
	b, err := classifier.Train(context.Background(), separableSamples(), cfg)
	require.NoError(t, err)

	assert.Equal(t, a.Trees, b.Trees)
}

func TestTrain_Errors(t *testing.T) {
	_, err := classifier.Train(context.Background(), nil, classifier.DefaultTrainConfig())
	assert.ErrorIs(t, err, classifier.ErrNoTrainingData)

	ragged := []classifier.Sample{
		{Features: []float64{1, 2, 3, 4}, Label: "a"},
		{Features: []float64{1, 2}, Label: "b"},
	}
	_, err = classifier.Train(context.Background(), ragged, classifier.DefaultTrainConfig())
	assert.ErrorIs(t, err, classifier.ErrFeatureCount)
}

func TestTrain_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := classifier.Train(ctx, separableSamples(), classifier.DefaultTrainConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSplit(t *testing.T) {
	samples := separableSamples()

	train, test := classifier.Split(samples, 0.2, 42)
	assert.Len(t, test, 24)
	assert.Len(t, train, 96)

	train2, test2 := classifier.Split(samples, 0.2, 42)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)
}

func TestReadCSV(t *testing.T) {
	data := `N,P,K,temperature,humidity,ph,rainfall,label
90,42,43,20.87,82.00,6.50,202.93,rice
85,58,41,21.77,80.31,7.03,226.65,rice
71,54,16,22.61,63.69,5.74,87.75,maize
`
	samples, err := classifier.ReadCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, samples, 3)

	assert.Equal(t, []float64{20.87, 82.00, 6.50, 202.93}, samples[0].Features)
	assert.Equal(t, "rice", samples[0].Label)
	assert.Equal(t, "maize", samples[2].Label)
}

func TestReadCSV_ClassColumn(t *testing.T) {
	data := "temperature,humidity,ph,rainfall,class\n25,70,6.5,100,coffee\n"

	samples, err := classifier.ReadCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, "coffee", samples[0].Label)
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"empty", "", classifier.ErrNoTrainingData},
		{"header only", "temperature,humidity,ph,rainfall,label\n", classifier.ErrNoTrainingData},
		{"missing feature", "temperature,humidity,rainfall,label\n25,70,100,rice\n", classifier.ErrMissingColumn},
		{"missing label", "temperature,humidity,ph,rainfall\n25,70,6.5,100\n", classifier.ErrMissingColumn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := classifier.ReadCSV(strings.NewReader(tt.data))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := classifier.ReadCSV(strings.NewReader("temperature,humidity,ph,rainfall,label\nhot,70,6.5,100,rice\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}
