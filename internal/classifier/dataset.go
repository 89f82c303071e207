package classifier

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrMissingColumn is returned when a dataset lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// labelColumns are accepted names for the class column, in priority order.
var labelColumns = []string{"label", "class"}

// ReadCSVFile reads a labelled dataset from path.
func ReadCSVFile(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV reads a dataset with a header row containing every name in
// FeatureNames plus a label or class column. Extra columns are ignored.
func ReadCSV(r io.Reader) ([]Sample, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrNoTrainingData)
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}

	featureCols := make([]int, len(FeatureNames))
	for i, name := range FeatureNames {
		col, ok := columns[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
		featureCols[i] = col
	}

	labelCol := -1
	for _, name := range labelColumns {
		if col, ok := columns[name]; ok {
			labelCol = col
			break
		}
	}
	if labelCol < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(labelColumns, " or "))
	}

	var samples []Sample
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading dataset: %w", err)
		}
		line, _ := reader.FieldPos(0)

		features := make([]float64, len(featureCols))
		for i, col := range featureCols {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid %s %q", line, FeatureNames[i], record[col])
			}
			features[i] = v
		}

		label := strings.TrimSpace(record[labelCol])
		if label == "" {
			return nil, fmt.Errorf("line %d: empty label", line)
		}
		samples = append(samples, Sample{Features: features, Label: label})
	}

	if len(samples) == 0 {
		return nil, ErrNoTrainingData
	}
	return samples, nil
}
