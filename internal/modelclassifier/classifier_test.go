package modelclassifier

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/edgeworks/nfledge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWeights(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadWeightsRejectsUnknownField(t *testing.T) {
	path := writeWeights(t, `{"intercept": 0, "coef": {"not_a_real_field": 1.0}}`)
	_, err := LoadWeights(path)
	assert.Error(t, err)
}

func TestPredictFavorsHomeOnPositiveEloDiff(t *testing.T) {
	path := writeWeights(t, `{"intercept": 0, "coef": {"home_elo_diff": 0.01}}`)
	w, err := LoadWeights(path)
	require.NoError(t, err)

	c := New(w)
	fv := &domain.FeatureVector{HomeEloDiff: 100}
	prob, side, err := c.Predict(context.Background(), fv)
	require.NoError(t, err)
	assert.Equal(t, domain.SideHome, side)
	assert.Greater(t, prob, 0.5)
}

func TestPredictFavorsAwayOnNegativeEloDiff(t *testing.T) {
	path := writeWeights(t, `{"intercept": 0, "coef": {"home_elo_diff": 0.01}}`)
	w, err := LoadWeights(path)
	require.NoError(t, err)

	c := New(w)
	fv := &domain.FeatureVector{HomeEloDiff: -200}
	prob, side, err := c.Predict(context.Background(), fv)
	require.NoError(t, err)
	assert.Equal(t, domain.SideAway, side)
	assert.Greater(t, prob, 0.5)
}

func TestTrainReturnsSameArtifact(t *testing.T) {
	path := writeWeights(t, `{"intercept": 0.1, "coef": {}}`)
	w, err := LoadWeights(path)
	require.NoError(t, err)

	c := New(w)
	trained, err := c.Train(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Same(t, c, trained)
}
