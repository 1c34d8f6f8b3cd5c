package memory_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lila-ai/lila-go/pkg/memory"
)

// stubExtractor merges by concatenation so tests can see both inputs in
// the result.
type stubExtractor struct{}

func (stubExtractor) Merge(ctx context.Context, existing, conversation string) (string, error) {
	return fmt.Sprintf("%s + %s", existing, conversation), nil
}

func TestProfile_DefaultEmpty(t *testing.T) {
	profile, err := memory.OpenProfile(t.TempDir(), stubExtractor{})
	require.NoError(t, err)
	assert.Empty(t, profile.Text())
}

func TestProfile_UpdateRewritesWholesale(t *testing.T) {
	dir := t.TempDir()
	profile, err := memory.OpenProfile(dir, stubExtractor{})
	require.NoError(t, err)

	require.NoError(t, profile.Update(context.Background(), "likes football"))
	assert.Equal(t, " + likes football", profile.Text())

	require.NoError(t, profile.Update(context.Background(), "has a dog"))
	assert.Equal(t, " + likes football + has a dog", profile.Text())

	// Last write wins across reload.
	reloaded, err := memory.OpenProfile(dir, stubExtractor{})
	require.NoError(t, err)
	assert.Equal(t, profile.Text(), reloaded.Text())
}

func TestProfile_ClearPersists(t *testing.T) {
	dir := t.TempDir()
	profile, err := memory.OpenProfile(dir, stubExtractor{})
	require.NoError(t, err)

	require.NoError(t, profile.Update(context.Background(), "likes football"))
	require.NoError(t, profile.Clear())
	assert.Empty(t, profile.Text())

	reloaded, err := memory.OpenProfile(dir, stubExtractor{})
	require.NoError(t, err)
	assert.Empty(t, reloaded.Text())
}
