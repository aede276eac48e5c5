package kinds

import (
	"strings"
	"testing"

	"github.com/cascadehq/cascade/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ResolvesBuiltins(t *testing.T) {
	r := NewRegistry()

	for _, tag := range []models.NodeKind{
		models.KindDataFrame, models.KindFigure, models.KindCallable, models.KindObject,
	} {
		kind, err := r.Resolve(tag)
		require.NoError(t, err)
		assert.Equal(t, tag, kind.Tag())
	}
}

func TestRegistry_EmptyTagDefaultsToObject(t *testing.T) {
	r := NewRegistry()

	kind, err := r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, models.KindObject, kind.Tag())
	assert.Equal(t, "pickle", kind.Format())
}

func TestRegistry_UnknownTag(t *testing.T) {
	r := NewRegistry()

	_, err := r.Resolve("hologram")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hologram")
}

func TestPersistAndLoadCodeMentionNodeAndPath(t *testing.T) {
	r := NewRegistry()

	for _, tag := range r.Tags() {
		kind, err := r.Resolve(tag)
		require.NoError(t, err)

		path := kind.ArtifactPath("/artifacts", "proj", "orders")
		assert.True(t, strings.HasPrefix(path, "/artifacts/"))

		persist := kind.PersistCode("orders", path)
		assert.Contains(t, persist, "orders")
		assert.Contains(t, persist, path)

		load := kind.LoadCode("orders", path)
		assert.Contains(t, load, "orders")
		assert.Contains(t, load, path)
	}
}

func TestOnlyCallableRequiresCallableVerification(t *testing.T) {
	r := NewRegistry()

	for _, tag := range r.Tags() {
		kind, err := r.Resolve(tag)
		require.NoError(t, err)

		assert.Equal(t, tag == models.KindCallable, kind.VerifyCallable())
	}
}
