package retrieval

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.Equal(t, 12, c.Len())
}

func TestRetrieve_RanksByKeywordOverlap(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	got, err := c.Retrieve(context.Background(), "Tem piscina e garagem?", nil)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	require.True(t, strings.HasPrefix(got[0], "Evergreen Pure - Comodidades:"))
}

func TestRetrieve_PropertyFilterRanksFirst(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	got, err := c.Retrieve(context.Background(), "Qual o preço do apartamento?", map[string]string{FilterPropertyID: "a1"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(got[0], "Apartamento A01:"))
	require.LessOrEqual(t, len(got), 5)
}

func TestRetrieve_NoMatch(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	got, err := c.Retrieve(context.Background(), "olá", nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestRetrieve_ProjectFilterAndLimit(t *testing.T) {
	c, err := Parse([]byte(`
documents:
  - id: one
    title: Evergreen
    project: Evergreen Pure
    content: apartamento com varanda
  - id: two
    title: Riverside
    project: Riverside Lofts
    content: apartamento com varanda e vista rio
  - id: three
    title: Evergreen B
    project: Evergreen Pure
    content: apartamento
`), WithLimit(1))
	require.NoError(t, err)

	got, err := c.Retrieve(context.Background(), "apartamento varanda", map[string]string{FilterProject: "Evergreen Pure"})
	require.NoError(t, err)
	require.Equal(t, []string{"Evergreen: apartamento com varanda"}, got)
}

func TestRetrieve_CancelledContext(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Retrieve(ctx, "piscina", nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("documents:\n  - id: x\n    title: X\n    content: texto\n"), 0o600))
	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	require.NoError(t, os.WriteFile(path, []byte("documents:\n  - id: empty\n"), 0o600))
	_, err = Load(path)
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
