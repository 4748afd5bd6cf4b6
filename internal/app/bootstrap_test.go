package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octobees/turmeric-buyers/internal/config"
	"github.com/octobees/turmeric-buyers/internal/dto"
)

func TestOpenStoreSQLite(t *testing.T) {
	ctx := context.Background()
	repo, closeFn, err := OpenStore(ctx, config.StoreConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "buyers.db"),
	})
	require.NoError(t, err)
	t.Cleanup(closeFn)

	buyers, err := repo.List(ctx, dto.BuyerFilter{})
	require.NoError(t, err)
	assert.Empty(t, buyers)
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	_, _, err := OpenStore(context.Background(), config.StoreConfig{Driver: "mongo"})
	assert.Error(t, err)
}

func TestCollectors(t *testing.T) {
	collectors, err := Collectors(config.CollectConfig{
		CSVPath:       "buyers.csv",
		XLSXPath:      "buyers.xlsx",
		DirectoryURLs: []string{"https://www.example-b2b.com/search?q=%s"},
	}, nil)
	require.NoError(t, err)

	names := make([]string, 0, len(collectors))
	for _, c := range collectors {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"csv", "xlsx", "example-b2b.com"}, names)

	collectors, err = Collectors(config.CollectConfig{DisableDirectories: true}, nil)
	require.NoError(t, err)
	assert.Empty(t, collectors)
	assert.Nil(t, MultiCollector(config.CollectConfig{}, collectors))
}
