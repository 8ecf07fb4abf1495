//go:build !integration

package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/ofertas-ai/offers-cli/internal/model"
)

func exportSampleRun() *model.Run {
	region := model.Region{State: "SP", City: "Campinas"}
	return &model.Run{
		ID:        "run-1",
		Region:    region,
		RegionKey: "sp/campinas",
		CreatedAt: time.Now().UTC(),
		State: model.RunState{
			Region: region,
			Phase:  model.PhaseComplete,
			Markets: []model.MarketRecord{
				{
					ID: "1", Name: "Mercado A", Status: model.MarketStatusReady,
					Tier: model.TierCheap, BadgeText: "Mais barato", Savings: "R$ 50", Validity: "Até 07/09",
					Link: "https://mercadoa.com.br/folheto",
					Products: []model.ProductOffer{
						{Category: model.CategoryBeverage, Name: "Suco 1L", Price: "6,50"},
						{Category: model.CategoryGrocery, Name: "Arroz 5kg", Price: "24,90", OldPrice: "29,90"},
					},
				},
				{ID: "2", Name: "Mercado B", Status: model.MarketStatusReady, Tier: model.TierMedium},
			},
		},
	}
}

func TestWriteRunXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ofertas.xlsx")
	require.NoError(t, writeRunXLSX(path, exportSampleRun()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)

	summary, ok := f.Sheet["Resumo"]
	require.True(t, ok)
	require.Len(t, summary.Rows, 3) // header + two markets
	assert.Equal(t, "Mercado", summary.Rows[0].Cells[0].String())
	assert.Equal(t, "Mercado A", summary.Rows[1].Cells[0].String())
	assert.Equal(t, "CHEAP", summary.Rows[1].Cells[1].String())
	assert.Equal(t, "https://mercadoa.com.br/folheto", summary.Rows[1].Cells[5].String())
	assert.Equal(t, "2", summary.Rows[1].Cells[6].String())

	sheet, ok := f.Sheet["Ofertas"]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 3) // header + two offers

	// Offers print in category display order: Mercearia before Bebidas.
	assert.Equal(t, model.CategoryGrocery, sheet.Rows[1].Cells[1].String())
	assert.Equal(t, "Arroz 5kg", sheet.Rows[1].Cells[2].String())
	assert.Equal(t, "29,90", sheet.Rows[1].Cells[4].String())
	assert.Equal(t, model.CategoryBeverage, sheet.Rows[2].Cells[1].String())
}
