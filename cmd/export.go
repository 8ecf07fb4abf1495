package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"

	"github.com/ofertas-ai/offers-cli/internal/model"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a saved run to an .xlsx spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "export")
		}

		if err := writeRunXLSX(exportOut, run); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "ofertas.xlsx", "output file path")
	rootCmd.AddCommand(exportCmd)
}

// writeRunXLSX writes a run as two sheets: a per-market summary and the
// flattened offers grouped by market and category.
func writeRunXLSX(path string, run *model.Run) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet("Resumo")
	if err != nil {
		return eris.Wrap(err, "xlsx: add summary sheet")
	}
	addRow(summary, "Mercado", "Faixa", "Selo", "Economia", "Validade", "Fonte", "Ofertas")
	for _, m := range run.State.Markets {
		addRow(summary,
			m.Name, string(m.Tier), m.BadgeText, m.Savings, m.Validity,
			m.SourceURL(run.Region), fmt.Sprintf("%d", len(m.Products)))
	}

	sheet, err := f.AddSheet("Ofertas")
	if err != nil {
		return eris.Wrap(err, "xlsx: add offers sheet")
	}
	addRow(sheet, "Mercado", "Categoria", "Produto", "Preço", "Preço Anterior")
	for _, m := range run.State.Markets {
		grouped := m.GroupedProducts()
		for _, cat := range model.CategoryOrder {
			for _, p := range grouped[cat] {
				addRow(sheet, m.Name, cat, p.Name, p.Price, p.OldPrice)
			}
		}
	}

	return eris.Wrapf(f.Save(path), "xlsx: save %s", path)
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().Value = v
	}
}
