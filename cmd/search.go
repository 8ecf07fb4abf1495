package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ofertas-ai/offers-cli/internal/model"
	"github.com/ofertas-ai/offers-cli/internal/offers"
)

var searchCmd = &cobra.Command{
	Use:   "search <uf> <cidade>",
	Short: "Search current supermarket offers in a city",
	Long:  "Discovers supermarkets with active offers, then enriches each one concurrently. Results print as they arrive; completed runs are saved to the run store.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		region := model.Region{
			State: strings.ToUpper(strings.TrimSpace(args[0])),
			City:  strings.TrimSpace(args[1]),
		}
		if !region.Valid() {
			return eris.New("state and city are required")
		}

		backend, err := buildBackend()
		if err != nil {
			return err
		}

		var opts []offers.OrchestratorOption
		if noSave, _ := cmd.Flags().GetBool("no-save"); !noSave {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			opts = append(opts, offers.WithRunSink(storeSink{st}))
		}

		orch := offers.NewOrchestrator(
			offers.NewDiscoveryClient(backend),
			offers.NewDetailClient(backend),
			opts...,
		)
		updates, unsubscribe := orch.Subscribe()
		defer unsubscribe()
		gen := orch.StartSearch(ctx, region)

		fmt.Printf("Buscando supermercados em %s - %s...\n", region.City, region.State)

		final, err := streamRun(os.Stdout, updates, ctx.Done())
		if err != nil {
			return err
		}

		// The run goroutine persists after the final snapshot is published;
		// wait for it before the deferred store close.
		<-orch.Done(gen)

		if final.Phase == model.PhaseDiscoveryFailed {
			return eris.Errorf("discovery failed: %s", final.Error)
		}
		formatRunSummary(os.Stdout, region, final)
		return nil
	},
}

func init() {
	searchCmd.Flags().Bool("no-save", false, "do not persist the completed run")
	rootCmd.AddCommand(searchCmd)
}

// streamRun prints per-market transitions as snapshots arrive and returns
// the terminal state.
func streamRun(out io.Writer, updates <-chan model.RunState, done <-chan struct{}) (model.RunState, error) {
	seen := make(map[string]model.MarketStatus)
	for {
		select {
		case <-done:
			return model.RunState{}, eris.New("search interrupted")
		case snap, ok := <-updates:
			if !ok {
				return model.RunState{}, eris.New("update stream closed")
			}
			for _, m := range snap.Markets {
				if seen[m.ID] == m.Status {
					continue
				}
				seen[m.ID] = m.Status
				switch m.Status {
				case model.MarketStatusPending:
					fmt.Fprintf(out, "  … %s\n", m.Name)
				case model.MarketStatusReady:
					fmt.Fprintf(out, "  ✓ %s (%d ofertas)\n", m.Name, len(m.Products))
				case model.MarketStatusFailed:
					fmt.Fprintf(out, "  ✗ %s\n", m.Name)
				}
			}
			if snap.Phase == model.PhaseComplete || snap.Phase == model.PhaseDiscoveryFailed {
				return snap, nil
			}
		}
	}
}

// formatRunSummary writes the final per-market table and grouped offers.
func formatRunSummary(out io.Writer, region model.Region, state model.RunState) {
	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "MERCADO\tFAIXA\tSELO\tECONOMIA\tVALIDADE\tOFERTAS")
	for _, m := range state.Markets {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			m.Name, m.Tier, m.BadgeText, m.Savings, m.Validity, len(m.Products))
	}
	_ = w.Flush()

	for _, m := range state.Markets {
		grouped := m.GroupedProducts()
		if len(grouped) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n%s (%s)\n", m.Name, m.SourceURL(region))
		for _, cat := range model.CategoryOrder {
			products := grouped[cat]
			if len(products) == 0 {
				continue
			}
			fmt.Fprintf(out, "  %s:\n", cat)
			for _, p := range products {
				if p.OldPrice != "" {
					fmt.Fprintf(out, "    %s  R$ %s (antes R$ %s)\n", p.Name, p.Price, p.OldPrice)
				} else {
					fmt.Fprintf(out, "    %s  R$ %s\n", p.Name, p.Price)
				}
			}
		}
	}
}
