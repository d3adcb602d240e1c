package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/raphaelgruber/careerpulse/internal/client"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	insightsProfile string
	insightsSelect  []int
	insightsPlain   bool
)

var insightsCmd = &cobra.Command{
	Use:   "insights <topic>",
	Short: "Stream labor-market insights for a career or topic",
	Long: `Run an insight analysis for a career or topic and watch the results arrive.

In a terminal an interactive view lets you pick up to 10 insights and save
them to a profile. With --plain, or when output is not a terminal, progress
is printed line by line and --select chooses insights by id.

Examples:
  careerpulse insights "nursing in Valencia"
  careerpulse insights "data science" --profile ana-torres-1a2b3c4d
  careerpulse insights welding --plain --profile ana-torres-1a2b3c4d --select 1,3,4`,
	Args: cobra.ExactArgs(1),
	RunE: runInsights,
}

func init() {
	insightsCmd.Flags().StringVarP(&insightsProfile, "profile", "p", "", "profile ID to save selected insights to")
	insightsCmd.Flags().IntSliceVarP(&insightsSelect, "select", "s", nil, "insight ids to save (non-interactive)")
	insightsCmd.Flags().BoolVar(&insightsPlain, "plain", false, "disable the interactive view")
}

func runInsights(cmd *cobra.Command, args []string) error {
	topic := strings.TrimSpace(args[0])
	if topic == "" {
		return errors.New("topic is required")
	}
	if len(insightsSelect) > 0 && insightsProfile == "" {
		return errors.New("--select requires --profile")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	interactive := !insightsPlain && len(insightsSelect) == 0 && term.IsTerminal(int(os.Stdout.Fd()))
	if interactive {
		return RunInsightsView(ctx, apiClient, topic, insightsProfile)
	}
	return runInsightsPlain(ctx, topic)
}

func runInsightsPlain(ctx context.Context, topic string) error {
	printed := 0
	result, err := apiClient.StreamInsights(ctx, topic, func(p client.Progress) {
		for _, line := range p.Log[min(printed, len(p.Log)):] {
			fmt.Println(line)
		}
		printed = len(p.Log)
	})
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	fmt.Println()
	printResult(result)

	if len(insightsSelect) == 0 {
		return nil
	}

	sel, err := client.NewSelection(result)
	if err != nil {
		return err
	}
	for _, id := range insightsSelect {
		if sel.Contains(id) {
			continue
		}
		switch sel.Toggle(id) {
		case client.LimitReached:
			warnf("at most %d insights can be saved, skipping %d", client.MaxSelection, id)
		case client.Unknown:
			warnf("no insight %d in this run", id)
		}
	}

	view, err := apiClient.CommitSelection(ctx, insightsProfile, sel)
	if err != nil {
		return err
	}
	fmt.Printf("\nSaved %d insights to profile %s\n", len(view.Insights), view.ID)
	return nil
}

// printResult displays a completed run.
func printResult(r *client.Result) {
	fmt.Printf("Insights for %q (%d)\n", r.Topic(), r.Len())
	fmt.Printf("═══════════════════════════════════════\n")
	for _, rec := range r.Insights() {
		fmt.Printf("[%d] %s (%s, %s)\n", rec.ID, rec.Title, rec.Category, rec.Relevance)
		if rec.Description != "" {
			fmt.Printf("    %s\n", rec.Description)
		}
	}

	s := r.Summary()
	fmt.Printf("\nExecutive Summary\n")
	fmt.Printf("  Trend:          %s\n", s.GeneralTrend)
	fmt.Printf("  Opportunity:    %s\n", s.MainOpportunity)
	for _, c := range s.MainChallenges {
		fmt.Printf("  Challenge:      %s\n", c)
	}
	fmt.Printf("  Recommendation: %s\n", s.GeneralRecommendation)
	fmt.Printf("  Outlook:        %s\n", s.OutlookNextPeriod)
}
