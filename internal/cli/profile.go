package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/raphaelgruber/careerpulse/internal/models"
	"github.com/spf13/cobra"
)

var (
	profileDescription string
	profileJSON        bool
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage career profiles",
	Long: `Create and inspect the career profiles that own curated insights.

Examples:
  careerpulse profile create "Ana Torres" --description "Final year, interested in health care"
  careerpulse profile show ana-torres-1a2b3c4d`,
}

var profileCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileCreate,
}

var profileShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a profile and its saved insights",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileShow,
}

func init() {
	profileCreateCmd.Flags().StringVarP(&profileDescription, "description", "d", "", "profile description")
	profileShowCmd.Flags().BoolVar(&profileJSON, "json", false, "print the profile as JSON")

	profileCmd.AddCommand(profileCreateCmd)
	profileCmd.AddCommand(profileShowCmd)
}

func runProfileCreate(cmd *cobra.Command, args []string) error {
	var desc *string
	if profileDescription != "" {
		desc = &profileDescription
	}

	p, err := apiClient.CreateProfile(context.Background(), args[0], desc)
	if err != nil {
		return err
	}
	fmt.Printf("Created profile %s (%s)\n", p.Name, p.ID)
	return nil
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	p, err := apiClient.GetProfile(context.Background(), args[0])
	if err != nil {
		return err
	}

	if profileJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}
	printProfile(p)
	return nil
}

func printProfile(p *models.ProfileView) {
	fmt.Printf("%s (%s)\n", p.Name, p.ID)
	if p.Description != nil {
		fmt.Printf("%s\n", *p.Description)
	}
	fmt.Printf("Created: %s\n", p.Created.Format("2006-01-02 15:04"))

	if len(p.Insights) == 0 {
		fmt.Println("\nNo saved insights.")
		return
	}

	if p.InsightsUpdatedAt != nil {
		fmt.Printf("\nSaved insights (%d, updated %s):\n", len(p.Insights), p.InsightsUpdatedAt.Format("2006-01-02 15:04"))
	} else {
		fmt.Printf("\nSaved insights (%d):\n", len(p.Insights))
	}
	for _, rec := range p.Insights {
		fmt.Printf("  • %s [%s, %s]\n", rec.Title, rec.Category, rec.Relevance)
		if rec.StudentRecommendation != "" {
			fmt.Printf("    → %s\n", rec.StudentRecommendation)
		}
	}
}
