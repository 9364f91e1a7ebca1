package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/triage/internal/analytics"
	"github.com/kalambet/triage/internal/config"
	"github.com/kalambet/triage/internal/resolution"
	"github.com/kalambet/triage/internal/storage"
)

// --- submit ---

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a complaint for resolution",
	Long: `Submit a complaint for resolution.

Examples:
  triage submit --email jane@example.com --text "I was charged twice this month"
  triage submit --email jane@example.com --text "The app crashes on login" --async`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		text, _ := cmd.Flags().GetString("text")
		async, _ := cmd.Flags().GetBool("async")

		if email == "" || text == "" {
			return fmt.Errorf("--email and --text are required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := resolution.Complaint{CustomerEmail: email, Text: text}
		out := cmd.OutOrStdout()

		if async {
			resp, err := client.post(cmd.Context(), "/complaints/async", req)
			if err != nil {
				return err
			}
			var result map[string]string
			if err := decodeJSON(resp, &result); err != nil {
				return err
			}
			fmt.Fprintf(out, "Complaint %s\n", result["status"])
			return nil
		}

		resp, err := client.post(cmd.Context(), "/complaints", req)
		if err != nil {
			return err
		}
		var res resolution.Result
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		printResolution(out, res)
		return nil
	},
}

func init() {
	submitCmd.Flags().String("email", "", "customer email address")
	submitCmd.Flags().String("text", "", "complaint text")
	submitCmd.Flags().Bool("async", false, "queue the complaint instead of waiting for the answer")
}

func printResolution(w io.Writer, res resolution.Result) {
	fmt.Fprintf(w, "Complaint #%d\n", res.ComplaintID)
	fmt.Fprintf(w, "  Category:  %s\n", res.NormalizedKey)
	fmt.Fprintf(w, "  Sentiment: %s\n", res.Sentiment)
	fmt.Fprintf(w, "  Answer:    %s\n", colorize(answerColor(string(res.AnswerType)), string(res.AnswerType)))
	for _, m := range res.SimilarMatches {
		fmt.Fprintf(w, "  Similar:   %.2f %s/%s\n", m.Score, m.Category, m.Sentiment)
	}
	fmt.Fprintf(w, "\n%s\n", res.EmailResponse)
}

// --- analytics ---

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Show complaint totals and shares",
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOut, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/analytics")
		if err != nil {
			return err
		}
		var snap analytics.Snapshot
		if err := decodeJSON(resp, &snap); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOut {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}

		fmt.Fprintf(out, "Total complaints: %d\n", snap.TotalComplaints)
		fmt.Fprintf(out, "Sentiment: %d positive, %d negative\n", snap.Sentiment.Positive, snap.Sentiment.Negative)
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ANSWER\tCOUNT\tSHARE")
		fmt.Fprintf(tw, "Known solution\t%d\t%s%%\n", snap.AnswerTypes.KnownSolution.Count, snap.AnswerTypes.KnownSolution.Percentage)
		fmt.Fprintf(tw, "Stock\t%d\t%s%%\n", snap.AnswerTypes.Stock.Count, snap.AnswerTypes.Stock.Percentage)
		return tw.Flush()
	},
}

func init() {
	analyticsCmd.Flags().Bool("json", false, "print the raw JSON snapshot")
}

// --- complaints ---

var complaintsCmd = &cobra.Command{
	Use:   "complaints",
	Short: "Inspect stored complaints",
}

var complaintsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent complaints, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		q := url.Values{}
		q.Set("limit", strconv.Itoa(limit))
		q.Set("offset", strconv.Itoa(offset))
		resp, err := client.get(cmd.Context(), "/complaints?"+q.Encode())
		if err != nil {
			return err
		}
		var complaints []storage.Complaint
		if err := decodeJSON(resp, &complaints); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(complaints) == 0 {
			fmt.Fprintln(out, "No complaints.")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCREATED\tCATEGORY\tSENTIMENT\tANSWER\tEMAIL")
		for _, c := range complaints {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
				c.ID, c.CreatedAt.Local().Format(time.DateTime), c.NormalizedKey, c.Sentiment, c.AnswerType, c.CustomerEmail)
		}
		return tw.Flush()
	},
}

func init() {
	complaintsListCmd.Flags().Int("limit", 20, "maximum number of complaints")
	complaintsListCmd.Flags().Int("offset", 0, "number of complaints to skip")
	complaintsCmd.AddCommand(complaintsListCmd)
}

// --- solutions ---

var solutionsCmd = &cobra.Command{
	Use:   "solutions",
	Short: "Manage curated solutions per category",
}

var solutionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List curated solutions",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/solutions")
		if err != nil {
			return err
		}
		var solutions []storage.Solution
		if err := decodeJSON(resp, &solutions); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(solutions) == 0 {
			fmt.Fprintln(out, "No solutions.")
			return nil
		}
		for _, s := range solutions {
			fmt.Fprintf(out, "%s\n  %s\n", colorize(colorBold, s.NormalizedKey), s.SolutionText)
		}
		return nil
	},
}

var solutionsSetCmd = &cobra.Command{
	Use:   "set <category> <text>",
	Short: "Create or replace the solution for a category",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, text := args[0], args[1]

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.put(cmd.Context(), "/solutions/"+url.PathEscape(key), map[string]string{"solution_text": text})
		if err != nil {
			return err
		}
		var s storage.Solution
		if err := decodeJSON(resp, &s); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved solution for %s\n", s.NormalizedKey)
		return nil
	},
}

var solutionsDeleteCmd = &cobra.Command{
	Use:   "delete <category>",
	Short: "Remove the solution for a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/solutions/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted solution for %s\n", args[0])
		return nil
	},
}

func init() {
	solutionsCmd.AddCommand(solutionsListCmd)
	solutionsCmd.AddCommand(solutionsSetCmd)
	solutionsCmd.AddCommand(solutionsDeleteCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show all configuration values",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tVALUE\tENV")
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", k.Key, k.Value, k.EnvVar)
		}
		if path := config.FilePath(); path != "" {
			fmt.Fprintf(tw, "\nConfig file: %s\n", path)
		}
		return tw.Flush()
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(key, value); err != nil {
			return fmt.Errorf("%w\nvalid keys: %s", err, strings.Join(config.ValidKeys(), ", "))
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
