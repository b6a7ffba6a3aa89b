package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lazypower/memorylayer/internal/engine"
	"github.com/lazypower/memorylayer/internal/health"
	"github.com/lazypower/memorylayer/internal/hooks"
	"github.com/lazypower/memorylayer/internal/store"
)

// apiClient talks to a running memorylayer server; session state lives there.
func apiClient() *hooks.Client {
	u := serverURL
	if u == "" {
		u = os.Getenv("MEMORYLAYER_URL")
	}
	return hooks.NewClientURL(u)
}

func postJSON(path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	data, err := apiClient().Post(path, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func getJSON(path string, out any) error {
	data, err := apiClient().Get(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// --- context ---

var (
	ctxMaxTokens int
	ctxFile      string
)

var contextCmd = &cobra.Command{
	Use:   "context <query>",
	Short: "Assemble context for a query",
	Long: heredoc.Doc(`
		Assemble a context document for the query from the running server.
		The document is printed to stdout; token and source counts go to stderr.
	`),
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out engine.AssembledContext
		err := postJSON("/api/context", map[string]any{
			"query":        strings.Join(args, " "),
			"max_tokens":   ctxMaxTokens,
			"current_file": ctxFile,
		}, &out)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out.Context)
		fmt.Fprintf(cmd.ErrOrStderr(), "%s tokens from %d sources\n", humanize.Comma(int64(out.TokenCount)), len(out.Sources))
		return nil
	},
}

// --- health ---

var (
	healthDrift float64
	healthJSON  bool
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show session memory health",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/api/context/health"
		if cmd.Flags().Changed("drift") {
			path += "?drift=" + strconv.FormatFloat(healthDrift, 'f', -1, 64)
		}
		var h health.ContextHealth
		if err := getJSON(path, &h); err != nil {
			return err
		}
		if healthJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(h)
		}
		printHealth(cmd.OutOrStdout(), h)
		return nil
	},
}

func printHealth(w io.Writer, h health.ContextHealth) {
	fmt.Fprintf(w, "Health:     %s\n", h.Health)
	fmt.Fprintf(w, "Tokens:     %s / %s (%.1f%%)\n",
		humanize.Comma(int64(h.TokensUsed)), humanize.Comma(int64(h.TokensLimit)), h.UtilizationPercent)
	fmt.Fprintf(w, "Relevance:  %.2f\n", h.RelevanceScore)
	fmt.Fprintf(w, "Drift:      %.2f\n", h.DriftScore)
	fmt.Fprintf(w, "Critical:   %d\n", h.CriticalContextCount)
	if len(h.Suggestions) > 0 {
		fmt.Fprintln(w, "\nSuggestions:")
		for _, s := range h.Suggestions {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
}

// --- critical ---

var (
	criticalType   string
	criticalReason string
	criticalFilter string
)

var criticalCmd = &cobra.Command{
	Use:   "critical",
	Short: "Manage context that survives compaction",
}

var criticalAddCmd = &cobra.Command{
	Use:   "add <content>",
	Short: "Mark content as critical",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var item health.CriticalContext
		err := postJSON("/api/critical", map[string]string{
			"content": strings.Join(args, " "),
			"type":    criticalType,
			"reason":  criticalReason,
			"source":  "cli",
		}, &item)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Marked %s as critical (%s)\n", item.ID, item.Type)
		return nil
	},
}

var criticalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List critical context",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/api/critical"
		if criticalFilter != "" {
			path += "?type=" + url.QueryEscape(criticalFilter)
		}
		var resp struct {
			Items []health.CriticalContext `json:"items"`
		}
		if err := getJSON(path, &resp); err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(resp.Items) == 0 {
			fmt.Fprintln(w, "No critical context.")
			return nil
		}
		for _, c := range resp.Items {
			fmt.Fprintf(w, "%s  [%s]  %s\n    %s\n", c.ID, c.Type, humanize.Time(c.CreatedAt), c.Content)
			if c.Reason != "" {
				fmt.Fprintf(w, "    reason: %s\n", c.Reason)
			}
		}
		return nil
	},
}

var criticalRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a critical context item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := apiClient().Do("DELETE", "/api/critical/"+url.PathEscape(args[0]), nil)
		if err != nil {
			return err
		}
		var resp struct {
			Removed bool `json:"removed"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return err
		}
		if !resp.Removed {
			return fmt.Errorf("no critical item %s", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
		return nil
	},
}

// --- compact ---

var (
	compactStrategy string
	compactPreserve int
	compactTarget   float64
	compactAuto     bool
)

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Compact session context",
	Long: heredoc.Doc(`
		Compact the running session. Critical context and the most recent
		chunks are never touched.

		Strategies:
		  selective   remove the least relevant chunks
		  summarize   replace chunks with short summaries (default)
		  aggressive  remove low-value chunks, then summarize the rest

		With --auto the strategy is chosen from the current health level and
		nothing happens while health is good.
	`),
	RunE: func(cmd *cobra.Command, args []string) error {
		var res health.CompactionResult
		var err error
		if compactAuto {
			err = postJSON("/api/compact/auto", struct{}{}, &res)
		} else {
			err = postJSON("/api/compact", map[string]any{
				"strategy":           compactStrategy,
				"preserve_recent":    compactPreserve,
				"target_utilization": compactTarget,
			}, &res)
		}
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if !res.Success {
			fmt.Fprintln(w, "Nothing to compact.")
			return nil
		}
		fmt.Fprintf(w, "%s: %s -> %s tokens (saved %s), %d summarized, %d removed\n",
			res.Strategy,
			humanize.Comma(int64(res.TokensBefore)), humanize.Comma(int64(res.TokensAfter)),
			humanize.Comma(int64(res.TokensSaved)), res.SummarizedChunks, res.RemovedChunks)
		return nil
	},
}

// --- decision ---

var (
	decisionDescription string
	decisionRationale   string
	decisionLimit       int
)

var decisionCmd = &cobra.Command{
	Use:   "decision",
	Short: "Record and list project decisions",
}

var decisionAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Record a decision",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var d store.Decision
		err := postJSON("/api/decisions", map[string]string{
			"title":       strings.Join(args, " "),
			"description": decisionDescription,
			"rationale":   decisionRationale,
		}, &d)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded decision %s\n", d.ID)
		return nil
	},
}

var decisionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent decisions",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Decisions []store.Decision `json:"decisions"`
		}
		if err := getJSON("/api/decisions?limit="+strconv.Itoa(decisionLimit), &resp); err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(resp.Decisions) == 0 {
			fmt.Fprintln(w, "No decisions recorded.")
			return nil
		}
		for _, d := range resp.Decisions {
			fmt.Fprintf(w, "- %s (%s)\n", d.Title, humanize.Time(d.CreatedAt))
			if d.Description != "" {
				fmt.Fprintf(w, "  %s\n", d.Description)
			}
		}
		return nil
	},
}

func init() {
	contextCmd.Flags().IntVarP(&ctxMaxTokens, "max-tokens", "m", 0, "token budget (default from config)")
	contextCmd.Flags().StringVarP(&ctxFile, "file", "f", "", "file being edited, boosts nearby code")

	healthCmd.Flags().Float64Var(&healthDrift, "drift", 0, "override drift score (0-1)")
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "print raw JSON")

	criticalAddCmd.Flags().StringVarP(&criticalType, "type", "t", "custom", "decision, requirement, instruction or custom")
	criticalAddCmd.Flags().StringVarP(&criticalReason, "reason", "r", "", "why this must be kept")
	criticalListCmd.Flags().StringVarP(&criticalFilter, "type", "t", "", "filter by type")
	criticalCmd.AddCommand(criticalAddCmd, criticalListCmd, criticalRmCmd)

	compactCmd.Flags().StringVarP(&compactStrategy, "strategy", "s", "summarize", "selective, summarize or aggressive")
	compactCmd.Flags().IntVar(&compactPreserve, "preserve-recent", 0, "recent chunks kept verbatim (default 10)")
	compactCmd.Flags().Float64Var(&compactTarget, "target", 0, "stop at this utilization percentage")
	compactCmd.Flags().BoolVar(&compactAuto, "auto", false, "pick the strategy from session health")

	decisionAddCmd.Flags().StringVarP(&decisionDescription, "description", "d", "", "what was decided")
	decisionAddCmd.Flags().StringVarP(&decisionRationale, "rationale", "r", "", "why")
	decisionListCmd.Flags().IntVarP(&decisionLimit, "limit", "n", 10, "maximum decisions to show")
	decisionCmd.AddCommand(decisionAddCmd, decisionListCmd)
}
