package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/larder-app/larder/internal/config"
)

// itemFlags are shared between `add` and `assess`.
func itemFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("quantity", 1, "quantity on hand")
	cmd.Flags().String("unit", "", "unit of measure, e.g. liters")
	cmd.Flags().String("category", "", "category (predicted from the name when omitted)")
	cmd.Flags().String("purchase", "", "purchase date as YYYY-MM-DD")
	cmd.Flags().String("expiry", "", "expiry date as YYYY-MM-DD")
	cmd.Flags().String("last-used", "", "last use date as YYYY-MM-DD")
	cmd.Flags().String("location", "", "storage location: pantry, fridge, or freezer")
}

func itemBody(cmd *cobra.Command, name string) map[string]any {
	quantity, _ := cmd.Flags().GetFloat64("quantity")
	unit, _ := cmd.Flags().GetString("unit")
	category, _ := cmd.Flags().GetString("category")
	purchase, _ := cmd.Flags().GetString("purchase")
	expiry, _ := cmd.Flags().GetString("expiry")
	lastUsed, _ := cmd.Flags().GetString("last-used")
	location, _ := cmd.Flags().GetString("location")

	body := map[string]any{
		"name":     name,
		"quantity": quantity,
	}
	for k, v := range map[string]string{
		"unit":             unit,
		"category":         category,
		"purchase_date":    purchase,
		"expiry_date":      expiry,
		"last_used_date":   lastUsed,
		"storage_location": location,
	} {
		if v != "" {
			body[k] = v
		}
	}
	return body
}

// --- add ---

var addCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add an item to the pantry",
	Long: `Add an item to the pantry.

Examples:
  larder add "Whole Milk" --quantity 1 --unit liter --expiry 2026-09-05 --location fridge
  larder add "Canned Beans" --quantity 3`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/items", itemBody(cmd, name))
		if err != nil {
			return err
		}

		var item struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Category string `json:"category"`
		}
		if err := decodeJSON(resp, &item); err != nil {
			return err
		}

		printSuccess("Added %s (%s, id %s)", item.Name, item.Category, item.ID[:8])
		return nil
	},
}

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List pantry items with their current risk",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		itemsResp, err := client.get(cmd.Context(), "/items")
		if err != nil {
			return err
		}
		var items []struct {
			ID       string  `json:"id"`
			Name     string  `json:"name"`
			Category string  `json:"category"`
			Quantity float64 `json:"quantity"`
			Unit     string  `json:"unit"`
		}
		if err := decodeJSON(itemsResp, &items); err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("Pantry is empty.")
			return nil
		}

		assessResp, err := client.post(cmd.Context(), "/pantry/assess", nil)
		if err != nil {
			return err
		}
		var assessments []struct {
			ItemID string `json:"item_id"`
			Risk   struct {
				Value float64 `json:"value"`
			} `json:"risk"`
			Recommendation struct {
				Action string `json:"action"`
			} `json:"recommendation"`
		}
		if err := decodeJSON(assessResp, &assessments); err != nil {
			return err
		}

		byItem := make(map[string]int, len(assessments))
		for i, a := range assessments {
			byItem[a.ItemID] = i
		}

		for _, it := range items {
			risk, action := 0.0, "-"
			if i, ok := byItem[it.ID]; ok {
				risk = assessments[i].Risk.Value
				action = assessments[i].Recommendation.Action
			}
			qty := fmt.Sprintf("%g", it.Quantity)
			if it.Unit != "" {
				qty += " " + it.Unit
			}
			fmt.Printf("%s  %-24s %-12s %-10s %s  %s\n",
				colorize(colorCyan, it.ID[:8]),
				it.Name,
				it.Category,
				qty,
				colorize(riskColor(risk), fmt.Sprintf("risk %.2f", risk)),
				action,
			)
		}
		return nil
	},
}

// --- remove ---

var removeCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove an item from the pantry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/items/"+args[0])
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Removed item %s", args[0])
		return nil
	},
}

// --- assess ---

var assessCmd = &cobra.Command{
	Use:   "assess <name>",
	Short: "Assess an item's expiry risk without saving it",
	Long: `Assess an item's expiry risk without saving it.

Examples:
  larder assess "Whole Milk" --expiry 2026-09-02 --location fridge
  larder assess "Canned Beans" --quantity 3 --as-of 2026-06-01`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.Join(args, " ")
		asOf, _ := cmd.Flags().GetString("as-of")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		body := map[string]any{"item": itemBody(cmd, name)}
		if asOf != "" {
			body["as_of"] = asOf
		}
		resp, err := client.post(cmd.Context(), "/assess", body)
		if err != nil {
			return err
		}

		var a struct {
			Category struct {
				Category   string  `json:"category"`
				Confidence float64 `json:"confidence"`
			} `json:"category"`
			Risk struct {
				Value        float64 `json:"value"`
				ModelVersion string  `json:"model_version"`
				TopFeatures  []struct {
					Feature      string  `json:"feature"`
					Contribution float64 `json:"contribution"`
				} `json:"top_features"`
			} `json:"risk"`
			Recommendation struct {
				Action string `json:"action"`
				Reason string `json:"reason"`
			} `json:"recommendation"`
		}
		if err := decodeJSON(resp, &a); err != nil {
			return err
		}

		printStatus("Category", "%s (confidence %.2f)", a.Category.Category, a.Category.Confidence)
		printStatus("Risk", "%s", colorize(riskColor(a.Risk.Value), fmt.Sprintf("%.2f", a.Risk.Value)))
		printStatus("Action", "%s", a.Recommendation.Action)
		printStatus("Reason", "%s", a.Recommendation.Reason)
		printStatus("Model", "%s", a.Risk.ModelVersion)
		for _, f := range a.Risk.TopFeatures {
			printStatus("  "+f.Feature, "%.3f", f.Contribution)
		}
		return nil
	},
}

// --- categorize ---

var categorizeCmd = &cobra.Command{
	Use:   "categorize <name>",
	Short: "Predict the category for an item name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/categorize", map[string]string{
			"name": strings.Join(args, " "),
		})
		if err != nil {
			return err
		}

		var prediction struct {
			Category   string  `json:"category"`
			Confidence float64 `json:"confidence"`
		}
		if err := decodeJSON(resp, &prediction); err != nil {
			return err
		}
		fmt.Printf("%s (confidence %.2f)\n", colorize(colorBold, prediction.Category), prediction.Confidence)
		return nil
	},
}

// --- insights ---

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Show pantry-wide analytics and suggestions",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/insights")
		if err != nil {
			return err
		}

		var report struct {
			TotalItems         int            `json:"total_items"`
			RiskDistribution   map[string]int `json:"risk_distribution"`
			AvgDaysUntilExpiry float64        `json:"avg_days_until_expiry"`
			Suggestions        []string       `json:"suggestions"`
		}
		if err := decodeJSON(resp, &report); err != nil {
			return err
		}

		printStatus("Items", "%d", report.TotalItems)
		if report.TotalItems > 0 {
			printStatus("Avg days to expiry", "%.1f", report.AvgDaysUntilExpiry)
			for _, band := range []string{"critical", "high", "medium", "low"} {
				if n := report.RiskDistribution[band]; n > 0 {
					printStatus("  "+band, "%d", n)
				}
			}
		}
		for _, s := range report.Suggestions {
			printStep("%s", s)
		}
		return nil
	},
}

// --- import ---

var importCmd = &cobra.Command{
	Use:   "import <receipt>",
	Short: "Parse a receipt (PDF or text) into draft items",
	Long: `Parse a receipt into draft items with suggested categories.

Drafts are printed for review; pass --save to add them to the pantry.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		save, _ := cmd.Flags().GetBool("save")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading receipt: %w", err)
		}
		contentType := "application/pdf"
		if strings.ToLower(filepath.Ext(args[0])) == ".txt" {
			contentType = "text/plain"
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.postRaw(cmd.Context(), "/import/receipt", contentType, data)
		if err != nil {
			return err
		}

		var drafts []struct {
			Name              string  `json:"name"`
			Quantity          float64 `json:"quantity"`
			Unit              string  `json:"unit"`
			SuggestedCategory struct {
				Category string `json:"category"`
			} `json:"suggested_category"`
		}
		if err := decodeJSON(resp, &drafts); err != nil {
			return err
		}
		if len(drafts) == 0 {
			fmt.Println("No items recognized.")
			return nil
		}

		for _, d := range drafts {
			fmt.Printf("  %-24s x%g %s  %s\n", d.Name, d.Quantity, d.Unit,
				colorize(colorCyan, d.SuggestedCategory.Category))
		}
		if !save {
			printStep("Review the drafts above, then re-run with --save to add them.")
			return nil
		}

		for _, d := range drafts {
			body := map[string]any{
				"name":     d.Name,
				"quantity": d.Quantity,
				"unit":     d.Unit,
				"category": d.SuggestedCategory.Category,
			}
			saveResp, err := client.post(cmd.Context(), "/items", body)
			if err != nil {
				return err
			}
			var item map[string]any
			if err := decodeJSON(saveResp, &item); err != nil {
				printError("Failed to save %s: %v", d.Name, err)
				continue
			}
		}
		printSuccess("Added %d items", len(drafts))
		return nil
	},
}

// --- outcome ---

var outcomeCmd = &cobra.Command{
	Use:   "outcome <id>",
	Short: "Resolve an item as consumed or spoiled",
	Long: `Resolve an item: record whether it was consumed in time or discarded
as expired, and remove it from the active pantry. Outcomes feed training.

Examples:
  larder outcome 4f3a2b1c --consumed
  larder outcome 4f3a2b1c --spoiled --date 2026-08-20`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spoiled, _ := cmd.Flags().GetBool("spoiled")
		consumed, _ := cmd.Flags().GetBool("consumed")
		date, _ := cmd.Flags().GetString("date")

		if spoiled == consumed {
			return fmt.Errorf("exactly one of --spoiled or --consumed is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		body := map[string]any{"spoiled": spoiled}
		if date != "" {
			body["resolved_at"] = date
		}
		resp, err := client.post(cmd.Context(), "/items/"+args[0]+"/outcome", body)
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if spoiled {
			printSuccess("Recorded spoiled outcome for %s", args[0])
		} else {
			printSuccess("Recorded consumed outcome for %s", args[0])
		}
		return nil
	},
}

// --- train ---

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit a new model artifact from recorded outcomes",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Training from recorded outcomes...")
		resp, err := client.post(cmd.Context(), "/train", nil)
		if err != nil {
			return err
		}

		var result struct {
			Version     string `json:"version"`
			SampleCount int    `json:"sample_count"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Trained and published artifact %s (%d samples)", result.Version, result.SampleCount)
		return nil
	},
}

// --- models ---

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Show model registry status",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/registry/status")
		if err != nil {
			return err
		}

		var status struct {
			Current     string   `json:"current"`
			Versions    []string `json:"versions"`
			TrainedAt   string   `json:"trained_at"`
			SampleCount int      `json:"sample_count"`
		}
		if err := decodeJSON(resp, &status); err != nil {
			return err
		}

		printStatus("Current", "%s", status.Current)
		if status.TrainedAt != "" {
			printStatus("Trained at", "%s", status.TrainedAt)
			printStatus("Samples", "%d", status.SampleCount)
		}
		for _, v := range status.Versions {
			marker := " "
			if v == status.Current {
				marker = "*"
			}
			fmt.Printf("  %s %s\n", marker, v)
		}
		return nil
	},
}

var modelsRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Hot-swap to the newest artifact on disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/registry/refresh", nil)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Current artifact: %s", result["version"])
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	itemFlags(addCmd)

	itemFlags(assessCmd)
	assessCmd.Flags().String("as-of", "", "reference date as YYYY-MM-DD (default: today)")

	importCmd.Flags().Bool("save", false, "add the parsed drafts to the pantry")

	outcomeCmd.Flags().Bool("spoiled", false, "item was discarded as expired")
	outcomeCmd.Flags().Bool("consumed", false, "item was consumed in time")
	outcomeCmd.Flags().String("date", "", "resolution date as YYYY-MM-DD (default: today)")

	modelsCmd.AddCommand(modelsRefreshCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
