package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/relayout/internal/api"
	"github.com/kalambet/relayout/internal/config"
	"github.com/kalambet/relayout/internal/profile"
)

// --- trigger ---

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Run one conversion, as if the hotkey was pressed",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/trigger", nil)
		if err != nil {
			return err
		}

		var rep api.TriggerResponse
		if err := decodeJSON(resp, &rep); err != nil {
			return err
		}

		switch {
		case rep.Error != "":
			printWarning("%s path: %s", rep.Path, rep.Error)
		case !rep.Changed:
			printStatus("Result", "nothing to convert (%s path)", rep.Path)
		default:
			printSuccess("Converted via %s → %s (%s path)", rep.AcquiredBy, rep.ReplacedBy, rep.Path)
		}
		return nil
	},
}

// --- transform / detect ---

// textArg joins args, or reads stdin when none are given.
func textArg(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

var transformCmd = &cobra.Command{
	Use:   "transform [text]",
	Short: "Convert text with the active profile",
	Long: `Convert text with the active profile. Reads stdin when no text is given.

Examples:
  relayout transform ghbdtn
  echo "руддщ" | relayout transform`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := textArg(cmd, args)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/transform", api.TextRequest{Text: text})
		if err != nil {
			return err
		}

		var result api.TransformResponse
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.Text)
		return nil
	},
}

var detectCmd = &cobra.Command{
	Use:   "detect [text]",
	Short: "Report which side of the active profile the text belongs to",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := textArg(cmd, args)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/detect", api.TextRequest{Text: text})
		if err != nil {
			return err
		}

		var result api.DetectResponse
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.Side)
		return nil
	},
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent triggers",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/triggers?limit=%d", limit))
		if err != nil {
			return err
		}

		var entries []api.TriggerEntry
		if err := decodeJSON(resp, &entries); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, "No triggers recorded.")
			return nil
		}

		for _, e := range entries {
			outcome := colorize(colorGreen, "converted")
			switch {
			case e.Error != "":
				outcome = colorize(colorRed, e.Error)
			case !e.Changed:
				outcome = colorize(colorDim, "unchanged")
			}
			strategies := strings.Trim(e.AcquiredBy+" → "+e.ReplacedBy, " →")
			fmt.Fprintf(out, "%s  %-8s  %-28s  %-32s  %s\n",
				e.CreatedAt.Local().Format(time.DateTime),
				e.Path,
				e.BundleID,
				strategies,
				outcome,
			)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of triggers to list")
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage conversion profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles; the active one is marked with *",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/profiles")
		if err != nil {
			return err
		}

		var list api.ProfileList
		if err := decodeJSON(resp, &list); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, p := range list.Profiles {
			kind := "custom"
			if !p.Editable {
				kind = "built-in"
			}
			fmt.Fprintf(out, "%s %s  %s  %s\n",
				marker(p.ID == list.ActiveID),
				colorize(colorCyan, p.ID),
				p.Name,
				colorize(colorDim, fmt.Sprintf("(%s, %d keys)", kind, len(p.Mapping))),
			)
		}
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a profile as JSON (default: the active one)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/profiles/active"
		if len(args) == 1 {
			path = "/profiles/" + url.PathEscape(args[0])
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var p profile.Profile
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	},
}

var profileCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an editable profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		basedOn, _ := cmd.Flags().GetString("from")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/profiles", api.CreateRequest{Name: args[0], BasedOn: basedOn})
		if err != nil {
			return err
		}

		var p profile.Profile
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		printSuccess("Created %q (%s)", p.Name, p.ID)
		return nil
	},
}

func init() {
	profileCreateCmd.Flags().String("from", "", "id of a profile whose mapping to copy")
}

var profileDuplicateCmd = &cobra.Command{
	Use:   "duplicate <id>",
	Short: "Copy a profile into a new editable one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/profiles/"+url.PathEscape(args[0])+"/duplicate", nil)
		if err != nil {
			return err
		}

		var p profile.Profile
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		printSuccess("Created %q (%s)", p.Name, p.ID)
		return nil
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/profiles/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Deleted %s", args[0])
		if result["active_id"] == "" {
			printWarning("No active profile; conversions are disabled until one is activated")
		}
		return nil
	},
}

var profileActivateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Make a profile active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.put(cmd.Context(), "/profiles/active", api.ActivateRequest{ID: args[0]})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Active profile: %s", result["active_id"])
		return nil
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set <id> <key> <value>",
	Short: "Set one mapping entry of an editable profile",
	Long: `Set one mapping entry of an editable profile. An empty value removes the key.

Examples:
  relayout profile set 6f1c… й q
  relayout profile set 6f1c… ё ""`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, key, value := args[0], args[1], args[2]

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/profiles/"+url.PathEscape(id))
		if err != nil {
			return err
		}
		var p profile.Profile
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}

		if p.Mapping == nil {
			p.Mapping = map[string]string{}
		}
		if value == "" {
			delete(p.Mapping, key)
		} else {
			p.Mapping[key] = value
		}

		resp, err = client.put(cmd.Context(), "/profiles/"+url.PathEscape(id), api.UpdateRequest{Mapping: p.Mapping})
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}

		if value == "" {
			printSuccess("Removed %s from %q", key, p.Name)
		} else {
			printSuccess("Set %s → %s in %q", key, value, p.Name)
		}
		return nil
	},
}

var profileRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename an editable profile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/profiles/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var p profile.Profile
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}

		resp, err = client.put(cmd.Context(), "/profiles/"+url.PathEscape(args[0]), api.UpdateRequest{Name: args[1], Mapping: p.Mapping})
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		printSuccess("Renamed to %q", p.Name)
		return nil
	},
}

var profileImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a profile from a TOML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening profile file: %w", err)
		}
		defer f.Close()

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.postRaw(cmd.Context(), "/profiles/import", "application/toml", f)
		if err != nil {
			return err
		}

		var p profile.Profile
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		printSuccess("Imported %q (%s, %d keys)", p.Name, p.ID, len(p.Mapping))
		return nil
	},
}

var profileExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a profile as TOML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/profiles/"+url.PathEscape(args[0])+"/export")
		if err != nil {
			return err
		}

		if output == "" {
			return copyBody(resp, cmd.OutOrStdout())
		}

		f, err := os.Create(output)
		if err != nil {
			resp.Body.Close()
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		if err := copyBody(resp, f); err != nil {
			return err
		}
		printSuccess("Profile exported to %s", output)
		return nil
	},
}

func init() {
	profileExportCmd.Flags().StringP("output", "o", "", "output file path (default: stdout)")

	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileCreateCmd)
	profileCmd.AddCommand(profileDuplicateCmd)
	profileCmd.AddCommand(profileDeleteCmd)
	profileCmd.AddCommand(profileActivateCmd)
	profileCmd.AddCommand(profileSetCmd)
	profileCmd.AddCommand(profileRenameCmd)
	profileCmd.AddCommand(profileImportCmd)
	profileCmd.AddCommand(profileExportCmd)
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

		out := cmd.OutOrStdout()
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(out, "  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorDim, k.EnvVar))
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
			if strings.HasPrefix(err.Error(), "unknown config key") {
				return fmt.Errorf("%w (valid keys: %s)", err, strings.Join(config.ValidKeys(), ", "))
			}
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
