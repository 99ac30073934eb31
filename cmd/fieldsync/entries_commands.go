package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fieldsync/internal/entry"
	"fieldsync/internal/logging"
	"fieldsync/internal/store"
)

func newEntriesCommand(ctx *commandContext) *cobra.Command {
	entriesCmd := &cobra.Command{
		Use:   "entries",
		Short: "Inspect and manage tracked sync entries",
	}

	entriesCmd.AddCommand(newEntriesListCommand(ctx))
	entriesCmd.AddCommand(newEntriesShowCommand(ctx))
	entriesCmd.AddCommand(newEntriesRemoveCommand(ctx))
	entriesCmd.AddCommand(newEntriesClearCommand(ctx))

	return entriesCmd
}

func newEntriesListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(st *store.Store, _ *slog.Logger) error {
				entries := st.Entries()
				if jsonOutput {
					if entries == nil {
						entries = []entry.Entry{}
					}
					return writeJSON(cmd, entries)
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No entries tracked")
					return nil
				}
				fmt.Fprintln(out, renderEntriesTable(entries))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newEntriesShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one entry with its stored server responses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(st *store.Store, _ *slog.Logger) error {
				e, ok := st.Get(strings.TrimSpace(args[0]))
				if !ok {
					return fmt.Errorf("%w: %s", store.ErrNotFound, args[0])
				}
				return writeJSON(cmd, e)
			})
		},
	}
}

func newEntriesRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>...",
		Short: "Stop tracking entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(st *store.Store, logger *slog.Logger) error {
				out := cmd.OutOrStdout()
				var missing []string
				for _, raw := range args {
					id := strings.TrimSpace(raw)
					if _, ok := st.Get(id); !ok {
						missing = append(missing, id)
						continue
					}
					st.Remove(cmd.Context(), id)
					logger.Info("entry removed", logging.String(logging.FieldEntryID, id))
					fmt.Fprintf(out, "Removed %s\n", id)
				}
				if len(missing) > 0 {
					return fmt.Errorf("%w: %s", store.ErrNotFound, strings.Join(missing, ", "))
				}
				return nil
			})
		},
	}
}

func newEntriesClearCommand(ctx *commandContext) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every tracked entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return fmt.Errorf("refusing to clear all entries without --yes")
			}
			return ctx.withStore(cmd, func(st *store.Store, logger *slog.Logger) error {
				count := st.Len()
				st.ClearAll(cmd.Context())
				logger.Info("entries cleared", logging.Int("count", count))
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d entries\n", count)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "Confirm clearing every entry")
	return cmd
}

func renderEntriesTable(entries []entry.Entry) string {
	headers := []string{"ID", "Video", "Params", "Inference", "Updated", "Annotation", "Media Path"}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.ID,
			string(e.VideoUploadStatus),
			string(e.ParamUploadStatus),
			string(e.InferenceStatus),
			formatUpdated(e.UpdatedAt),
			paramsSummary(e.Params),
			e.MediaPath,
		})
	}
	return renderTable(headers, rows, nil)
}

func formatUpdated(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04:05")
}

// paramsSummary renders params as sorted key=value pairs.
func paramsSummary(params entry.Params) string {
	if len(params) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		value, err := json.Marshal(params[k])
		if err != nil {
			value = []byte(fmt.Sprint(params[k]))
		}
		parts = append(parts, fmt.Sprintf("%s=%s", k, strings.Trim(string(value), `"`)))
	}
	return strings.Join(parts, " ")
}
