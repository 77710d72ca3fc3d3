// Package client contains Cobra CLI commands for tideline.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

// BaseURLFunc provides the base HTTP API URL (e.g., from env or flag).
type BaseURLFunc func() string

// NewStreamCommand constructs the `stream` command group and subcommands.
func NewStreamCommand(baseURL BaseURLFunc) *cobra.Command {
	streamCmd := &cobra.Command{Use: "stream", Short: "Stream operations"}

	streamCmd.AddCommand(
		newStreamListCommand(baseURL),
		newStreamWriteCommand(baseURL),
		newStreamReadCommand(baseURL),
		newStreamTailCommand(baseURL),
		newStreamDeleteCommand(baseURL),
		newStreamLatestCommand(baseURL),
		newStreamTrimCommand(baseURL),
		newStreamDropCommand(baseURL),
		newStreamLenCommand(baseURL),
		newStreamWatchCommand(baseURL),
	)

	return streamCmd
}

func requireStream(cmd *cobra.Command) (string, error) {
	st, _ := cmd.Flags().GetString("stream")
	if st == "" {
		return "", errors.New("--stream is required")
	}
	return st, nil
}

// newStreamListCommand constructs the `stream list` subcommand.
func newStreamListCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"streams"},
		Short:   "List streams",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out struct {
				Streams []string `json:"streams"`
			}
			if err := getJSON(cmd.Context(), baseURL(), "/v1/streams", nil, &out); err != nil {
				return err
			}
			for _, s := range out.Streams {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
}

// newStreamWriteCommand constructs the `stream write` subcommand.
func newStreamWriteCommand(baseURL BaseURLFunc) *cobra.Command {
	writeCmd := &cobra.Command{
		Use:   "write",
		Short: "Append one JSON event to a stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := requireStream(cmd)
			if err != nil {
				return err
			}
			data, _ := cmd.Flags().GetString("data")
			if !json.Valid([]byte(data)) {
				return errors.New("--data must be a JSON object")
			}
			body := map[string]any{"stream": st, "event": json.RawMessage(data)}
			if cmd.Flags().Changed("max-len") {
				maxLen, _ := cmd.Flags().GetInt64("max-len")
				body["max_len"] = maxLen
			}
			var out struct {
				ID string `json:"id"`
			}
			if err := postJSON(cmd.Context(), baseURL(), "/v1/streams/write", body, &out); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "id:", out.ID)
			return nil
		},
	}
	writeCmd.Flags().String("stream", "", "Stream")
	writeCmd.Flags().String("data", "", "Event as a JSON object")
	writeCmd.Flags().Int64("max-len", 0, "Approximate max length to keep (0 = unbounded; default from server config)")
	return writeCmd
}

// newStreamReadCommand constructs the `stream read` subcommand.
func newStreamReadCommand(baseURL BaseURLFunc) *cobra.Command {
	readCmd := &cobra.Command{
		Use:   "read",
		Short: "Read every event of a stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := requireStream(cmd)
			if err != nil {
				return err
			}
			ordered, _ := cmd.Flags().GetBool("ordered")
			ids, _ := cmd.Flags().GetBool("ids")
			q := url.Values{"stream": {st}, "ordered": {strconv.FormatBool(ordered)}, "ids": {strconv.FormatBool(ids)}}
			var out map[string]any
			if err := getJSON(cmd.Context(), baseURL(), "/v1/streams/read", q, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	readCmd.Flags().String("stream", "", "Stream")
	readCmd.Flags().Bool("ordered", false, "Sort by the timestamp field")
	readCmd.Flags().Bool("ids", false, "Include entry ids")
	return readCmd
}

// newStreamTailCommand constructs the `stream tail` subcommand.
func newStreamTailCommand(baseURL BaseURLFunc) *cobra.Command {
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow a stream, printing one JSON line per event",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := requireStream(cmd)
			if err != nil {
				return err
			}
			after, _ := cmd.Flags().GetString("after")
			limit, _ := cmd.Flags().GetInt("limit")

			body, err := openTail(cmd.Context(), baseURL(), st, after, limit)
			if err != nil {
				return err
			}
			defer func() { _ = body.Close() }()
			enc := json.NewEncoder(cmd.OutOrStdout())
			err = readSSE(cmd.Context(), body, func(rec tailRecord) error {
				return enc.Encode(rec)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	tailCmd.Flags().String("stream", "", "Stream")
	tailCmd.Flags().String("after", "", "Start after this entry id (default: replay from the first entry)")
	tailCmd.Flags().Int("limit", 0, "Stop after N events (0 = infinite)")
	return tailCmd
}

// newStreamDeleteCommand constructs the `stream delete` subcommand.
func newStreamDeleteCommand(baseURL BaseURLFunc) *cobra.Command {
	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete events where --field equals --value, or matching --filter (CEL)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := requireStream(cmd)
			if err != nil {
				return err
			}
			field, _ := cmd.Flags().GetString("field")
			value, _ := cmd.Flags().GetString("value")
			filter, _ := cmd.Flags().GetString("filter")

			var out struct {
				Removed int64 `json:"removed"`
			}
			switch {
			case filter != "":
				err = postJSON(cmd.Context(), baseURL(), "/v1/streams/delete-where", map[string]string{"stream": st, "filter": filter}, &out)
			case field != "":
				err = postJSON(cmd.Context(), baseURL(), "/v1/streams/delete", map[string]any{"stream": st, "field": field, "value": jsonOrString(value)}, &out)
			default:
				return errors.New("--field or --filter is required")
			}
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "removed:", out.Removed)
			return nil
		},
	}
	deleteCmd.Flags().String("stream", "", "Stream")
	deleteCmd.Flags().String("field", "", "Field name")
	deleteCmd.Flags().String("value", "", "Field value (JSON literal, or a plain string)")
	deleteCmd.Flags().String("filter", "", "CEL filter, e.g. event.price > 100.0")
	return deleteCmd
}

// jsonOrString keeps valid JSON literals as-is and quotes everything else.
func jsonOrString(s string) json.RawMessage {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	b, _ := json.Marshal(s)
	return b
}

// newStreamLatestCommand constructs the `stream latest` subcommand.
func newStreamLatestCommand(baseURL BaseURLFunc) *cobra.Command {
	latestCmd := &cobra.Command{
		Use:   "latest",
		Short: "Print the newest event where --field equals --value, or matching --filter",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := requireStream(cmd)
			if err != nil {
				return err
			}
			field, _ := cmd.Flags().GetString("field")
			value, _ := cmd.Flags().GetString("value")
			filter, _ := cmd.Flags().GetString("filter")
			q := url.Values{"stream": {st}}
			switch {
			case filter != "":
				q.Set("filter", filter)
			case field != "":
				q.Set("field", field)
				q.Set("value", value)
			default:
				return errors.New("--field or --filter is required")
			}
			var out map[string]any
			if err := getJSON(cmd.Context(), baseURL(), "/v1/streams/latest", q, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	latestCmd.Flags().String("stream", "", "Stream")
	latestCmd.Flags().String("field", "", "Field name")
	latestCmd.Flags().String("value", "", "Field value")
	latestCmd.Flags().String("filter", "", "CEL filter")
	return latestCmd
}

// newStreamTrimCommand constructs the `stream trim` subcommand.
func newStreamTrimCommand(baseURL BaseURLFunc) *cobra.Command {
	trimCmd := &cobra.Command{
		Use:   "trim",
		Short: "Remove events older than a duration or before a timestamp",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := requireStream(cmd)
			if err != nil {
				return err
			}
			olderThan, _ := cmd.Flags().GetString("older-than")
			before, _ := cmd.Flags().GetString("before")
			if olderThan == "" && before == "" {
				return errors.New("--older-than or --before is required")
			}
			var out struct {
				Removed int64 `json:"removed"`
				Known   bool  `json:"known"`
			}
			body := map[string]string{"stream": st, "older_than": olderThan, "before": before}
			if err := postJSON(cmd.Context(), baseURL(), "/v1/streams/trim", body, &out); err != nil {
				return err
			}
			if !out.Known {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "removed: unknown (trim failed part way, at least", out.Removed, "removed)")
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "removed:", out.Removed)
			return nil
		},
	}
	trimCmd.Flags().String("stream", "", "Stream")
	trimCmd.Flags().String("older-than", "", "Go duration, e.g. 24h")
	trimCmd.Flags().String("before", "", "Cutoff as RFC3339 or unix ms")
	return trimCmd
}

// newStreamDropCommand constructs the `stream drop` subcommand.
func newStreamDropCommand(baseURL BaseURLFunc) *cobra.Command {
	dropCmd := &cobra.Command{
		Use:   "drop",
		Short: "Delete a whole stream (requires --confirm)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := requireStream(cmd)
			if err != nil {
				return err
			}
			if confirm, _ := cmd.Flags().GetBool("confirm"); !confirm {
				return errors.New("refusing to drop without --confirm")
			}
			var out struct {
				Existed bool `json:"existed"`
			}
			if err := postJSON(cmd.Context(), baseURL(), "/v1/streams/drop", map[string]string{"stream": st}, &out); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "existed:", out.Existed)
			return nil
		},
	}
	dropCmd.Flags().String("stream", "", "Stream")
	dropCmd.Flags().Bool("confirm", false, "Confirm the drop")
	return dropCmd
}

// newStreamLenCommand constructs the `stream len` subcommand.
func newStreamLenCommand(baseURL BaseURLFunc) *cobra.Command {
	lenCmd := &cobra.Command{
		Use:   "len",
		Short: "Print the number of entries in a stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := requireStream(cmd)
			if err != nil {
				return err
			}
			var out struct {
				Len int64 `json:"len"`
			}
			if err := getJSON(cmd.Context(), baseURL(), "/v1/streams/len", url.Values{"stream": {st}}, &out); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), out.Len)
			return nil
		},
	}
	lenCmd.Flags().String("stream", "", "Stream")
	return lenCmd
}
