package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/narvanalabs/logkeeper/internal/logs"
	"github.com/narvanalabs/logkeeper/internal/models"
	"github.com/spf13/cobra"
)

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("level", "", "Level: info|success|warning|error")
	cmd.Flags().String("module", "", "Module")
	cmd.Flags().String("action", "", "Action")
	cmd.Flags().String("actor", "", "Actor id or legacy user name")
	cmd.Flags().String("status", "", "Status")
	cmd.Flags().String("from", "", "First day, YYYY-MM-DD (inclusive)")
	cmd.Flags().String("to", "", "Last day, YYYY-MM-DD (inclusive)")
	cmd.Flags().StringP("search", "q", "", "Case-insensitive free text")
	cmd.Flags().String("expr", "", "CEL expression over level, module, action, status, message and details")
	cmd.Flags().Int("page-size", 0, "Entries per page (default: query.default_page_size)")
	cmd.Flags().Int("pages", 1, "Pages to load; 0 loads the whole stream")
}

func filterFromFlags(cmd *cobra.Command, loc *time.Location) (logs.Filter, logs.Predicate, error) {
	get := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	f := logs.Filter{
		Level:    get("level"),
		Module:   get("module"),
		Action:   get("action"),
		Actor:    get("actor"),
		Status:   get("status"),
		From:     get("from"),
		To:       get("to"),
		Search:   get("search"),
		Location: loc,
	}
	pred, err := f.Predicate()
	if err != nil {
		return f, nil, err
	}
	exprPred, err := logs.CompileExpr(get("expr"))
	if err != nil {
		return f, nil, err
	}
	return f, logs.And(pred, exprPred), nil
}

// working is a loaded set together with the filtered view over it.
type working struct {
	stream   models.Stream
	loaded   []*models.LogEntry
	filtered []*models.LogEntry
	loc      *time.Location
}

func (e *env) loadWorkingSet(cmd *cobra.Command, s *session, args []string) (*working, error) {
	stream, err := streamArg(args)
	if err != nil {
		return nil, err
	}
	loc := s.cfg.QueryLocation()
	filter, pred, err := filterFromFlags(cmd, loc)
	if err != nil {
		return nil, err
	}
	q, err := filter.Pushdown()
	if err != nil {
		return nil, err
	}

	size, _ := cmd.Flags().GetInt("page-size")
	if size <= 0 {
		size = s.cfg.Query.DefaultPageSize
	}
	if size > s.cfg.Query.MaxPageSize {
		size = s.cfg.Query.MaxPageSize
	}
	pages, _ := cmd.Flags().GetInt("pages")

	pager := logs.NewPager(s.store.Logs(stream), q, size)
	for n := 0; pager.HasMore() && (pages <= 0 || n < pages); n++ {
		if _, err := pager.LoadMore(cmd.Context()); err != nil {
			return nil, fmt.Errorf("loading %s: %w", stream, err)
		}
	}
	loaded := pager.Entries()
	return &working{
		stream:   stream,
		loaded:   loaded,
		filtered: logs.Apply(loaded, pred),
		loc:      loc,
	}, nil
}

// newStatsCommand constructs the `stats` command.
func newStatsCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <stream>",
		Short: "Print level counts and filter options for a stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.open(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()

			ws, err := e.loadWorkingSet(cmd, s, args)
			if err != nil {
				return err
			}

			return writeJSON(cmd, struct {
				Stream   models.Stream      `json:"stream"`
				Loaded   int                `json:"loaded"`
				Matching int                `json:"matching"`
				Stats    logs.Stats         `json:"stats"`
				Options  logs.FilterOptions `json:"options"`
			}{
				Stream:   ws.stream,
				Loaded:   len(ws.loaded),
				Matching: len(ws.filtered),
				Stats:    logs.ComputeStats(ws.loaded, time.Now().In(ws.loc)),
				Options:  logs.Options(ws.loaded),
			})
		},
	}
	addFilterFlags(cmd)
	return cmd
}

// newExportCommand constructs the `export` command.
func newExportCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <stream>",
		Short: "Write the filtered entries of a stream as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			compress, _ := cmd.Flags().GetBool("zstd")

			s, err := e.open(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()

			ws, err := e.loadWorkingSet(cmd, s, args)
			if err != nil {
				return err
			}
			var w io.Writer = cmd.OutOrStdout()
			if output == "-" {
				output = ""
			} else if output == "" {
				output = logs.ExportFilename(ws.stream.Subject(), time.Now().In(ws.loc))
				if compress {
					output += ".zst"
				}
			}
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating export file: %w", err)
				}
				defer f.Close()
				w = f
			}

			if compress {
				enc, err := zstd.NewWriter(w)
				if err != nil {
					return err
				}
				if err := logs.WriteCSV(enc, ws.filtered, ws.loc); err != nil {
					enc.Close()
					return err
				}
				if err := enc.Close(); err != nil {
					return err
				}
			} else if err := logs.WriteCSV(w, ws.filtered, ws.loc); err != nil {
				return err
			}

			if output != "" {
				s.logger.Info("export written", "file", output, "entries", len(ws.filtered))
			}
			return nil
		},
	}
	addFilterFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "Output file; '-' writes to stdout (default: <subject>-logs-YYYY-MM-DD.csv)")
	cmd.Flags().Bool("zstd", false, "Compress the export with zstd")
	return cmd
}
