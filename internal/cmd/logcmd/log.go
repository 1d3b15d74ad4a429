package logcmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/NB-T/derecho/internal/persistlog"
	"github.com/NB-T/derecho/pkg/hlc"
	"github.com/NB-T/derecho/pkg/log"
)

// NewLogCommand constructs the `log` command group and subcommands.
func NewLogCommand(logger log.Logger) *cobra.Command {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logCmd := &cobra.Command{Use: "log", Short: "Log operations"}
	logCmd.PersistentFlags().String("config", os.Getenv("DERECHO_CONFIG"), "Config file: .json|.toml|.yaml")
	logCmd.PersistentFlags().String("data-dir", "", "Data directory (default: OS-specific application data directory)")
	logCmd.PersistentFlags().String("fsync", "", "Fsync mode: always|interval|never")
	logCmd.PersistentFlags().StringP("name", "n", "", "Log name")

	logCmd.AddCommand(
		newAppendCommand(logger),
		newReadCommand(logger),
		newStatCommand(logger),
		newEntriesCommand(logger),
		newListCommand(logger),
		newTrimCommand(logger),
		newTruncateCommand(logger),
		newZerooutCommand(logger),
		newAdvanceCommand(logger),
		newExportCommand(logger),
		newImportCommand(logger),
	)
	return logCmd
}

// newAppendCommand constructs the `log append` subcommand.
func newAppendCommand(logger log.Logger) *cobra.Command {
	appendCmd := &cobra.Command{
		Use:   "append",
		Short: "Append one entry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, l, err := openLog(cmd, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			payload, err := readPayload(cmd)
			if err != nil {
				return err
			}
			ver, _ := cmd.Flags().GetInt64("version")
			if ver < 0 {
				latest, err := l.LatestVersion()
				if err != nil {
					return err
				}
				ver = latest + 1
			}
			phys, _ := cmd.Flags().GetInt64("physical")
			logic, _ := cmd.Flags().GetInt64("logical")
			ts := hlc.HLC{Physical: phys, Logical: logic}
			if ts.IsZero() {
				ts = clock.Now()
			}
			if err := l.Append(payload, ver, ts); err != nil {
				return err
			}
			idx, err := l.LatestIndex()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "appended version=%d index=%d ts=%s\n", ver, idx, ts)
			return nil
		},
	}
	appendCmd.Flags().String("data", "", "Payload string (default: read stdin)")
	appendCmd.Flags().String("data-file", "", "Read payload from file")
	appendCmd.Flags().Int64("version", -1, "Version to assign (default: latest+1)")
	appendCmd.Flags().Int64("physical", 0, "Timestamp physical microseconds (default: local clock)")
	appendCmd.Flags().Int64("logical", 0, "Timestamp logical counter")
	return appendCmd
}

// newReadCommand constructs the `log read` subcommand.
func newReadCommand(logger log.Logger) *cobra.Command {
	readCmd := &cobra.Command{
		Use:   "read",
		Short: "Read one entry by version, timestamp, or index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, l, err := openLog(cmd, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			ver, _ := cmd.Flags().GetInt64("version")
			at, _ := cmd.Flags().GetString("at")
			index, _ := cmd.Flags().GetInt64("index")

			var idx int64
			switch {
			case ver >= 0:
				u, err := l.UpperBound(ver)
				if err != nil {
					return err
				}
				idx = u - 1
			case at != "":
				ts, err := parseTimestamp(at)
				if err != nil {
					return err
				}
				u, err := l.UpperBoundHLC(ts)
				if err != nil {
					return err
				}
				idx = u - 1
			case index >= 0:
				idx = index
			default:
				idx, err = l.LatestIndex()
				if err != nil {
					return err
				}
				if idx < 0 {
					return errors.New("log is empty")
				}
			}

			ent, err := l.Entry(idx)
			if err != nil {
				if ver >= 0 && errors.Is(err, persistlog.ErrIndexOutOfRange) {
					return fmt.Errorf("no live entry at or below version %d", ver)
				}
				if at != "" && errors.Is(err, persistlog.ErrIndexOutOfRange) {
					return fmt.Errorf("no live entry at or before %s", at)
				}
				return err
			}
			payload, err := l.Data(idx)
			if err != nil {
				return err
			}

			if raw, _ := cmd.Flags().GetBool("raw"); raw {
				_, err := cmd.OutOrStdout().Write(payload)
				return err
			}
			out := map[string]any{
				"index":    idx,
				"version":  ent.Version,
				"physical": ent.Time.Physical,
				"logical":  ent.Time.Logical,
				"offset":   ent.DataOffset,
				"length":   ent.DataLength,
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(decodedPayload(out, payload))
		},
	}
	readCmd.Flags().Int64("version", -1, "Newest entry at or below this version")
	readCmd.Flags().String("at", "", "Newest entry at or before this timestamp (microseconds or physical.logical)")
	readCmd.Flags().Int64("index", -1, "Exact live index")
	readCmd.Flags().Bool("raw", false, "Write the raw payload only")
	return readCmd
}

type statLine struct {
	Name            string `json:"name"`
	ID              uint32 `json:"id"`
	Head            int64  `json:"head"`
	Tail            int64  `json:"tail"`
	Length          int64  `json:"length"`
	Version         int64  `json:"version"`
	EarliestVersion *int64 `json:"earliestVersion,omitempty"`
	LastPersisted   int64  `json:"lastPersisted"`
	InUse           bool   `json:"inUse"`
}

// newStatCommand constructs the `log stat` subcommand.
func newStatCommand(logger log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "stat",
		Short: "Show window bounds and versions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, l, err := openLog(cmd, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			m, err := l.Stat()
			if err != nil {
				return err
			}
			line := statLine{
				Name:          l.Name(),
				ID:            m.ID,
				Head:          m.Head,
				Tail:          m.Tail,
				Length:        m.Tail - m.Head,
				Version:       m.Version,
				LastPersisted: l.LastPersisted(),
				InUse:         m.InUse,
			}
			if m.Tail > m.Head {
				ev, err := l.EarliestVersion()
				if err != nil {
					return err
				}
				line.EarliestVersion = &ev
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(line)
		},
	}
}

type entryLine struct {
	Index    int64 `json:"index"`
	Slot     int64 `json:"slot"`
	Version  int64 `json:"version"`
	Physical int64 `json:"physical"`
	Logical  int64 `json:"logical"`
	Offset   int64 `json:"offset"`
	Length   int64 `json:"length"`
}

// newEntriesCommand constructs the `log entries` subcommand.
func newEntriesCommand(logger log.Logger) *cobra.Command {
	entriesCmd := &cobra.Command{
		Use:   "entries",
		Short: "List live index entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, l, err := openLog(cmd, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			m, err := l.Stat()
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			geo := rt.Store().Geometry()
			enc := json.NewEncoder(cmd.OutOrStdout())
			count := 0
			for i := m.Head; i < m.Tail; i++ {
				if limit > 0 && count >= limit {
					break
				}
				ent, err := l.Entry(i)
				if err != nil {
					return err
				}
				if err := enc.Encode(entryLine{
					Index:    i,
					Slot:     geo.Slot(i),
					Version:  ent.Version,
					Physical: ent.Time.Physical,
					Logical:  ent.Time.Logical,
					Offset:   ent.DataOffset,
					Length:   ent.DataLength,
				}); err != nil {
					return err
				}
				count++
			}
			return nil
		},
	}
	entriesCmd.Flags().Int("limit", 0, "Stop after N entries (0 = all)")
	return entriesCmd
}

// newListCommand constructs the `log list` subcommand.
func newListCommand(logger log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered logs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			logs, err := rt.Store().ListLogs()
			if err != nil {
				return err
			}
			for _, li := range logs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", li.Name, li.ID)
			}
			return nil
		},
	}
}

// newTrimCommand constructs the `log trim` subcommand.
func newTrimCommand(logger log.Logger) *cobra.Command {
	trimCmd := &cobra.Command{
		Use:   "trim",
		Short: "Release entries at or below a version or timestamp",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ver, _ := cmd.Flags().GetInt64("version")
			at, _ := cmd.Flags().GetString("at")
			if ver < 0 && at == "" {
				return errors.New("--version or --at is required")
			}

			rt, l, err := openLog(cmd, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			if at != "" {
				ts, err := parseTimestamp(at)
				if err != nil {
					return err
				}
				if err := l.TrimByTime(ts); err != nil {
					return err
				}
			} else if err := l.Trim(ver); err != nil {
				return err
			}
			m, err := l.Stat()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "trimmed: head=%d length=%d\n", m.Head, m.Tail-m.Head)
			return nil
		},
	}
	trimCmd.Flags().Int64("version", -1, "Trim entries with version <= this")
	trimCmd.Flags().String("at", "", "Trim entries with timestamp <= this (microseconds or physical.logical)")
	return trimCmd
}

// newTruncateCommand constructs the `log truncate` subcommand.
func newTruncateCommand(logger log.Logger) *cobra.Command {
	truncateCmd := &cobra.Command{
		Use:   "truncate",
		Short: "Discard entries above a version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ver, _ := cmd.Flags().GetInt64("version")
			if ver < 0 {
				return errors.New("--version is required")
			}

			rt, l, err := openLog(cmd, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := l.Truncate(ver); err != nil {
				return err
			}
			m, err := l.Stat()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "truncated: tail=%d latest version=%d\n", m.Tail, m.Version)
			return nil
		},
	}
	truncateCmd.Flags().Int64("version", -1, "Discard entries with version > this")
	return truncateCmd
}

// newZerooutCommand constructs the `log zeroout` subcommand.
func newZerooutCommand(logger log.Logger) *cobra.Command {
	zerooutCmd := &cobra.Command{
		Use:   "zeroout",
		Short: "Erase the whole log (requires --confirm)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			confirm, _ := cmd.Flags().GetBool("confirm")
			if !confirm {
				return errors.New("zeroout erases the whole log; pass --confirm")
			}

			rt, l, err := openLog(cmd, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := l.Zeroout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "zeroed out")
			return nil
		},
	}
	zerooutCmd.Flags().Bool("confirm", false, "Confirm erasing the log")
	return zerooutCmd
}

// newAdvanceCommand constructs the `log advance` subcommand.
func newAdvanceCommand(logger log.Logger) *cobra.Command {
	advanceCmd := &cobra.Command{
		Use:   "advance",
		Short: "Advance the latest version without appending",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ver, _ := cmd.Flags().GetInt64("version")
			if ver < 0 {
				return errors.New("--version is required")
			}

			rt, l, err := openLog(cmd, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := l.AdvanceVersion(ver); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version advanced to %d\n", ver)
			return nil
		},
	}
	advanceCmd.Flags().Int64("version", -1, "Version to advance to")
	return advanceCmd
}

// newExportCommand constructs the `log export` subcommand.
func newExportCommand(logger log.Logger) *cobra.Command {
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the tail after a baseline version to a file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			outPath, _ := cmd.Flags().GetString("out")
			if outPath == "" {
				return errors.New("--out is required")
			}
			since, _ := cmd.Flags().GetInt64("since")

			rt, l, err := openLog(cmd, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			cw := &countingWriter{w: f}
			if err := l.PostTail(since, cw); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d bytes since version %d to %s\n", cw.n, since, outPath)
			return nil
		},
	}
	exportCmd.Flags().Int64("since", -1, "Receiver's latest version (default: everything)")
	exportCmd.Flags().String("out", "", "Output file")
	return exportCmd
}

// newImportCommand constructs the `log import` subcommand.
func newImportCommand(logger log.Logger) *cobra.Command {
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Apply a tail stream from a file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			inPath, _ := cmd.Flags().GetString("in")
			if inPath == "" {
				return errors.New("--in is required")
			}

			rt, l, err := openLog(cmd, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			f, err := os.Open(inPath)
			if err != nil {
				return err
			}
			defer f.Close()

			applied, senderLatest, err := l.ApplyTail(f)
			if err != nil {
				return fmt.Errorf("applied %d entries: %w", applied, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d entries (sender latest version %d)\n", applied, senderLatest)
			return nil
		},
	}
	importCmd.Flags().String("in", "", "Input file")
	return importCmd
}
