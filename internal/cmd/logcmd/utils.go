package logcmd

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	cfgpkg "github.com/NB-T/derecho/internal/config"
	"github.com/NB-T/derecho/internal/persistlog"
	"github.com/NB-T/derecho/internal/runtime"
	"github.com/NB-T/derecho/pkg/hlc"
	"github.com/NB-T/derecho/pkg/log"
)

// clock stamps appends that do not carry an explicit timestamp.
var clock = hlc.NewClock()

// openRuntime resolves configuration from flags, env, and file, then opens
// the runtime over the data directory.
func openRuntime(cmd *cobra.Command, logger log.Logger) (*runtime.Runtime, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := cfgpkg.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	cfgpkg.FromEnv(&cfg)
	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v, _ := cmd.Flags().GetString("fsync"); v != "" {
		cfg.Fsync = v
	}
	if cfg.DataDir == "" {
		cfg.DataDir = cfgpkg.DefaultDataDir()
	}
	opts, err := runtime.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	opts.Logger = logger
	return runtime.Open(opts)
}

// openLog opens the runtime and the log named by --name. The caller closes
// the returned runtime.
func openLog(cmd *cobra.Command, logger log.Logger) (*runtime.Runtime, *persistlog.Log, error) {
	name, _ := cmd.Flags().GetString("name")
	if name == "" {
		return nil, nil, errors.New("--name is required")
	}
	rt, err := openRuntime(cmd, logger)
	if err != nil {
		return nil, nil, err
	}
	l, err := rt.OpenLog(name)
	if err != nil {
		_ = rt.Close()
		return nil, nil, err
	}
	return rt, l, nil
}

// readPayload picks the payload source: --data, --data-file, or stdin.
func readPayload(cmd *cobra.Command) ([]byte, error) {
	data, _ := cmd.Flags().GetString("data")
	file, _ := cmd.Flags().GetString("data-file")
	switch {
	case data != "" && file != "":
		return nil, errors.New("--data and --data-file are mutually exclusive")
	case file != "":
		return os.ReadFile(file)
	case data != "":
		return []byte(data), nil
	default:
		return io.ReadAll(cmd.InOrStdin())
	}
}

// parseTimestamp accepts "physical.logical" or bare physical microseconds.
func parseTimestamp(s string) (hlc.HLC, error) {
	if strings.Contains(s, ".") {
		return hlc.Parse(s)
	}
	us, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return hlc.HLC{}, fmt.Errorf("invalid timestamp %q; expected microseconds or physical.logical", s)
	}
	return hlc.HLC{Physical: us}, nil
}

// decodedPayload adds one of payload_json, payload_text, or payload_b64.
func decodedPayload(out map[string]any, payload []byte) map[string]any {
	// Try JSON first if it looks like JSON
	if len(payload) > 0 && (payload[0] == '{' || payload[0] == '[') {
		var v any
		if json.Unmarshal(payload, &v) == nil {
			out["payload_json"] = v
			return out
		}
	}
	// Then UTF-8 text if valid
	if utf8.Valid(payload) {
		out["payload_text"] = string(payload)
		return out
	}
	// Fallback to base64
	out["payload_b64"] = base64.StdEncoding.EncodeToString(payload)
	return out
}

// countingWriter tracks bytes written through it.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
