// Package config provides loading and environment overlay for the runtime
// configuration. It exposes a Default() baseline, file loading in JSON,
// TOML, or YAML by extension, and a DERECHO_* environment overlay.
//
// Example:
//
//	cfg := config.Default()
//	// Optionally load from file and overlay env vars
//	if fileCfg, err := config.Load("/etc/derecho.toml"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
//	if cfg.DataDir == "" {
//	    cfg.DataDir = config.DefaultDataDir()
//	}
//	// Pass cfg into runtime.Options
//	opts, _ := runtime.OptionsFromConfig(cfg)
//	rt, _ := runtime.Open(opts)
//	defer rt.Close()
package config
