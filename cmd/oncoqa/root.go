package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"oncoqa/internal/common/fsutil"
	"oncoqa/internal/config"
	"oncoqa/internal/logging"
	"oncoqa/internal/manager"
)

const (
	envConfig       = "ONCOQA_CONFIG"
	defaultCacheDir = "~/.cache/oncoqa/models"
)

// errUsage marks failures that should exit with status 2.
var errUsage = errors.New("usage")

// app carries the resolved configuration shared by all subcommands.
type app struct {
	stdout     io.Writer
	stderr     io.Writer
	configPath string
	cfg        config.Config
	log        zerolog.Logger
}

// MainWithArgs runs the CLI and returns the process exit code.
func MainWithArgs(args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr, log: zerolog.Nop()}
	root := buildRootCmd(a)
	if len(args) == 0 {
		_ = root.Help()
		return 2
	}
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(stderr, err)
			return 2
		}
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

func buildRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "oncoqa",
		Short:         "Answer oncology questions with a pre-trained text-generation model",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", os.Getenv(envConfig), "Config file .yaml|.yml|.json|.toml (defaults ONCOQA_CONFIG)")
	pf.String("backend", config.BackendLlama, "Inference backend: llama|server")
	pf.String("model-id", manager.DefaultModelID, "Model identifier to load")
	pf.Bool("full-precision", false, "Load the unquantized model variant")
	pf.String("cache-dir", defaultCacheDir, "Directory holding cached GGUF models (llama backend)")
	pf.String("server-url", "", "Base URL of an OpenAI-compatible inference server (server backend)")
	pf.Int("threads", 0, "Inference threads (0 = default of 1)")
	pf.String("load-mode", string(manager.LoadModeShared), "Callers arriving during a load: shared|reject")
	pf.String("log-level", "info", "Log level: debug|info|warn|error|off")
	pf.String("log-format", "console", "Log format: console|json")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return a.resolve(cmd)
	}

	root.AddCommand(newAskCmd(a), newStatusCmd(a), newModelsCmd(a))
	return root
}

// resolve merges defaults, the config file and explicitly set flags, in
// that order of precedence.
func (a *app) resolve(cmd *cobra.Command) error {
	if a.configPath != "" {
		p, err := fsutil.ExpandHome(a.configPath)
		if err != nil {
			return err
		}
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg, err := config.Load(p)
		if err != nil {
			// The file exists, so any failure is in its contents.
			return fmt.Errorf("%w: config %s: %v", errUsage, p, err)
		}
		a.cfg = cfg
	}
	flagString(cmd, "backend", &a.cfg.Backend)
	flagString(cmd, "model-id", &a.cfg.ModelID)
	flagString(cmd, "cache-dir", &a.cfg.CacheDir)
	flagString(cmd, "server-url", &a.cfg.ServerURL)
	flagString(cmd, "load-mode", &a.cfg.LoadMode)
	flagString(cmd, "log-level", &a.cfg.LogLevel)
	flagString(cmd, "log-format", &a.cfg.LogFormat)
	if f := cmd.Flags().Lookup("threads"); f != nil && f.Changed {
		n, _ := cmd.Flags().GetInt("threads")
		a.cfg.Threads = n
	}
	if f := cmd.Flags().Lookup("full-precision"); f != nil && f.Changed {
		b, _ := cmd.Flags().GetBool("full-precision")
		a.cfg.FullPrecision = b
	}

	if a.cfg.Backend == "" {
		a.cfg.Backend = config.BackendLlama
	}
	if a.cfg.ModelID == "" {
		a.cfg.ModelID = manager.DefaultModelID
	}
	if a.cfg.CacheDir == "" {
		a.cfg.CacheDir = defaultCacheDir
	}
	if dir, err := fsutil.ExpandHome(a.cfg.CacheDir); err == nil {
		a.cfg.CacheDir = dir
	}
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if _, ok := manager.ParseLoadMode(a.cfg.LoadMode); !ok {
		return fmt.Errorf("%w: unknown load mode %q (want shared|reject)", errUsage, a.cfg.LoadMode)
	}
	a.log = logging.New(a.cfg.LogLevel, a.cfg.LogFormat, a.stderr)
	return nil
}

// flagString copies an explicitly set string flag into dst.
func flagString(cmd *cobra.Command, name string, dst *string) {
	f := cmd.Flags().Lookup(name)
	if f == nil || !f.Changed {
		return
	}
	*dst = f.Value.String()
}

// newRuntime builds the inference runtime for the configured backend.
var newRuntime = func(cfg config.Config) manager.Runtime {
	if cfg.Backend == config.BackendServer {
		return manager.NewServerRuntime(manager.ServerRuntimeConfig{
			BaseURL: cfg.ServerURL,
			APIKey:  cfg.APIKey,
		})
	}
	return manager.NewLlamaRuntime(cfg.CacheDir, cfg.CtxSize)
}

// managerConfig translates the resolved config into manager settings.
func (a *app) managerConfig(reg prometheus.Registerer, pub manager.EventPublisher) manager.ManagerConfig {
	cfg := a.cfg
	env := manager.DefaultRuntimeEnv()
	if cfg.Threads > 0 {
		env.NumThreads = cfg.Threads
	}
	env.AllowLocalModels = cfg.AllowLocalModels
	if cfg.UseCache != nil {
		env.UseCache = *cfg.UseCache
	}
	mode, _ := manager.ParseLoadMode(cfg.LoadMode)
	log := a.log
	return manager.ManagerConfig{
		Runtime:         newRuntime(cfg),
		ModelID:         cfg.ModelID,
		FullPrecision:   cfg.FullPrecision,
		Env:             &env,
		LoadMode:        mode,
		LoadTimeout:     time.Duration(cfg.LoadTimeoutSec) * time.Second,
		GenerateTimeout: time.Duration(cfg.GenTimeoutSec) * time.Second,
		MaxNewTokens:    cfg.MaxNewTokens,
		Temperature:     cfg.Temperature,
		Greedy:          cfg.Greedy,
		Logger:          &log,
		Registerer:      reg,
		Publisher:       pub,
	}
}
