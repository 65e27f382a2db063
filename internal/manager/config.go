package manager

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	DefaultTask    = "text2text-generation"
	DefaultModelID = "Xenova/LaMini-Flan-T5-248M"

	defaultMaxNewTokens = 128
	defaultTemperature  = 0.7
)

// LoadMode selects how callers arriving during an in-flight load are treated.
type LoadMode string

const (
	// LoadModeShared attaches late callers to the in-flight load so every
	// caller observes the same outcome.
	LoadModeShared LoadMode = "shared"
	// LoadModeReject answers late callers with an unavailable error right away.
	LoadModeReject LoadMode = "reject"
)

// ParseLoadMode maps a config string to a LoadMode; empty means shared.
func ParseLoadMode(s string) (LoadMode, bool) {
	switch LoadMode(s) {
	case "", LoadModeShared:
		return LoadModeShared, true
	case LoadModeReject:
		return LoadModeReject, true
	}
	return "", false
}

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// Runtime loads the pipeline. Required; a nil Runtime makes every load
	// fail with a dependency-unavailable error.
	Runtime Runtime
	Task    string
	ModelID string
	// FullPrecision loads the unquantized model variant.
	FullPrecision bool
	// Env is handed to the runtime on load; nil means DefaultRuntimeEnv.
	Env *RuntimeEnv

	LoadMode LoadMode
	// LoadTimeout and GenerateTimeout bound runtime calls; zero disables.
	LoadTimeout     time.Duration
	GenerateTimeout time.Duration

	// Generation parameters; zero values use the package defaults.
	MaxNewTokens int
	Temperature  float32
	// Greedy disables sampling.
	Greedy bool

	Logger     *zerolog.Logger
	Registerer prometheus.Registerer
	Publisher  EventPublisher
}

// withDefaults returns a copy of cfg with unset fields filled in.
func (cfg ManagerConfig) withDefaults() ManagerConfig {
	if cfg.Task == "" {
		cfg.Task = DefaultTask
	}
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultModelID
	}
	if cfg.Env == nil {
		env := DefaultRuntimeEnv()
		cfg.Env = &env
	}
	if cfg.LoadMode == "" {
		cfg.LoadMode = LoadModeShared
	}
	if cfg.MaxNewTokens <= 0 {
		cfg.MaxNewTokens = defaultMaxNewTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.Logger == nil {
		nop := zerolog.Nop()
		cfg.Logger = &nop
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.NewRegistry()
	}
	if cfg.Publisher == nil {
		cfg.Publisher = noopPublisher{}
	}
	return cfg
}

func (cfg ManagerConfig) generateOptions() GenerateOptions {
	return GenerateOptions{
		MaxNewTokens: cfg.MaxNewTokens,
		Temperature:  cfg.Temperature,
		DoSample:     !cfg.Greedy,
	}
}
