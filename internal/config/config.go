// Package config loads application configuration from an optional YAML
// file with environment-variable overrides, then validates it.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"subtyper/internal/cluster"
	"subtyper/internal/cohort"
	"subtyper/internal/pipeline"
)

// envPrefix namespaces all environment overrides (e.g. SUBTYPER_LOGGING_LEVEL).
const envPrefix = "SUBTYPER"

// Config is the complete application configuration.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
	Pipeline PipelineConfig `yaml:"pipeline" envconfig:"PIPELINE"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"stdout" validate:"oneof=stdout file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/subtyper.log"`
}

// PathsConfig holds input and output locations.
type PathsConfig struct {
	InputFile string `yaml:"input_file" envconfig:"INPUT_FILE" default:"data/subjects.csv"`
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR" default:"data/results"`
}

// OutlierRuleConfig is one configurable trait ceiling.
type OutlierRuleConfig struct {
	Trait string  `yaml:"trait" validate:"required"`
	Max   float64 `yaml:"max"`
}

// PipelineConfig holds clustering and cleaning parameters.
type PipelineConfig struct {
	Linkage        string              `yaml:"linkage" envconfig:"LINKAGE" default:"average" validate:"oneof=average complete ward"`
	KMeansSeed     int64               `yaml:"kmeans_seed" envconfig:"KMEANS_SEED" default:"1"`
	KMeansRestarts int                 `yaml:"kmeans_restarts" envconfig:"KMEANS_RESTARTS" default:"20" validate:"min=1"`
	KMeansMaxIter  int                 `yaml:"kmeans_max_iter" envconfig:"KMEANS_MAX_ITER" default:"100" validate:"min=1"`
	GMMSeed        int64               `yaml:"gmm_seed" envconfig:"GMM_SEED" default:"1"`
	GMMMaxIter     int                 `yaml:"gmm_max_iter" envconfig:"GMM_MAX_ITER" default:"200" validate:"min=1"`
	GMMTol         float64             `yaml:"gmm_tol" envconfig:"GMM_TOL" default:"0.000001" validate:"gt=0"`
	OutlierRules   []OutlierRuleConfig `yaml:"outlier_rules" validate:"dive"`
}

// Load reads configuration in precedence order: struct defaults, then
// the YAML file at path, then environment variables on top, then
// validation. An empty or missing path skips the file step.
func Load(path string) (*Config, error) {
	var cfg Config

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Optional file; defaults and env apply.
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	// Re-running envconfig.Process after the file merge would also
	// re-apply default tags over file values, so set variables are
	// restored field by field instead.
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides copies values from set SUBTYPER_* environment
// variables into cfg, leaving unset variables alone. Env beats file.
func (c *Config) applyEnvOverrides() error {
	envString("LOGGING_LEVEL", &c.Logging.Level)
	envString("LOGGING_OUTPUT", &c.Logging.Output)
	envString("LOGGING_FILE_PATH", &c.Logging.FilePath)
	envString("PATHS_INPUT_FILE", &c.Paths.InputFile)
	envString("PATHS_OUTPUT_DIR", &c.Paths.OutputDir)
	envString("PIPELINE_LINKAGE", &c.Pipeline.Linkage)
	if err := envInt64("PIPELINE_KMEANS_SEED", &c.Pipeline.KMeansSeed); err != nil {
		return err
	}
	if err := envInt("PIPELINE_KMEANS_RESTARTS", &c.Pipeline.KMeansRestarts); err != nil {
		return err
	}
	if err := envInt("PIPELINE_KMEANS_MAX_ITER", &c.Pipeline.KMeansMaxIter); err != nil {
		return err
	}
	if err := envInt64("PIPELINE_GMM_SEED", &c.Pipeline.GMMSeed); err != nil {
		return err
	}
	if err := envInt("PIPELINE_GMM_MAX_ITER", &c.Pipeline.GMMMaxIter); err != nil {
		return err
	}
	return envFloat("PIPELINE_GMM_TOL", &c.Pipeline.GMMTol)
}

func envString(name string, dst *string) {
	if v, ok := os.LookupEnv(envPrefix + "_" + name); ok {
		*dst = v
	}
}

func envInt64(name string, dst *int64) error {
	v, ok := os.LookupEnv(envPrefix + "_" + name)
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s_%s: %w", envPrefix, name, err)
	}
	*dst = n
	return nil
}

func envInt(name string, dst *int) error {
	v, ok := os.LookupEnv(envPrefix + "_" + name)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parse %s_%s: %w", envPrefix, name, err)
	}
	*dst = n
	return nil
}

func envFloat(name string, dst *float64) error {
	v, ok := os.LookupEnv(envPrefix + "_" + name)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("parse %s_%s: %w", envPrefix, name, err)
	}
	*dst = f
	return nil
}

// PipelineConfig converts the loaded settings into run parameters,
// resolving trait names in outlier rules. A missing outlier_rules
// section falls back to the default rule set.
func (c *Config) PipelineConfig() (pipeline.Config, error) {
	out := pipeline.Config{
		Linkage:        cluster.Linkage(c.Pipeline.Linkage),
		KMeansSeed:     c.Pipeline.KMeansSeed,
		KMeansRestarts: c.Pipeline.KMeansRestarts,
		KMeansMaxIter:  c.Pipeline.KMeansMaxIter,
		GMMSeed:        c.Pipeline.GMMSeed,
		GMMMaxIter:     c.Pipeline.GMMMaxIter,
		GMMTol:         c.Pipeline.GMMTol,
	}

	if len(c.Pipeline.OutlierRules) == 0 {
		out.OutlierRules = cohort.DefaultOutlierRules()
		return out, nil
	}
	for _, rule := range c.Pipeline.OutlierRules {
		trait, err := cohort.ParseTrait(rule.Trait)
		if err != nil {
			return pipeline.Config{}, fmt.Errorf("outlier rule: %w", err)
		}
		out.OutlierRules = append(out.OutlierRules, cohort.OutlierRule{Trait: trait, Max: rule.Max})
	}
	return out, nil
}
