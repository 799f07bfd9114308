package matgraphaux

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/soypat/matgraph/glbuild"
)

// Config configures material compilation and previews. It is usually loaded from a TOML file:
//
//	glsl_version = "330 core"
//	width = 512
//	height = 512
//	bake_uniforms = false
//	debug_comments = true
//	log_level = "debug"
//	output = "material.png"
type Config struct {
	// GLSLVersion is the text following #version in generated stages. Empty uses the default.
	GLSLVersion   string  `toml:"glsl_version"`
	Width         int     `toml:"width"`
	Height        int     `toml:"height"`
	BakeUniforms  bool    `toml:"bake_uniforms"`
	DebugComments bool    `toml:"debug_comments"`
	LogLevel      string  `toml:"log_level"`
	Output        string  `toml:"output"`
	Time          float32 `toml:"time"`
}

// DefaultConfig returns the configuration used for fields absent from a config file.
func DefaultConfig() Config {
	return Config{
		Width:    512,
		Height:   512,
		LogLevel: "info",
		Output:   "material.png",
	}
}

// LoadConfig decodes a TOML configuration on top of [DefaultConfig].
// Unknown keys are an error.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	err := toml.NewDecoder(r).DisallowUnknownFields().Decode(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	err = cfg.Validate()
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigFile loads the TOML configuration file at filename.
func LoadConfigFile(filename string) (Config, error) {
	fp, err := os.Open(filename)
	if err != nil {
		return Config{}, err
	}
	defer fp.Close()
	return LoadConfig(fp)
}

// Validate reports invalid configuration values.
func (c Config) Validate() error {
	var errs []error
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("invalid image size %dx%d", c.Width, c.Height))
	}
	if strings.ContainsAny(c.GLSLVersion, "\n\r") {
		errs = append(errs, errors.New("glsl_version must be a single line"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// TemplateConfig returns the template configuration with the configured GLSL version.
func (c Config) TemplateConfig() glbuild.TemplateConfig {
	cfg := glbuild.DefaultTemplateConfig()
	if c.GLSLVersion != "" {
		cfg.Version = "#version " + c.GLSLVersion + "\n"
	}
	return cfg
}

// Flags returns the compilation flags selected by the configuration.
func (c Config) Flags() (flags glbuild.Flags) {
	if c.BakeUniforms {
		flags |= glbuild.FlagBakeUniforms
	}
	if c.DebugComments {
		flags |= glbuild.FlagDebugComments
	}
	return flags
}

// Level parses the configured log level. Empty means info.
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	err := lvl.UnmarshalText([]byte(c.LogLevel))
	if err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}

// NewLogger returns a text logger writing to w at the configured level.
func (c Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	lvl, err := c.Level()
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// NewTemplate returns a template configured by c.
func (c Config) NewTemplate(name string, logger *slog.Logger) *glbuild.Template {
	t := glbuild.NewTemplate(name, c.TemplateConfig())
	t.Flags = c.Flags()
	t.Logger = logger
	return t
}
