package config

import (
	"flag"
	"io"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	DefaultWidth          = 800
	DefaultHeight         = 600
	DefaultFramesInFlight = 2
	DefaultFenceTimeout   = 5 * time.Second
)

type Config struct {
	Title  string
	Width  int
	Height int

	FramesInFlight int
	// FenceTimeout bounds every GPU wait. Expiry is fatal.
	FenceTimeout time.Duration

	Validation bool
	VSync      bool

	// ShaderDir holds the SPIR-V that go generate ./assets/shaders compiles.
	ShaderDir         string
	PipelineCachePath string

	Verbose bool
}

func Default() Config {
	return Config{
		Title:          "Vulkan",
		Width:          DefaultWidth,
		Height:         DefaultHeight,
		FramesInFlight: DefaultFramesInFlight,
		FenceTimeout:   DefaultFenceTimeout,
		Validation:     true,
		VSync:          true,
		ShaderDir:      "assets/shaders",
	}
}

// Parse reads command line arguments (without the program name) over the defaults.
// Usage output goes to output; -h returns flag.ErrHelp.
func Parse(args []string, output io.Writer) (Config, error) {
	cfg := Default()

	flags := flag.NewFlagSet("hellovulkan", flag.ContinueOnError)
	flags.SetOutput(output)

	flags.StringVar(&cfg.Title, "title", cfg.Title, "window title")
	flags.IntVar(&cfg.Width, "width", cfg.Width, "initial window width")
	flags.IntVar(&cfg.Height, "height", cfg.Height, "initial window height")
	flags.IntVar(&cfg.FramesInFlight, "frames-in-flight", cfg.FramesInFlight, "number of frames the CPU may queue ahead of the GPU")
	flags.DurationVar(&cfg.FenceTimeout, "fence-timeout", cfg.FenceTimeout, "maximum time to wait on the GPU before giving up")
	flags.BoolVar(&cfg.Validation, "validation", cfg.Validation, "enable VK_LAYER_KHRONOS_validation and the debug messenger")
	flags.BoolVar(&cfg.VSync, "vsync", cfg.VSync, "use FIFO presentation instead of mailbox")
	flags.StringVar(&cfg.ShaderDir, "shaders", cfg.ShaderDir, "directory holding vert.spv and frag.spv, built by go generate ./assets/shaders")
	flags.StringVar(&cfg.PipelineCachePath, "pipeline-cache", cfg.PipelineCachePath, "file used to persist the pipeline cache between runs")
	flags.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "log every swapchain rebuild and frame statistics")

	err := flags.Parse(args)
	if err != nil {
		return cfg, err
	}

	if flags.NArg() > 0 {
		return cfg, errors.Newf("unrecognized argument %q", flags.Arg(0))
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return errors.Newf("window size must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.FramesInFlight < 1 {
		return errors.Newf("frames in flight must be at least 1, got %d", c.FramesInFlight)
	}
	if c.FenceTimeout <= 0 {
		return errors.Newf("fence timeout must be positive, got %s", c.FenceTimeout)
	}
	if c.ShaderDir == "" {
		return errors.New("shader directory must not be empty")
	}

	return nil
}
