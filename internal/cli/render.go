package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/matzehuels/svg2img/pkg/encode"
	"github.com/matzehuels/svg2img/pkg/errors"
	"github.com/matzehuels/svg2img/pkg/pipeline"
	"github.com/matzehuels/svg2img/pkg/sink"
)

// stdinArg reads the SVG from standard input.
const stdinArg = "-"

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output        string // output file (single input only)
	format        string // png, jpeg, jpg, gif, webp
	size          string // exact size "WxH"
	width         int
	height        int
	maxWidth      int
	maxHeight     int
	superSampling int
	background    string
	filter        string
	quality       int
	strict        bool
	noCache       bool
	refresh       bool
	stdout        bool // write image bytes to stdout
}

// renderCommand creates the render command.
//
// Output location:
//   - -o path: that file (single input only)
//   - --stdout: image bytes on standard output (single input only)
//   - file input: next to the input with the format's extension
//   - stdin input: a new svg2img-<uuid> file in the temp directory
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render <file|->...",
		Short: "Convert SVG files to raster images",
		Example: `  svg2img render logo.svg
  svg2img render logo.svg -o logo.jpg --width 256 --height 256
  svg2img render icons/*.svg -f webp --max-width 128
  cat logo.svg | svg2img render - --stdout > logo.png`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd, args, &opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "", "output file (format inferred from extension)")
	f.StringVarP(&opts.format, "format", "f", "", "output format: "+strings.Join(encode.FormatNames(), ", "))
	f.StringVar(&opts.size, "size", "", "exact output size WxH (content is centered)")
	f.IntVar(&opts.width, "width", 0, "output width in pixels")
	f.IntVar(&opts.height, "height", 0, "output height in pixels")
	f.IntVar(&opts.maxWidth, "max-width", 0, "shrink to at most this width, keeping the aspect ratio")
	f.IntVar(&opts.maxHeight, "max-height", 0, "shrink to at most this height, keeping the aspect ratio")
	f.IntVarP(&opts.superSampling, "super-sampling", "s", 0, "supersampling factor: 1, 2, 4, ... 64 (default 2)")
	f.StringVar(&opts.background, "background", "", "JPEG background color (e.g. white, #ffcc00)")
	f.StringVar(&opts.filter, "filter", "", "downsampling filter: lanczos, catmullrom, linear, box, nearest")
	f.IntVarP(&opts.quality, "quality", "q", 0, "JPEG quality 1-100 (default 90)")
	f.BoolVar(&opts.strict, "strict", false, "reject SVG elements the renderer cannot draw")
	f.BoolVar(&opts.noCache, "no-cache", false, "disable the artifact cache")
	f.BoolVar(&opts.refresh, "refresh", false, "re-render even if cached")
	f.BoolVar(&opts.stdout, "stdout", false, "write the image to standard output")

	return cmd
}

func (c *CLI) runRender(cmd *cobra.Command, args []string, opts *renderOpts) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	if len(args) > 1 && (opts.output != "" || opts.stdout) {
		return errors.New(errors.ErrCodeInvalidOption, "--output and --stdout take a single input, got %d", len(args))
	}
	if opts.output != "" && opts.stdout {
		return errors.New(errors.ErrCodeInvalidOption, "--output and --stdout are mutually exclusive")
	}

	base, err := c.cfg.RenderOptions()
	if err != nil {
		return err
	}
	flagOpts, err := pipeline.ParseOptions(opts.keyValues(cmd))
	if err != nil {
		return err
	}
	// -o photo.jpg implies JPEG unless -f says otherwise.
	if flagOpts.Format == 0 && opts.output != "" {
		if f, ok := encode.FormatFromPath(opts.output); ok {
			flagOpts.Format = f
		}
	}
	flagOpts.Refresh = opts.refresh
	flagOpts.Logger = logger
	ropts := base.Override(flagOpts)
	if err := ropts.ValidateAndSetDefaults(); err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	out := printer{w: c.Stdout}
	if opts.stdout {
		out.w = nil
	}

	prog := newProgress(logger)
	var firstErr error
	for _, input := range args {
		res, err := c.renderOne(ctx, runner, input, ropts, opts)
		prog.record(err)
		if err != nil {
			out.failure("%s: %s", displayName(input), errors.UserMessage(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", displayName(input), err)
			}
			continue
		}
		if opts.stdout {
			if _, err := c.Stdout.Write(res.Data); err != nil {
				return errors.Wrap(errors.ErrCodeIO, err, "write stdout")
			}
			continue
		}
		out.success("%s", displayName(input))
		out.file(res.Path)
		out.stats(res)
	}
	if len(args) > 1 {
		prog.finish()
	}
	return firstErr
}

// renderOne converts a single input with its own destination.
func (c *CLI) renderOne(ctx context.Context, runner *pipeline.Runner, input string, ropts pipeline.Options, opts *renderOpts) (*pipeline.Result, error) {
	data, err := c.readInput(input)
	if err != nil {
		return nil, err
	}

	ropts.Output = destination(input, ropts.Format, opts)

	sp := c.spinnerFor(ctx, "Rendering "+displayName(input))
	sp.Start()
	defer sp.Stop()
	return runner.Execute(ctx, data, ropts)
}

func (c *CLI) readInput(input string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if input == stdinArg {
		data, err = io.ReadAll(c.Stdin)
	} else {
		data, err = os.ReadFile(input)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", displayName(input))
	}
	return data, nil
}

// destination picks where one input's image goes.
func destination(input string, f encode.Format, opts *renderOpts) sink.Destination {
	switch {
	case opts.stdout:
		return sink.Memory{}
	case opts.output != "":
		return sink.File{Path: opts.output}
	case input == stdinArg:
		return sink.Temp{}
	}
	return sink.File{Path: strings.TrimSuffix(input, filepath.Ext(input)) + f.Extension()}
}

// spinnerFor returns a spinner on stderr when it is a terminal, otherwise a
// silent one.
func (c *CLI) spinnerFor(ctx context.Context, msg string) *Spinner {
	var w io.Writer
	if isatty.IsTerminal(os.Stderr.Fd()) && c.Logger.GetLevel() > LogDebug {
		w = os.Stderr
	}
	return newSpinner(ctx, w, msg)
}

func displayName(input string) string {
	if input == stdinArg {
		return "<stdin>"
	}
	return input
}

// keyValues maps the flags that were set on cmd to pipeline option keys.
func (o *renderOpts) keyValues(cmd *cobra.Command) map[string]string {
	m := map[string]string{}
	set := func(flag, key, value string) {
		if cmd.Flags().Changed(flag) {
			m[key] = value
		}
	}
	set("format", pipeline.KeyFormat, o.format)
	set("size", pipeline.KeySize, o.size)
	set("width", pipeline.KeyWidth, strconv.Itoa(o.width))
	set("height", pipeline.KeyHeight, strconv.Itoa(o.height))
	set("max-width", pipeline.KeyMaxWidth, strconv.Itoa(o.maxWidth))
	set("max-height", pipeline.KeyMaxHeight, strconv.Itoa(o.maxHeight))
	set("super-sampling", pipeline.KeySuperSampling, strconv.Itoa(o.superSampling))
	set("background", pipeline.KeyBackground, o.background)
	set("filter", pipeline.KeyFilter, o.filter)
	set("quality", pipeline.KeyJPEGQuality, strconv.Itoa(o.quality))
	set("strict", pipeline.KeyStrict, strconv.FormatBool(o.strict))
	return m
}
