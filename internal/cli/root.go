package cli

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/svg2img/pkg/buildinfo"
)

// annotationNoConfig marks commands that run without loading the config file.
const annotationNoConfig = "svg2img/no-config"

// RootCommand creates the root cobra command with all subcommands registered.
//
// Persistent flags:
//   - --verbose (-v): debug logging
//   - --config: TOML config file (default $XDG_CONFIG_HOME/svg2img/config.toml)
//
// The config is loaded and the logger attached to the command context before
// any subcommand runs.
func (c *CLI) RootCommand() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:          appName,
		Short:        "svg2img converts SVG documents to raster images",
		Long:         `svg2img renders SVG documents to PNG, JPEG, GIF or WEBP with supersampled anti-aliasing, either from the command line or as an HTTP service.`,
		Version:      buildinfo.Get().Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c.SetLogLevel(levelFor(verbose))
			if _, skip := cmd.Annotations[annotationNoConfig]; !skip {
				if err := c.loadConfig(); err != nil {
					return err
				}
			}
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/svg2img/config.toml)")

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

func levelFor(verbose bool) log.Level {
	if verbose {
		return LogDebug
	}
	return LogInfo
}
