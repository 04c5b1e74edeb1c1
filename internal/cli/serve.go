package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/svg2img/pkg/config"
	"github.com/matzehuels/svg2img/pkg/observability"
	"github.com/matzehuels/svg2img/pkg/pipeline"
	"github.com/matzehuels/svg2img/pkg/server"
)

// serveCommand creates the serve command. Flags override the [server] and
// [cache] sections of the config file.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr      string
		backend   string
		redisAddr string
		mongoURI  string
		maxBody   int64
		maxPixels int64
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP rendering service",
		Long: `Run the HTTP rendering service.

POST an SVG document to /render and receive the image. Query parameters
select the format and size, e.g. /render?format=webp&max_width=512.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cfg := c.cfg
			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Server.Addr = addr
			}
			if flags.Changed("max-body") {
				cfg.Server.MaxBodyBytes = maxBody
			}
			if flags.Changed("max-pixels") {
				cfg.Server.MaxPixels = maxPixels
			}
			if flags.Changed("cache") {
				cfg.Cache.Backend = backend
			}
			if flags.Changed("redis-addr") {
				cfg.Cache.RedisAddr = redisAddr
			}
			if flags.Changed("mongo-uri") {
				cfg.Cache.MongoURI = mongoURI
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			defaults, err := cfg.RenderOptions()
			if err != nil {
				return err
			}

			cc, err := cfg.Cache.OpenCache(ctx)
			if err != nil {
				return err
			}
			runner := pipeline.NewRunner(cc, nil, logger)
			defer runner.Close()

			hooks := observability.NewLogHooks(logger)
			observability.SetPipelineHooks(hooks)
			observability.SetCacheHooks(hooks)
			observability.SetHTTPHooks(hooks)
			defer observability.Reset()

			logger.Info("starting server", "cache", cfg.Cache.Backend, "max_body", cfg.Server.MaxBodyBytes, "max_pixels", cfg.Server.MaxPixels)
			srv := server.New(runner, server.Config{
				Defaults:     defaults,
				MaxBodyBytes: cfg.Server.MaxBodyBytes,
				MaxPixels:    cfg.Server.MaxPixels,
				Logger:       logger,
			})
			return srv.ListenAndServe(ctx, cfg.Server.Addr)
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", config.DefaultAddr, "listen address")
	f.StringVar(&backend, "cache", config.BackendFile, "cache backend: none, memory, file, redis, mongo")
	f.StringVar(&redisAddr, "redis-addr", config.DefaultRedisAddr, "redis address (cache=redis)")
	f.StringVar(&mongoURI, "mongo-uri", "", "MongoDB connection URI (cache=mongo)")
	f.Int64Var(&maxBody, "max-body", config.DefaultMaxBodyBytes, "maximum request body in bytes")
	f.Int64Var(&maxPixels, "max-pixels", config.DefaultMaxPixels, "maximum supersampled canvas pixels per request")

	return cmd
}
