// Package app wires settings, logging and metrics into the components the
// commands run.
package app

import (
	"github.com/tphakala/birdnet-api2ha/internal/api"
	"github.com/tphakala/birdnet-api2ha/internal/birdnetconf"
	"github.com/tphakala/birdnet-api2ha/internal/bridge"
	"github.com/tphakala/birdnet-api2ha/internal/buildinfo"
	"github.com/tphakala/birdnet-api2ha/internal/conf"
	"github.com/tphakala/birdnet-api2ha/internal/datastore"
	"github.com/tphakala/birdnet-api2ha/internal/logger"
	"github.com/tphakala/birdnet-api2ha/internal/mqtt"
	"github.com/tphakala/birdnet-api2ha/internal/observability"
	"github.com/tphakala/birdnet-api2ha/internal/securefs"
)

// Context holds everything a command needs after start-up. It is created
// empty and filled by Initialize once flags are parsed.
type Context struct {
	Build    *buildinfo.Context
	Settings *conf.Settings

	central *logger.CentralLogger
	log     logger.Logger
	metrics *observability.Metrics
}

// NewContext creates an uninitialized context.
func NewContext(build *buildinfo.Context) *Context {
	return &Context{
		Build: build,
		log:   logger.NewSlogLogger(nil, logger.LogLevelError, nil),
	}
}

// Initialize loads settings from configPath, starts logging and resolves
// database and clip locations from the upstream BirdNET-Go configuration.
func (c *Context) Initialize(configPath string, debug bool) error {
	settings, err := conf.Load(configPath)
	if err != nil {
		return err
	}
	if debug {
		settings.Logging.DefaultLevel = string(logger.LogLevelDebug)
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = string(logger.LogLevelDebug)
		}
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return err
	}
	c.Settings = settings
	c.central = central
	c.log = central.Module("main")

	c.log.Info("starting birdnet-api2ha",
		logger.String("version", c.Build.GetVersion()),
		logger.String("build_date", c.Build.GetBuildDate()),
		logger.String("config", settings.ConfigFile))
	for _, w := range settings.Warnings {
		c.log.Warn(w)
	}

	info, err := conf.ResolveUpstream(settings, birdnetconf.DefaultSearchDirs())
	switch {
	case err != nil:
		c.log.Warn("could not read BirdNET-Go configuration", logger.Error(err))
	case info != nil:
		c.log.Info("using BirdNET-Go configuration",
			logger.String("path", info.ConfigPath),
			logger.String("database_type", info.DatabaseType))
	}

	if settings.DatabaseType == conf.DatabaseSQLite && settings.DatabasePath == "" {
		c.log.Warn("no database configured; queries will return empty results")
	}
	return nil
}

// Logger returns a logger scoped to module.
func (c *Context) Logger(module string) logger.Logger {
	if c.central != nil {
		return c.central.Module(module)
	}
	return c.log.Module(module)
}

// Metrics returns the shared metrics registry, creating it on first use, or
// nil when metrics are disabled.
func (c *Context) Metrics() (*observability.Metrics, error) {
	if c.Settings == nil || !c.Settings.Metrics.Enabled {
		return nil, nil
	}
	if c.metrics == nil {
		m, err := observability.NewMetrics()
		if err != nil {
			return nil, err
		}
		c.metrics = m
	}
	return c.metrics, nil
}

// Repository builds the detection repository from settings.
func (c *Context) Repository() (*datastore.Repository, error) {
	m, err := c.Metrics()
	if err != nil {
		return nil, err
	}
	opts := []datastore.Option{datastore.WithLogger(c.Logger("datastore"))}
	if m != nil {
		opts = append(opts, datastore.WithMetrics(m.Datastore))
	}
	return datastore.New(datastore.ConfigFromSettings(c.Settings), opts...)
}

// Bridge builds the polling bridge and its MQTT client over source.
func (c *Context) Bridge(source bridge.Source) (*bridge.Bridge, error) {
	m, err := c.Metrics()
	if err != nil {
		return nil, err
	}

	clientOpts := []mqtt.Option{mqtt.WithLogger(c.Logger("mqtt"))}
	bridgeOpts := []bridge.Option{bridge.WithLogger(c.Logger("bridge"))}
	if m != nil {
		clientOpts = append(clientOpts, mqtt.WithMetrics(m.MQTT))
		bridgeOpts = append(bridgeOpts, bridge.WithMetrics(m.Bridge))
	}

	client, err := mqtt.NewClient(mqtt.ConfigFromSettings(&c.Settings.MQTT), clientOpts...)
	if err != nil {
		return nil, err
	}
	return bridge.New(bridge.ConfigFromSettings(&c.Settings.MQTT), source, client, bridgeOpts...)
}

// Server builds the HTTP server over repo. An unusable clip directory only
// disables audio serving.
func (c *Context) Server(repo api.Repository) (*api.Server, func(), error) {
	m, err := c.Metrics()
	if err != nil {
		return nil, nil, err
	}
	log := c.Logger("api")

	opts := []api.ServerOption{api.WithLogger(log)}
	if m != nil {
		opts = append(opts, api.WithMetrics(m))
	}

	cleanup := func() {}
	if dir := c.Settings.ClipsBasePath; dir != "" {
		clips, err := securefs.New(dir, c.Logger("securefs"))
		if err != nil {
			log.Warn("audio clips unavailable", logger.String("clips_base_path", dir), logger.Error(err))
		} else {
			log.Info("serving audio clips", logger.String("clips_base_path", clips.BaseDir()))
			opts = append(opts, api.WithClips(clips))
			cleanup = func() {
				if err := clips.Close(); err != nil {
					log.Warn("failed to close clip directory", logger.Error(err))
				}
			}
		}
	}

	server, err := api.New(api.ConfigFromSettings(c.Settings), repo, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return server, cleanup, nil
}

// Close flushes and closes log outputs.
func (c *Context) Close() {
	if c.central == nil {
		return
	}
	if err := c.central.Close(); err != nil {
		c.log.Warn("failed to close logger", logger.Error(err))
	}
}
