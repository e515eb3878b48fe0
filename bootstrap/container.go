// Package bootstrap assembles a Manager and its ambient dependencies via
// dependency injection, grounded on component.go's provide(c
// *dig.Container) pattern: each collaborator is registered as a
// constructor, and dig resolves the graph when the Manager is
// requested.
package bootstrap

import (
	"go.uber.org/dig"

	"github.com/dueldanov/embedscript/engine"
	"github.com/dueldanov/embedscript/engine/metrics"
	"github.com/dueldanov/embedscript/internal/obslog"
)

// Config controls the shape of the assembled Manager. Zero-value Config
// is valid: logging is disabled, metrics are omitted, no rate limit or
// cache-size override is applied.
type Config struct {
	ScriptName    string
	EnableLogging bool
	EnableMetrics bool
	InvokeRPS     float64
	InvokeBurst   int
	CacheSize     int
}

// NewContainer builds a dig.Container with Config, a Logger, a metrics
// Collector, and the assembled Manager all registered as resolvable
// types.
func NewContainer(cfg Config) (*dig.Container, error) {
	c := dig.New()

	if err := c.Provide(func() Config { return cfg }); err != nil {
		return nil, err
	}
	if err := c.Provide(provideLogger); err != nil {
		return nil, err
	}
	if err := c.Provide(provideMetrics); err != nil {
		return nil, err
	}
	if err := c.Provide(provideManager); err != nil {
		return nil, err
	}
	return c, nil
}

func provideLogger(cfg Config) *obslog.Logger {
	if !cfg.EnableLogging {
		return obslog.NewDisabled()
	}
	return obslog.New(cfg.ScriptName)
}

// metricsHolder lets provideMetrics return a nil *metrics.Collector
// (dig does not accept nil interface-typed values, but a nil pointer
// wrapped in a struct is fine) when metrics are disabled.
type metricsHolder struct {
	Collector *metrics.Collector
}

func provideMetrics(cfg Config) metricsHolder {
	if !cfg.EnableMetrics {
		return metricsHolder{}
	}
	return metricsHolder{Collector: metrics.NewCollector()}
}

func provideManager(cfg Config, logger *obslog.Logger, mh metricsHolder) *engine.Manager {
	opts := []engine.Option{engine.WithLogger(logger)}
	if mh.Collector != nil {
		opts = append(opts, engine.WithMetrics(mh.Collector))
	}
	if cfg.InvokeRPS > 0 {
		opts = append(opts, engine.WithRateLimit(cfg.InvokeRPS, cfg.InvokeBurst))
	}
	if cfg.CacheSize > 0 {
		opts = append(opts, engine.WithCacheSize(cfg.CacheSize))
	}
	return engine.NewManager(opts...)
}

// Manager resolves the assembled Manager from a Container built by
// NewContainer.
func Manager(c *dig.Container) (*engine.Manager, error) {
	var m *engine.Manager
	err := c.Invoke(func(resolved *engine.Manager) { m = resolved })
	return m, err
}
