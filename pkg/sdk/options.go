package photomatch

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	dbPath     string
	uploadsDir string
	extractor  Extractor
	dimensions int
	defaultK   int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithSQLite sets the catalog database file. Defaults to "photomatch.db".
func WithSQLite(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.dbPath = path
	})
}

// WithExtractor sets the feature extractor. Required.
func WithExtractor(e Extractor) Option {
	return optionFunc(func(c *clientConfig) {
		c.extractor = e
	})
}

// WithDimensions rejects vectors of any other length. Zero disables the check (default).
func WithDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.dimensions = dim
	})
}

// WithUploadsDir sets the directory photos are stored under. Defaults to ".".
func WithUploadsDir(root string) Option {
	return optionFunc(func(c *clientConfig) {
		c.uploadsDir = root
	})
}

// WithDefaultK sets the number of matches Recognize returns when k is 0.
// Default: 5.
func WithDefaultK(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultK = k
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
