package ngramfst

import (
	"github.com/apex/log"
)

// Logger is the logging surface used by this package. *log.Logger and
// log.Log from github.com/apex/log satisfy it.
type Logger interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
}

type options struct {
	logger         Logger
	order          *[]StateID
	verifyChecksum bool
}

// Option configures Build and the loaders.
type Option func(*options)

func newOptions(opts []Option) *options {
	o := &options{
		logger:         log.Log,
		verifyChecksum: true,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger. The default is log.Log.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStateOrder makes Build store, for each input state, the state
// number it received in the model.
func WithStateOrder(order *[]StateID) Option {
	return func(o *options) {
		o.order = order
	}
}

// WithoutChecksum skips payload checksum verification when loading.
func WithoutChecksum() Option {
	return func(o *options) {
		o.verifyChecksum = false
	}
}
