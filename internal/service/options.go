package service

import (
	"github.com/spf13/afero"

	"github.com/idelchi/foldercrypt/internal/kdf"
)

type options struct {
	fs     afero.Fs
	params kdf.Params
}

// Option configures a service.
type Option func(*options)

// WithFs runs the service against fsys instead of the OS filesystem.
func WithFs(fsys afero.Fs) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

// WithParams overrides the key derivation cost.
// Cost is not stored with the output, so decryption must use the same params.
func WithParams(params kdf.Params) Option {
	return func(o *options) {
		o.params = params
	}
}

func newOptions(opts []Option) options {
	o := options{
		fs:     afero.NewOsFs(),
		params: kdf.DefaultParams(),
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}
