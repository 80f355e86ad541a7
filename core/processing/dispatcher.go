// Package processing turns a finished conversation into a stylized image by
// preparing the tensor, calling the model backend once and encoding the reply.
package processing

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/m3rciful/stylebot/core/catalog"
	"github.com/m3rciful/stylebot/core/imaging"
	"github.com/m3rciful/stylebot/core/inference"
	"github.com/m3rciful/stylebot/core/logger"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultImageSize = 256
)

// ErrPanic marks a dispatch that panicked while preparing or decoding tensors.
var ErrPanic = errors.New("processing: panic")

// Backend runs a named model on a single input tensor.
type Backend interface {
	Infer(ctx context.Context, model string, in inference.Tensor) (inference.Tensor, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, model string, in inference.Tensor) (inference.Tensor, error)

// Infer calls f.
func (f BackendFunc) Infer(ctx context.Context, model string, in inference.Tensor) (inference.Tensor, error) {
	return f(ctx, model, in)
}

// Request is the terminal payload of a conversation.
type Request struct {
	Technology string
	StyleKey   string
	Image      image.Image
}

// Result is an encoded output image.
type Result struct {
	Data   []byte
	Format imaging.Format
	Model  string
}

// BackendError wraps every failure that happens after a request is accepted.
type BackendError struct {
	Technology string
	Model      string
	Err        error
}

func (e *BackendError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("processing %s: %v", e.Technology, e.Err)
	}
	return fmt.Sprintf("processing %s (%s): %v", e.Technology, e.Model, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// profile describes how one model family expects and returns pixels.
type profile struct {
	in     func(float32) float32
	out    func(float32) float32
	format imaging.Format
}

var profiles = map[catalog.Family]profile{
	// Feed-forward style networks take 0..255 pixels and answer in the same range.
	catalog.FamilyStylize: {
		in:     func(v float32) float32 { return v * 255 },
		out:    func(v float32) float32 { return v },
		format: imaging.FormatJPEG,
	},
	// Image-to-image generators work in [-1,1].
	catalog.FamilyTranslate: {
		in:     func(v float32) float32 { return (v - 0.5) / 0.5 },
		out:    func(v float32) float32 { return (v + 1) / 2 * 255 },
		format: imaging.FormatPNG,
	},
}

// Options tune a Dispatcher. Zero values select defaults.
type Options struct {
	Timeout   time.Duration
	ImageSize int
}

// Dispatcher routes requests to the backend model of their technology.
type Dispatcher struct {
	catalog *catalog.Catalog
	backend Backend
	timeout time.Duration
	size    int
}

// NewDispatcher builds a Dispatcher over cat and backend.
func NewDispatcher(cat *catalog.Catalog, backend Backend, opts Options) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.ImageSize <= 0 {
		opts.ImageSize = defaultImageSize
	}
	return &Dispatcher{catalog: cat, backend: backend, timeout: opts.Timeout, size: opts.ImageSize}
}

func (d *Dispatcher) suffixOf(tech string) string {
	t, _ := d.catalog.Lookup(tech)
	return t.ModelSuffix
}

// ModelID returns the backend model name for a technology and style key.
func (d *Dispatcher) ModelID(tech, styleKey string) (string, error) {
	t, ok := d.catalog.Lookup(tech)
	if !ok {
		return "", fmt.Errorf("technology %q: %w", tech, catalog.ErrNotFound)
	}
	return styleKey + t.ModelSuffix, nil
}

// Dispatch runs req through its model and returns the encoded image.
// Every error it returns is a *BackendError.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	res, err := d.dispatch(ctx, req)

	attrs := []slog.Attr{
		slog.String("technology", req.Technology),
		slog.String("style", req.StyleKey),
		slog.String("model", res.Model),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		var berr *BackendError
		if errors.As(err, &berr) && berr.Model != "" {
			attrs[2] = slog.String("model", berr.Model)
		}
		attrs = append(attrs, logger.Err(err))
		logger.Warn(ctx, logger.CompProcessing, "dispatch.fail", attrs...)
		return Result{}, err
	}
	attrs = append(attrs, slog.Int("bytes", len(res.Data)))
	logger.Info(ctx, logger.CompProcessing, "dispatch.done", attrs...)
	return res, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) (res Result, err error) {
	fail := func(model string, err error) (Result, error) {
		return Result{}, &BackendError{Technology: req.Technology, Model: model, Err: err}
	}
	// A backend reply that trips a panic in decoding still ends as a BackendError.
	defer func() {
		if r := recover(); r != nil {
			res, err = fail(req.StyleKey+d.suffixOf(req.Technology), fmt.Errorf("%w: %v", ErrPanic, r))
		}
	}()

	tech, ok := d.catalog.Lookup(req.Technology)
	if !ok {
		return fail("", fmt.Errorf("technology %q: %w", req.Technology, catalog.ErrNotFound))
	}
	prof, ok := profiles[tech.Family]
	if !ok {
		return fail("", fmt.Errorf("no processing profile for family %q", tech.Family))
	}
	if req.Image == nil {
		return fail("", errors.New("missing content image"))
	}
	model := req.StyleKey + tech.ModelSuffix

	input := inference.Tensor{
		Shape: []int64{1, 3, int64(d.size), int64(d.size)},
		Data:  imaging.ToCHW(req.Image, d.size, prof.in),
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	out, err := d.backend.Infer(callCtx, model, input)
	if err != nil {
		return fail(model, err)
	}

	img, err := imaging.FromCHW(out.Data, out.Shape, prof.out)
	if err != nil {
		return fail(model, err)
	}
	data, err := imaging.Encode(img, prof.format)
	if err != nil {
		return fail(model, err)
	}
	return Result{Data: data, Format: prof.format, Model: model}, nil
}
