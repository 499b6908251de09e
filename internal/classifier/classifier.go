// Package classifier wires decoding, preprocessing, inference and ranking
// into a single classification call.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Brownie44l1/imagenet-api/internal/config"
	"github.com/Brownie44l1/imagenet-api/internal/imagesource"
	"github.com/Brownie44l1/imagenet-api/internal/labels"
	"github.com/Brownie44l1/imagenet-api/internal/model"
	"github.com/Brownie44l1/imagenet-api/internal/preprocess"
	"github.com/Brownie44l1/imagenet-api/internal/ranking"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Classifier is built once at startup and is read-only afterwards.
type Classifier struct {
	engine       model.Engine
	labels       labels.Table
	preprocessor *preprocess.Preprocessor
	decoder      *imagesource.Decoder
	topK         int
	log          zerolog.Logger
}

type Option func(*Classifier)

func WithTopK(k int) Option {
	return func(c *Classifier) {
		if k > 0 {
			c.topK = k
		}
	}
}

func WithDecoder(d *imagesource.Decoder) Option {
	return func(c *Classifier) { c.decoder = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Classifier) { c.log = l }
}

func New(engine model.Engine, table labels.Table, opts ...Option) *Classifier {
	c := &Classifier{
		engine:       engine,
		labels:       table,
		preprocessor: preprocess.New(),
		decoder:      imagesource.NewDecoder(0, 0),
		topK:         ranking.DefaultTopK,
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open loads the ONNX model and the label table concurrently.
// Any failure wraps model.ErrModelLoad.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Classifier, error) {
	var (
		engine *model.ONNXEngine
		table  labels.Table
	)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrModelLoad, err)
	}

	var g errgroup.Group
	g.Go(func() error {
		var err error
		engine, err = model.NewONNXEngine(model.ONNXConfig{
			ModelPath:   cfg.Model.Path,
			LibraryPath: cfg.Model.Library,
		})
		return err
	})
	g.Go(func() error {
		var err error
		table, err = labels.Load(cfg.Model.Labels)
		return err
	})
	if err := g.Wait(); err != nil {
		if engine != nil {
			engine.Close()
		}
		return nil, err
	}

	log.Info().
		Str("model", cfg.Model.Path).
		Str("input", engine.InputName()).
		Str("output", engine.OutputName()).
		Int("classes", table.Len()).
		Msg("Model loaded")

	return New(engine, table,
		WithTopK(cfg.TopK),
		WithDecoder(imagesource.NewDecoder(cfg.Fetch.MaxBytes, cfg.Fetch.MaxPixels)),
		WithLogger(log),
	), nil
}

func (c *Classifier) Labels() labels.Table { return c.labels }

// Classify runs the full chain on a decoded image.
func (c *Classifier) Classify(ctx context.Context, img model.DecodedImage) (model.PredictionResult, error) {
	start := time.Now()
	tensor, err := c.preprocessor.Preprocess(img)
	if err != nil {
		return nil, err
	}
	c.log.Debug().
		Int("width", img.Width).
		Int("height", img.Height).
		Dur("took", time.Since(start)).
		Msg("Preprocessed image")

	return c.ClassifyTensor(ctx, tensor)
}

// ClassifyTensor runs inference on an already preprocessed input.
func (c *Classifier) ClassifyTensor(ctx context.Context, input *model.Tensor) (model.PredictionResult, error) {
	start := time.Now()
	outputs, err := c.engine.Run(ctx, map[string]*model.Tensor{c.engine.InputName(): input})
	if err != nil {
		if errors.Is(err, model.ErrInference) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", model.ErrInference, err)
	}
	out, ok := outputs[c.engine.OutputName()]
	if !ok || out == nil {
		return nil, fmt.Errorf("%w: missing output %q", model.ErrInference, c.engine.OutputName())
	}
	if len(out.Data) == 0 {
		return nil, model.ErrEmptyScores
	}

	result := ranking.TopK(out.Data, c.labels, c.topK)
	c.log.Debug().
		Int("scores", len(out.Data)).
		Dur("took", time.Since(start)).
		Msg("Inference complete")
	return result, nil
}

// ClassifySource decodes src, waiting for it to load completely, and
// classifies it.
func (c *Classifier) ClassifySource(ctx context.Context, src imagesource.Source) (model.PredictionResult, error) {
	img, err := c.decoder.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	c.log.Debug().Str("source", src.String()).Msg("Image decoded")
	return c.Classify(ctx, img)
}

func (c *Classifier) Close() error {
	return c.engine.Close()
}
