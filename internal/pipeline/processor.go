package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Lllllllleong/listingflow/internal/metrics"
	"github.com/Lllllllleong/listingflow/internal/models"
)

// Config wires a Processor. Transformer may be nil for copy-through processors.
type Config struct {
	// Name labels logs and metrics, e.g. "listing-loader".
	Name        string
	Fetcher     Fetcher
	Validator   Validator
	Transformer Transformer
	Persister   Persister
	Logger      *slog.Logger
}

// Processor runs fetch, parse, validate, transform and persist for one descriptor.
type Processor struct {
	cfg Config
}

// NewProcessor validates cfg and returns a ready Processor.
func NewProcessor(cfg Config) (*Processor, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("processor requires a fetcher")
	}
	if cfg.Persister == nil {
		return nil, errors.New("processor requires a persister")
	}
	if cfg.Validator.Field == "" {
		if cfg.Transformer == nil {
			return nil, errors.New("processor requires a validator field")
		}
		cfg.Validator.Field = cfg.Transformer.Field()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Processor{cfg: cfg}, nil
}

// Process handles one descriptor. It fetches exactly once, and persists
// exactly once only when every earlier step succeeded. The first failing
// step's error is returned; persist failures are logged and replaced by a
// *PersistError.
func (p *Processor) Process(ctx context.Context, src models.Descriptor) error {
	logCtx := p.cfg.Logger.With("container", src.Container, "key", src.Key)

	res := Pipe(ctx, p.fetch(ctx, logCtx, src),
		p.parse,
		p.validate,
		p.transform,
		func(ctx context.Context, w Write) Result[Write] { return p.persist(ctx, logCtx, w) },
	)

	err := res.Err()
	metrics.RecordsTotal.WithLabelValues(p.cfg.Name, Outcome(err)).Inc()
	if err != nil {
		return err
	}
	logCtx.Debug("Record processed.")
	return nil
}

func (p *Processor) fetch(ctx context.Context, logCtx *slog.Logger, src models.Descriptor) Result[Write] {
	doc, err := p.cfg.Fetcher.Fetch(ctx, src)
	if err != nil {
		logCtx.Error("Failed to fetch source document.", "error", err)
		return Fail[Write](err)
	}
	return Ok(Write{Source: src, Document: doc})
}

func (p *Processor) parse(_ context.Context, w Write) Result[Write] {
	rec, err := Parse(w.Source, w.Document.Body)
	if err != nil {
		return Fail[Write](err)
	}
	w.Record = rec
	return Ok(w)
}

func (p *Processor) validate(_ context.Context, w Write) Result[Write] {
	if !p.cfg.Validator.Valid(w.Record) {
		return Fail[Write](&ValidationError{Source: w.Source, Field: p.cfg.Validator.Field})
	}
	return Ok(w)
}

func (p *Processor) transform(_ context.Context, w Write) Result[Write] {
	if p.cfg.Transformer != nil {
		w.Item = p.cfg.Transformer.Transform(w.Record)
	}
	return Ok(w)
}

func (p *Processor) persist(ctx context.Context, logCtx *slog.Logger, w Write) Result[Write] {
	if err := p.cfg.Persister.Persist(ctx, w); err != nil {
		logCtx.Error("Failed to persist record.", "error", err)
		return Fail[Write](&PersistError{Source: w.Source})
	}
	return Ok(w)
}
