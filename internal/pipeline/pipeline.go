// Package pipeline drives photo messages from a source through
// normalization, OCR and keyword matching to either a persisted match record
// or full cleanup of the message's files.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DanelSchwartz/TeleScan-OCR/internal/data"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/image"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/match"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/metrics"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/ocr"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/source"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Mode string

const (
	ModeHistorical Mode = "history"
	ModeLive       Mode = "live"
)

type VariantStrategy string

const (
	// VariantsAll runs OCR on each variant in order until one matches.
	VariantsAll VariantStrategy = "all"
	// VariantsSharpest runs OCR only on the variant with the highest
	// Laplacian variance.
	VariantsSharpest VariantStrategy = "sharpest"
)

const defaultDownloadTimeout = 60 * time.Second

type Options struct {
	Mode Mode
	// Chat is the target; the zero value scans every dialog in historical
	// mode and every visible chat in live mode.
	Chat         source.ChatRef
	HistoryLimit int
	Workers      int
	WorkDir      string
	Variants     VariantStrategy
	// CheckClarity rejects blurry raw photos before normalization.
	CheckClarity    bool
	DownloadTimeout time.Duration
}

// Normalizer is the image side of the pipeline.
type Normalizer interface {
	Clarity(path string) (image.Clarity, error)
	Normalize(path string) ([]image.Variant, error)
	Sharpest(variants []image.Variant) (image.Variant, error)
	Cleanup(paths ...string)
}

type TextExtractor interface {
	Extract(ctx context.Context, path string) ocr.Result
}

type Decider interface {
	Decide(text string) match.Decision
}

type Sink interface {
	Append(rec data.MatchRecord) error
}

// Clients are the collaborators a pipeline run works with.
type Clients struct {
	Source    source.Client
	Images    Normalizer
	Extractor TextExtractor
	Matcher   Decider
	Sink      Sink
	Metrics   *metrics.Metrics
}

type Pipeline struct {
	opts    Options
	clients Clients
	log     zerolog.Logger
}

func New(opts Options, clients Clients, log zerolog.Logger) *Pipeline {
	if opts.Mode == "" {
		opts.Mode = ModeHistorical
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 100
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Variants == "" {
		opts.Variants = VariantsAll
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = defaultDownloadTimeout
	}
	if clients.Metrics == nil {
		clients.Metrics = metrics.New()
	}
	return &Pipeline{opts: opts, clients: clients, log: log}
}

// Report summarizes one run. Live runs are open-ended, so they only count
// outcomes; their records go to the sink and their failures to the log.
type Report struct {
	RunID    string
	Records  map[string]data.MatchRecord
	Failures map[string]error
	Outcomes map[string]int
}

type writeResult[T any] struct {
	mu       sync.Mutex
	writes   map[string]T
	failures map[string]error
	outcomes map[string]int
	// countOnly drops per-message entries and keeps the outcome counters.
	countOnly bool
}

func newWriteResult[T any](countOnly bool) *writeResult[T] {
	return &writeResult[T]{
		writes:    make(map[string]T),
		failures:  make(map[string]error),
		outcomes:  make(map[string]int),
		countOnly: countOnly,
	}
}

// Run processes messages until the source is exhausted (historical mode) or
// ctx is cancelled (live mode). Cancellation stops intake only; messages
// already taken by a worker still reach a terminal state. Message-local
// failures land in the report, never in the returned error.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	runID := uuid.NewString()
	log := p.log.With().Str("run_id", runID).Str("mode", string(p.opts.Mode)).Logger()
	log.Info().
		Str("chat", p.opts.Chat.String()).
		Int("workers", p.opts.Workers).
		Int("history_limit", p.opts.HistoryLimit).
		Msg("pipeline started")

	results := newWriteResult[data.MatchRecord](p.opts.Mode == ModeLive)
	messages := make(chan source.Message)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		switch p.opts.Mode {
		case ModeLive:
			return p.fetchLive(gctx, messages, log)
		case ModeHistorical:
			return p.fetchHistory(gctx, messages, results, log)
		default:
			close(messages)
			return fmt.Errorf("unknown mode %q", p.opts.Mode)
		}
	})

	for i := 0; i < p.opts.Workers; i++ {
		worker := i + 1
		g.Go(func() error {
			wlog := log.With().Int("worker", worker).Logger()
			wlog.Debug().Msg("worker started")
			for msg := range messages {
				p.processMessage(context.WithoutCancel(gctx), msg, results, wlog)
			}
			wlog.Debug().Msg("worker finished")
			return nil
		})
	}

	err := g.Wait()
	report := Report{
		RunID:    runID,
		Records:  results.writes,
		Failures: results.failures,
		Outcomes: results.outcomes,
	}
	log.Info().
		Int("retained", report.Outcomes[metrics.OutcomeRetained]).
		Int("cleaned", report.Outcomes[metrics.OutcomeCleaned]).
		Int("failed", report.Outcomes[metrics.OutcomeFailed]).
		Int("no_photo", report.Outcomes[metrics.OutcomeNoPhoto]).
		Msg("pipeline finished")
	return report, err
}

func forwardChan[T any](ctx context.Context, in <-chan T, outs ...chan<- T) {
	defer func() {
		for _, out := range outs {
			close(out)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-in:
			if !ok {
				return
			}
			for _, out := range outs {
				select {
				case out <- res:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func messageKey(msg source.Message) string {
	return fmt.Sprintf("%d/%d", msg.ChatID, msg.ID)
}

func (r *writeResult[T]) addWrite(key string, data T) {
	if r.countOnly {
		return
	}
	r.mu.Lock()
	r.writes[key] = data
	r.mu.Unlock()
}

func (r *writeResult[T]) addFailure(key string, err error) {
	if r.countOnly {
		return
	}
	r.mu.Lock()
	r.failures[key] = err
	r.mu.Unlock()
}

func (r *writeResult[T]) addOutcome(outcome string) {
	r.mu.Lock()
	r.outcomes[outcome]++
	r.mu.Unlock()
}
