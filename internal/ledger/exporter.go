package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/portfolio"
	"github.com/newthinker/tradelab/internal/storage/archive"
	"go.uber.org/zap"
)

const summaryFile = "summary.json"

// Exporter is a portfolio sink that persists the trade ledger and a run
// summary under <prefix>/<run id>/
type Exporter struct {
	store   archive.Storage
	formats []Format
	prefix  string
	runID   string
	now     func() time.Time
	logger  *zap.Logger
}

var _ portfolio.Sink = (*Exporter)(nil)

// ExporterOption configures an Exporter
type ExporterOption func(*Exporter)

// WithRunID overrides the generated run id
func WithRunID(id string) ExporterOption {
	return func(e *Exporter) { e.runID = id }
}

// WithPrefix sets the directory runs are written under
func WithPrefix(prefix string) ExporterOption {
	return func(e *Exporter) { e.prefix = prefix }
}

// WithLogger sets the exporter logger
func WithLogger(logger *zap.Logger) ExporterOption {
	return func(e *Exporter) { e.logger = logger }
}

// NewExporter creates a ledger exporter. Formats default to CSV.
func NewExporter(store archive.Storage, formats []Format, opts ...ExporterOption) *Exporter {
	if len(formats) == 0 {
		formats = []Format{FormatCSV}
	}
	e := &Exporter{
		store:   store,
		formats: formats,
		prefix:  "runs",
		runID:   uuid.NewString(),
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Exporter) Name() string { return "ledger" }

// RunID returns the id of the run directory
func (e *Exporter) RunID() string { return e.runID }

// Path returns the artifact path of file within this run
func (e *Exporter) Path(file string) string {
	return path.Join(e.prefix, e.runID, file)
}

// Publish writes one ledger file per format followed by the run summary
func (e *Exporter) Publish(ctx context.Context, state portfolio.State) error {
	records := FromTrades(state.FutureTrades)

	for _, f := range e.formats {
		data, err := Encode(f, records)
		if err != nil {
			return core.WrapError(core.ErrExportFailed, err)
		}
		p := e.Path("ledger" + f.Ext())
		if err := e.store.Write(ctx, p, data); err != nil {
			return core.WrapError(core.ErrExportFailed, fmt.Errorf("writing %s: %w", p, err))
		}
		e.logger.Info("ledger exported",
			zap.String("format", string(f)),
			zap.String("uri", e.store.URI(p)),
			zap.Int("records", len(records)),
		)
	}

	summary, err := json.MarshalIndent(e.summary(state), "", "  ")
	if err != nil {
		return core.WrapError(core.ErrExportFailed, err)
	}
	if err := e.store.Write(ctx, e.Path(summaryFile), summary); err != nil {
		return core.WrapError(core.ErrExportFailed, fmt.Errorf("writing summary: %w", err))
	}
	return nil
}

// RunSummary is the JSON document written next to the ledger
type RunSummary struct {
	RunID       string              `json:"run_id"`
	GeneratedAt time.Time           `json:"generated_at"`
	Trades      int                 `json:"trades"`
	Columns     []string            `json:"columns"`
	Analytics   portfolio.Analytics `json:"analytics"`
}

func (e *Exporter) summary(state portfolio.State) RunSummary {
	return RunSummary{
		RunID:       e.runID,
		GeneratedAt: e.now().UTC(),
		Trades:      len(state.FutureTrades),
		Columns:     Columns,
		Analytics:   portfolio.Analyze(state),
	}
}

// Load reads a ledger file back from storage
func Load(ctx context.Context, store archive.Storage, p string) ([]Record, error) {
	data, err := store.Read(ctx, p)
	if err != nil {
		return nil, err
	}
	f := Format(path.Ext(p))
	if len(f) > 0 {
		f = f[1:]
	}
	return Decode(f, data)
}
