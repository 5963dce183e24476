package ledger

import (
	"context"
	"iter"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"deployledger/pkg/deployment"
)

// DefaultListLimit is the cap historically applied to deployment listings.
// All itself is uncapped; pass this to Collect for the old behaviour.
const DefaultListLimit = 100

const (
	outcomeFound    = "found"
	outcomeNotFound = "not_found"
	outcomeCanceled = "canceled"
)

// Resolver answers deployment queries by rescanning the broadcast tree on every call.
type Resolver struct {
	fs      FileSystem
	scanner *Scanner
	logger  zerolog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// ResolverConfig configures a Resolver. Every field is optional.
type ResolverConfig struct {
	FS      FileSystem
	Logger  *zerolog.Logger
	Metrics *Metrics
}

// NewResolver builds a Resolver from cfg.
func NewResolver(cfg ResolverConfig) *Resolver {
	fsys := cfg.FS
	if fsys == nil {
		fsys = OSFileSystem{}
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Resolver{
		fs:      fsys,
		scanner: NewScanner(fsys, logger),
		logger:  logger,
		metrics: cfg.Metrics,
		tracer:  otel.Tracer("deployledger/services/ledger"),
	}
}

// MostRecent returns the deployment of name on chain with the greatest
// timestamp. Ties keep whichever record was scanned first. When nothing
// matches the error is a *deployment.NotFoundError.
func (r *Resolver) MostRecent(ctx context.Context, name string, chain deployment.ChainID, root string) (deployment.Record, error) {
	ctx, span := r.tracer.Start(ctx, "ledger.MostRecent", trace.WithAttributes(
		attribute.String("contract", name),
		attribute.Int64("chain_id", int64(chain)),
	))
	defer span.End()

	var (
		best  deployment.Record
		found bool
	)
	for rec, err := range r.matches(ctx, name, chain, root) {
		if err != nil {
			r.metrics.resolved(outcomeCanceled)
			span.RecordError(err)
			return deployment.Record{}, err
		}
		if !found || rec.NewerThan(best) {
			best = rec
			found = true
		}
	}

	if !found {
		r.metrics.resolved(outcomeNotFound)
		return deployment.Record{}, &deployment.NotFoundError{Name: name, ChainID: chain}
	}

	r.metrics.resolved(outcomeFound)
	r.logger.Debug().
		Str("contract", name).
		Stringer("chain_id", chain).
		Str("address", best.Address.Hex()).
		Uint64("timestamp", best.Timestamp).
		Msg("resolved deployment")
	return best, nil
}

// Exists reports whether MostRecent would succeed.
func (r *Resolver) Exists(ctx context.Context, name string, chain deployment.ChainID, root string) bool {
	_, err := r.MostRecent(ctx, name, chain, root)
	return err == nil
}

// All yields every deployment of name across all networks, in scan order,
// without deduplication. The sequence is lazy and restartable: each range
// over it rescans root. It stops early when ctx is done.
func (r *Resolver) All(ctx context.Context, name string, root string) iter.Seq[deployment.Record] {
	return func(yield func(deployment.Record) bool) {
		for rec, err := range r.matches(ctx, name, deployment.AnyChain, root) {
			if err != nil {
				return
			}
			if !yield(rec) {
				return
			}
		}
	}
}

// Collect drains seq into a slice holding at most limit records. A limit
// of zero or less collects everything.
func Collect(seq iter.Seq[deployment.Record], limit int) []deployment.Record {
	var out []deployment.Record
	for rec := range seq {
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// matches scans root and yields each parsed record for name. A non-nil
// error is yielded once, when ctx is done, and ends the sequence.
func (r *Resolver) matches(ctx context.Context, name string, chain deployment.ChainID, root string) iter.Seq2[deployment.Record, error] {
	return func(yield func(deployment.Record, error) bool) {
		for _, artifact := range r.scanner.Scan(root, chain) {
			if err := ctx.Err(); err != nil {
				yield(deployment.Record{}, err)
				return
			}

			data, err := r.fs.ReadFile(artifact.Path)
			if err != nil {
				r.metrics.fileScanned(false)
				r.logger.Debug().Err(err).Str("path", artifact.Path).Msg("skip unreadable broadcast file")
				continue
			}

			rec, ok := Parse(data, name)
			r.metrics.fileScanned(ok)
			if !ok {
				continue
			}
			rec = withPathChain(rec, artifact.ChainID)
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// withPathChain assigns the network taken from a file's path to rec. A file
// outside any chain directory keeps the chain its content declares.
func withPathChain(rec deployment.Record, chain deployment.ChainID) deployment.Record {
	if chain != deployment.AnyChain {
		rec.ChainID = chain
	}
	return rec
}
