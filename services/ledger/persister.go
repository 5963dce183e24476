package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"deployledger/pkg/deployment"
)

// Notification is the tracking event emitted after a canonical record is written.
type Notification struct {
	ChainID     deployment.ChainID `json:"chain_id"`
	Name        string             `json:"contract_name"`
	Address     common.Address     `json:"contract_address"`
	BlockNumber uint64             `json:"block_number"`
}

// Notifier delivers tracking notifications. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Recorder receives every saved record together with its canonical bytes,
// e.g. to mirror it to object storage or index it in a database.
type Recorder interface {
	Record(ctx context.Context, rec deployment.Record, canonical []byte) error
}

// PersisterConfig wires a Persister. Chain is required.
type PersisterConfig struct {
	FS        FileSystem
	Chain     ChainContext
	Notifier  Notifier
	Recorders []Recorder
	Logger    *zerolog.Logger
	Metrics   *Metrics
}

// Persister writes canonical deployment records to {root}/{chainId}/{name}.json.
type Persister struct {
	fs        FileSystem
	chain     ChainContext
	notifier  Notifier
	recorders []Recorder
	logger    zerolog.Logger
	metrics   *Metrics
}

// NewPersister validates cfg and returns a Persister.
func NewPersister(cfg PersisterConfig) (*Persister, error) {
	if cfg.Chain == nil {
		return nil, errors.New("chain context is required")
	}
	if cfg.FS == nil {
		cfg.FS = OSFileSystem{}
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Persister{
		fs:        cfg.FS,
		chain:     cfg.Chain,
		notifier:  cfg.Notifier,
		recorders: cfg.Recorders,
		logger:    logger,
		metrics:   cfg.Metrics,
	}, nil
}

// canonicalRecord fixes the on-disk field order.
type canonicalRecord struct {
	ContractName    string `json:"contractName"`
	ContractAddress string `json:"contractAddress"`
	BlockNumber     uint64 `json:"blockNumber"`
	Timestamp       uint64 `json:"timestamp"`
	Deployer        string `json:"deployer"`
	ChainID         uint64 `json:"chainId"`
}

// EncodeCanonical renders rec in the canonical record format.
func EncodeCanonical(rec deployment.Record) ([]byte, error) {
	data, err := json.MarshalIndent(canonicalRecord{
		ContractName:    rec.Name,
		ContractAddress: rec.Address.Hex(),
		BlockNumber:     rec.BlockNumber,
		Timestamp:       rec.Timestamp,
		Deployer:        rec.Deployer.Hex(),
		ChainID:         uint64(rec.ChainID),
	}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// CanonicalPath returns the record path for name on chain under root.
func CanonicalPath(root string, chain deployment.ChainID, name string) string {
	return filepath.Join(root, chain.String(), name+BroadcastExt)
}

// Save records name at address as the current deployment on the active
// chain. Any previous record for the same (chain, name) is replaced.
func (p *Persister) Save(ctx context.Context, name string, address common.Address, root string) (deployment.Record, error) {
	if err := ValidateName(name); err != nil {
		return deployment.Record{}, err
	}
	if address == (common.Address{}) {
		return deployment.Record{}, fmt.Errorf("%w: zero contract address", deployment.ErrInvalidRecord)
	}
	if strings.TrimSpace(root) == "" {
		return deployment.Record{}, fmt.Errorf("%w: deployments root is empty", deployment.ErrInvalidPath)
	}
	chain := p.chain.ChainID()
	if chain == deployment.AnyChain {
		return deployment.Record{}, fmt.Errorf("%w: active chain id is 0", deployment.ErrInvalidRecord)
	}
	if err := ctx.Err(); err != nil {
		return deployment.Record{}, err
	}

	rec := deployment.Record{
		Address:     address,
		Name:        name,
		BlockNumber: p.chain.BlockNumber(),
		Timestamp:   p.chain.Timestamp(),
		Deployer:    p.chain.Caller(),
		ChainID:     chain,
	}

	data, err := EncodeCanonical(rec)
	if err != nil {
		return deployment.Record{}, fmt.Errorf("encode record: %w", err)
	}

	path := CanonicalPath(root, rec.ChainID, name)
	if err := WriteFileAtomic(p.fs, path, data); err != nil {
		return deployment.Record{}, err
	}
	p.metrics.saved(rec.ChainID.String())
	p.logger.Info().
		Str("contract", name).
		Stringer("chain_id", rec.ChainID).
		Str("address", address.Hex()).
		Uint64("block", rec.BlockNumber).
		Str("path", path).
		Msg("saved deployment")

	p.notify(ctx, rec)

	var errs []error
	for _, recorder := range p.recorders {
		if err := recorder.Record(ctx, rec, data); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return rec, fmt.Errorf("record %s: %w", name, err)
	}
	return rec, nil
}

// Load reads the canonical record for name on chain back from root.
func (p *Persister) Load(root string, chain deployment.ChainID, name string) (deployment.Record, error) {
	if err := ValidateName(name); err != nil {
		return deployment.Record{}, err
	}
	data, err := p.fs.ReadFile(CanonicalPath(root, chain, name))
	if err != nil {
		return deployment.Record{}, &deployment.NotFoundError{Name: name, ChainID: chain}
	}
	rec, ok := Parse(data, name)
	if !ok {
		return deployment.Record{}, &deployment.NotFoundError{Name: name, ChainID: chain}
	}
	return withPathChain(rec, chain), nil
}

// Records yields every canonical record stored under root, across all
// chains. Files that do not parse as a record named after the file are skipped.
func (p *Persister) Records(root string) iter.Seq[deployment.Record] {
	return func(yield func(deployment.Record) bool) {
		for _, artifact := range NewScanner(p.fs, p.logger).Scan(root, deployment.AnyChain) {
			name := NameFromPath(artifact.Path)
			data, err := p.fs.ReadFile(artifact.Path)
			if err != nil {
				continue
			}
			rec, ok := Parse(data, name)
			if !ok {
				continue
			}
			rec = withPathChain(rec, artifact.ChainID)
			if !yield(rec) {
				return
			}
		}
	}
}

// NameFromPath strips the directory and extension from a record path:
// "deployments/1/MyToken.json" returns "MyToken".
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (p *Persister) notify(ctx context.Context, rec deployment.Record) {
	if p.notifier == nil {
		return
	}
	err := p.notifier.Notify(ctx, Notification{
		ChainID:     rec.ChainID,
		Name:        rec.Name,
		Address:     rec.Address,
		BlockNumber: rec.BlockNumber,
	})
	if err != nil {
		p.metrics.notifyFailed()
		p.logger.Warn().Err(err).Str("contract", rec.Name).Msg("tracking notification failed")
	}
}

// WriteFileAtomic writes data to a temp file beside path and renames it into place.
func WriteFileAtomic(fsys FileSystem, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create record dir: %w", err)
	}

	tmp, err := fsys.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = fsys.Remove(tmpName)
		return fmt.Errorf("write temp record: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		_ = fsys.Remove(tmpName)
		return fmt.Errorf("chmod temp record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = fsys.Remove(tmpName)
		return fmt.Errorf("close temp record: %w", err)
	}
	if err := fsys.Rename(tmpName, path); err != nil {
		_ = fsys.Remove(tmpName)
		return fmt.Errorf("rename record into place: %w", err)
	}
	return nil
}

// ValidateName rejects names that cannot be stored as a single record file.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: contract name is empty", deployment.ErrInvalidRecord)
	case strings.ContainsAny(name, `/\`), name == ".", name == "..":
		return fmt.Errorf("%w: contract name %q is not a valid file name", deployment.ErrInvalidRecord, name)
	}
	return nil
}
