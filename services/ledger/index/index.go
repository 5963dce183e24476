package index

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"deployledger/pkg/db"
	"deployledger/pkg/db/migrations"
	"deployledger/pkg/deployment"
)

const (
	auditActor       = "ledger"
	auditActionSaved = "deployment_saved"
	auditActionSync  = "deployment_synced"
)

// Row is one indexed deployment as stored in the deployments table.
type Row struct {
	ChainID         int64     `db:"chain_id" json:"chain_id"`
	ContractName    string    `db:"contract_name" json:"contract_name"`
	ContractAddress string    `db:"contract_address" json:"contract_address"`
	BlockNumber     int64     `db:"block_number" json:"block_number"`
	Timestamp       int64     `db:"timestamp" json:"timestamp"`
	Deployer        string    `db:"deployer" json:"deployer"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Record converts the row back into a deployment record.
func (r Row) Record() deployment.Record {
	return deployment.Record{
		Address:     common.HexToAddress(r.ContractAddress),
		Name:        r.ContractName,
		BlockNumber: uint64(r.BlockNumber),
		Timestamp:   uint64(r.Timestamp),
		Deployer:    common.HexToAddress(r.Deployer),
		ChainID:     deployment.ChainID(r.ChainID),
	}
}

func rowFromRecord(rec deployment.Record) Row {
	return Row{
		ChainID:         int64(rec.ChainID),
		ContractName:    rec.Name,
		ContractAddress: rec.Address.Hex(),
		BlockNumber:     int64(rec.BlockNumber),
		Timestamp:       int64(rec.Timestamp),
		Deployer:        rec.Deployer.Hex(),
	}
}

// Store indexes canonical records in Postgres and keeps an audit trail of
// every change it observes.
type Store struct {
	pool   *pgxpool.Pool
	orm    *gorm.DB
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Store. The ORM handle is used for audit rows only.
func New(pool *pgxpool.Pool, orm *gorm.DB, logger zerolog.Logger) (*Store, error) {
	if pool == nil {
		return nil, errors.New("database pool is required")
	}
	if orm == nil {
		return nil, errors.New("orm handle is required")
	}
	return &Store{pool: pool, orm: orm, logger: logger, now: time.Now}, nil
}

// Record upserts rec. It satisfies ledger.Recorder.
func (s *Store) Record(ctx context.Context, rec deployment.Record, _ []byte) error {
	return s.upsert(ctx, rec, auditActionSaved)
}

func (s *Store) upsert(ctx context.Context, rec deployment.Record, action string) error {
	previous, err := s.current(ctx, rec.ChainID, rec.Name)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("load indexed %s: %w", rec.Name, err)
	}

	row := rowFromRecord(rec)
	_, err = db.Exec(ctx, s.pool, `
INSERT INTO deployments (chain_id, contract_name, contract_address, block_number, "timestamp", deployer, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (chain_id, contract_name) DO UPDATE SET
	contract_address = EXCLUDED.contract_address,
	block_number = EXCLUDED.block_number,
	"timestamp" = EXCLUDED."timestamp",
	deployer = EXCLUDED.deployer,
	updated_at = now()
`, row.ChainID, row.ContractName, row.ContractAddress, row.BlockNumber, row.Timestamp, row.Deployer)
	if err != nil {
		return fmt.Errorf("index %s: %w", rec.Name, err)
	}

	details, changed := changeDetails(previous, row)
	if !changed {
		return nil
	}
	audit := migrations.Audit{
		ID:      uuid.New(),
		Actor:   auditActor,
		Action:  action,
		Obj:     fmt.Sprintf("%d/%s", row.ChainID, row.ContractName),
		Details: details,
		At:      s.now().UTC(),
	}
	if err := s.orm.WithContext(ctx).Create(&audit).Error; err != nil {
		return fmt.Errorf("audit %s: %w", rec.Name, err)
	}
	s.logger.Debug().Str("contract", rec.Name).Int64("chain_id", row.ChainID).Str("action", action).Msg("indexed deployment")
	return nil
}

func (s *Store) current(ctx context.Context, chain deployment.ChainID, name string) (*Row, error) {
	var row Row
	err := db.Get(ctx, s.pool, &row, `
SELECT chain_id, contract_name, contract_address, block_number, "timestamp", deployer, updated_at
FROM deployments
WHERE chain_id = $1 AND contract_name = $2
`, int64(chain), name)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// List returns the indexed rows for name across every chain, or every row
// when name is empty. Rows are ordered by chain then name.
func (s *Store) List(ctx context.Context, name string) ([]Row, error) {
	var rows []Row
	err := db.Select(ctx, s.pool, &rows, `
SELECT chain_id, contract_name, contract_address, block_number, "timestamp", deployer, updated_at
FROM deployments
WHERE $1 = '' OR contract_name = $1
ORDER BY chain_id, contract_name
`, name)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Sync indexes every record yielded by records and returns how many were
// written. It stops at the first failure or when ctx is cancelled.
func (s *Store) Sync(ctx context.Context, records iter.Seq[deployment.Record]) (int, error) {
	count := 0
	for rec := range records {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if err := s.upsert(ctx, rec, auditActionSync); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// changeDetails describes how next differs from previous. It reports false
// when nothing observable changed.
func changeDetails(previous *Row, next Row) (map[string]any, bool) {
	details := map[string]any{
		"chain_id":         next.ChainID,
		"contract_name":    next.ContractName,
		"contract_address": next.ContractAddress,
		"block_number":     next.BlockNumber,
	}
	if previous == nil {
		return details, true
	}
	if previous.ContractAddress == next.ContractAddress &&
		previous.BlockNumber == next.BlockNumber &&
		previous.Timestamp == next.Timestamp &&
		previous.Deployer == next.Deployer {
		return details, false
	}
	details["previous_address"] = previous.ContractAddress
	details["previous_block_number"] = previous.BlockNumber
	return details, true
}
