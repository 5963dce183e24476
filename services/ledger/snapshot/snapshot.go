package snapshot

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"deployledger/pkg/deployment"
	"deployledger/services/ledger"
)

const (
	manifestFileName = "manifest.yaml"
	recordsTarPrefix = "records"
	maxEntrySize     = 16 << 20
)

// CreateConfig configures snapshot creation.
type CreateConfig struct {
	Root   string
	Output string
	Signer *Signer
	FS     ledger.FileSystem
	Logger zerolog.Logger
	Now    func() time.Time
}

// RestoreConfig configures snapshot restore.
type RestoreConfig struct {
	Archive string
	Root    string
	Signer  *Signer
	FS      ledger.FileSystem
	Logger  zerolog.Logger
}

// Create packs every canonical record under Root into a signed tar.zst archive.
func Create(ctx context.Context, cfg CreateConfig) (*Manifest, error) {
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, fmt.Errorf("%w: deployments root is required", deployment.ErrInvalidPath)
	}
	if cfg.Output == "" {
		return nil, errors.New("output path is required")
	}
	if cfg.Signer == nil {
		return nil, errors.New("signer is required")
	}
	if cfg.FS == nil {
		cfg.FS = ledger.OSFileSystem{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	entries, contents, err := collectRecords(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.New("no records found to snapshot")
	}

	manifest := &Manifest{
		Version:          manifestVersion,
		CreatedAt:        cfg.Now().UTC().Truncate(time.Second),
		Signer:           cfg.Signer.Recipient(),
		SigningPublicKey: cfg.Signer.PublicKeyBase64(),
		Records:          entries,
	}
	payload, err := manifest.SigningBytes()
	if err != nil {
		return nil, fmt.Errorf("marshal manifest for signing: %w", err)
	}
	if manifest.Signature, err = cfg.Signer.Sign(payload); err != nil {
		return nil, fmt.Errorf("sign manifest: %w", err)
	}
	manifestBytes, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}

	if err := writeArchive(cfg.Output, manifestBytes, manifest.CreatedAt, entries, contents); err != nil {
		return nil, err
	}
	cfg.Logger.Info().Str("output", cfg.Output).Int("records", len(entries)).Msg("wrote snapshot")
	return manifest, nil
}

func collectRecords(ctx context.Context, cfg CreateConfig) ([]ManifestEntry, map[string][]byte, error) {
	var entries []ManifestEntry
	contents := map[string][]byte{}

	for _, artifact := range ledger.NewScanner(cfg.FS, cfg.Logger).Scan(cfg.Root, deployment.AnyChain) {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		data, err := cfg.FS.ReadFile(artifact.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("read %q: %w", artifact.Path, err)
		}
		name := ledger.NameFromPath(artifact.Path)
		rec, ok := ledger.Parse(data, name)
		if !ok {
			cfg.Logger.Debug().Str("path", artifact.Path).Msg("skipping non-record file")
			continue
		}
		if rec.ChainID == deployment.AnyChain {
			rec.ChainID = artifact.ChainID
		}

		rel, err := filepath.Rel(cfg.Root, artifact.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("relative path for %q: %w", artifact.Path, err)
		}
		rel = filepath.ToSlash(rel)
		if rel != recordPath(rec.ChainID, name) {
			cfg.Logger.Debug().Str("path", artifact.Path).Msg("skipping record outside the canonical layout")
			continue
		}

		sum := sha256.Sum256(data)
		entries = append(entries, ManifestEntry{
			Path:     rel,
			ChainID:  uint64(rec.ChainID),
			Contract: name,
			Address:  rec.Address.Hex(),
			Size:     int64(len(data)),
			SHA256:   hex.EncodeToString(sum[:]),
		})
		contents[rel] = data
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
	return entries, contents, nil
}

func recordPath(chain deployment.ChainID, name string) string {
	return path.Join(chain.String(), name+ledger.BroadcastExt)
}

func writeArchive(output string, manifest []byte, modTime time.Time, entries []ManifestEntry, contents map[string][]byte) error {
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer file.Close()

	encoder, err := zstd.NewWriter(file)
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	tw := tar.NewWriter(encoder)

	write := func(name string, data []byte) error {
		header := &tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(data)),
			ModTime:  modTime,
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("write header for %q: %w", name, err)
		}
		if _, err := tw.Write(data); err != nil {
			return fmt.Errorf("write %q: %w", name, err)
		}
		return nil
	}

	if err := write(manifestFileName, manifest); err != nil {
		return err
	}
	for _, entry := range entries {
		if err := write(path.Join(recordsTarPrefix, entry.Path), contents[entry.Path]); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("close zstd: %w", err)
	}
	return file.Close()
}

// Restore verifies a snapshot and writes its records into Root. Nothing is
// written unless the signature and every record checksum verify.
func Restore(ctx context.Context, cfg RestoreConfig) (*Manifest, error) {
	if cfg.Archive == "" {
		return nil, errors.New("snapshot file is required")
	}
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, fmt.Errorf("%w: deployments root is required", deployment.ErrInvalidPath)
	}
	if cfg.Signer == nil {
		return nil, errors.New("signer is required")
	}
	if cfg.FS == nil {
		cfg.FS = ledger.OSFileSystem{}
	}

	manifestBytes, files, err := readArchive(ctx, cfg.Archive)
	if err != nil {
		return nil, err
	}
	if len(manifestBytes) == 0 {
		return nil, errors.New("snapshot missing manifest.yaml")
	}

	var manifest Manifest
	if err := yaml.Unmarshal(manifestBytes, &manifest); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if manifest.Version != manifestVersion {
		return nil, fmt.Errorf("unsupported manifest version %q", manifest.Version)
	}
	if manifest.Signature == "" {
		return nil, errors.New("manifest missing signature")
	}
	payload, err := manifest.SigningBytes()
	if err != nil {
		return nil, fmt.Errorf("marshal manifest for verification: %w", err)
	}
	if err := cfg.Signer.Verify(payload, manifest.Signature, manifest.SigningPublicKey); err != nil {
		return nil, fmt.Errorf("verify manifest signature: %w", err)
	}

	for _, entry := range manifest.Records {
		if err := validateEntry(entry, files[path.Join(recordsTarPrefix, entry.Path)]); err != nil {
			return nil, err
		}
	}

	for _, entry := range manifest.Records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		target := filepath.Join(cfg.Root, filepath.FromSlash(entry.Path))
		if err := ledger.WriteFileAtomic(cfg.FS, target, files[path.Join(recordsTarPrefix, entry.Path)]); err != nil {
			return nil, err
		}
	}
	cfg.Logger.Info().
		Str("archive", cfg.Archive).
		Time("created_at", manifest.CreatedAt).
		Int("records", len(manifest.Records)).
		Msg("restored snapshot")
	return &manifest, nil
}

func readArchive(ctx context.Context, archive string) ([]byte, map[string][]byte, error) {
	file, err := os.Open(archive)
	if err != nil {
		return nil, nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	decoder, err := zstd.NewReader(file)
	if err != nil {
		return nil, nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer decoder.Close()

	var manifest []byte
	files := map[string][]byte{}
	tr := tar.NewReader(decoder)
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read tar entry: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		if header.Size > maxEntrySize {
			return nil, nil, fmt.Errorf("entry %q exceeds %d bytes", header.Name, maxEntrySize)
		}
		data, err := io.ReadAll(io.LimitReader(tr, maxEntrySize))
		if err != nil {
			return nil, nil, fmt.Errorf("read %q: %w", header.Name, err)
		}
		if header.Name == manifestFileName {
			manifest = data
			continue
		}
		files[header.Name] = data
	}
	return manifest, files, nil
}

func validateEntry(entry ManifestEntry, data []byte) error {
	if err := ledger.ValidateName(entry.Contract); err != nil {
		return err
	}
	if entry.Path != recordPath(deployment.ChainID(entry.ChainID), entry.Contract) {
		return fmt.Errorf("%w: entry path %q does not match %d/%s", deployment.ErrInvalidPath, entry.Path, entry.ChainID, entry.Contract)
	}
	if data == nil {
		return fmt.Errorf("record %q missing from archive", entry.Path)
	}
	if int64(len(data)) != entry.Size {
		return fmt.Errorf("size mismatch for %q: expected %d got %d", entry.Path, entry.Size, len(data))
	}
	sum := sha256.Sum256(data)
	if !strings.EqualFold(hex.EncodeToString(sum[:]), entry.SHA256) {
		return fmt.Errorf("sha256 mismatch for %q", entry.Path)
	}
	rec, ok := ledger.Parse(data, entry.Contract)
	if !ok || !strings.EqualFold(rec.Address.Hex(), entry.Address) {
		return fmt.Errorf("%w: %q is not a record for %s", deployment.ErrInvalidRecord, entry.Path, entry.Contract)
	}
	return nil
}
