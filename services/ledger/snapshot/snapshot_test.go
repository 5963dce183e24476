package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"filippo.io/age"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"deployledger/services/ledger"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	signer, err := NewSigner(identity.String(), "")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	return signer
}

func seedRecords(t *testing.T, root string) {
	t.Helper()
	chains := []ledger.StaticChain{
		{ID: 1, Block: 100, Time: 1700000000, Account: common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")},
		{ID: 31337, Block: 7, Time: 1700000500},
	}
	for i, chain := range chains {
		p, err := ledger.NewPersister(ledger.PersisterConfig{Chain: chain})
		if err != nil {
			t.Fatalf("NewPersister: %v", err)
		}
		addr := common.BigToAddress(common.Big1).Hex()
		if i == 1 {
			addr = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
		}
		if _, err := p.Save(context.Background(), "MyToken", common.HexToAddress(addr), root); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	// Broadcast logs and stray files are not records.
	if err := os.WriteFile(filepath.Join(root, "1", "notes.json"), []byte(`{"hello":"world"}`), 0o644); err != nil {
		t.Fatalf("write stray file: %v", err)
	}
}

func TestCreateRestoreRoundTrip(t *testing.T) {
	src := t.TempDir()
	seedRecords(t, src)
	signer := newTestSigner(t)
	archive := filepath.Join(t.TempDir(), "out", "ledger.tar.zst")

	created, err := Create(context.Background(), CreateConfig{
		Root:   src,
		Output: archive,
		Signer: signer,
		Logger: zerolog.Nop(),
		Now:    func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(created.Records) != 2 {
		t.Fatalf("expected 2 records, got %+v", created.Records)
	}
	if created.Records[0].Path != "1/MyToken.json" || created.Records[1].Path != "31337/MyToken.json" {
		t.Fatalf("unexpected record order: %+v", created.Records)
	}
	if created.Signer == "" || !strings.HasPrefix(created.Signer, "age1") {
		t.Fatalf("recipient not recorded: %q", created.Signer)
	}

	verifier, err := NewSigner("", signer.PublicKeyBase64())
	if err != nil {
		t.Fatalf("NewSigner(public): %v", err)
	}
	dst := t.TempDir()
	restored, err := Restore(context.Background(), RestoreConfig{Archive: archive, Root: dst, Signer: verifier})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !restored.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("created_at = %v, want %v", restored.CreatedAt, created.CreatedAt)
	}

	for _, entry := range created.Records {
		want, err := os.ReadFile(filepath.Join(src, filepath.FromSlash(entry.Path)))
		if err != nil {
			t.Fatalf("read source: %v", err)
		}
		got, err := os.ReadFile(filepath.Join(dst, filepath.FromSlash(entry.Path)))
		if err != nil {
			t.Fatalf("read restored: %v", err)
		}
		if string(got) != string(want) {
			t.Fatalf("restored %s differs:\n%s\nwant:\n%s", entry.Path, got, want)
		}
	}
	if _, err := os.Stat(filepath.Join(dst, "1", "notes.json")); !os.IsNotExist(err) {
		t.Fatalf("stray file should not be restored, stat err = %v", err)
	}

	rec, err := ledger.NewResolver(ledger.ResolverConfig{}).MostRecent(context.Background(), "MyToken", 31337, dst)
	if err != nil {
		t.Fatalf("MostRecent after restore: %v", err)
	}
	if rec.Address != common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3") {
		t.Fatalf("unexpected restored record %+v", rec)
	}
}

func TestRestoreRejectsForeignSigner(t *testing.T) {
	src := t.TempDir()
	seedRecords(t, src)
	archive := filepath.Join(t.TempDir(), "ledger.tar.zst")
	if _, err := Create(context.Background(), CreateConfig{Root: src, Output: archive, Signer: newTestSigner(t)}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	dst := t.TempDir()
	_, err := Restore(context.Background(), RestoreConfig{Archive: archive, Root: dst, Signer: newTestSigner(t)})
	if err == nil || !strings.Contains(err.Error(), "unexpected key") {
		t.Fatalf("expected signer mismatch, got %v", err)
	}
	entries, _ := os.ReadDir(dst)
	if len(entries) != 0 {
		t.Fatalf("nothing should be written on verification failure")
	}
}

func TestCreateRequiresRecords(t *testing.T) {
	_, err := Create(context.Background(), CreateConfig{
		Root:   t.TempDir(),
		Output: filepath.Join(t.TempDir(), "empty.tar.zst"),
		Signer: newTestSigner(t),
	})
	if err == nil {
		t.Fatalf("expected error for empty deployments root")
	}
}

func TestValidateEntry(t *testing.T) {
	rec, err := ledger.EncodeCanonical(ledgerRecord())
	if err != nil {
		t.Fatalf("EncodeCanonical: %v", err)
	}
	good := entryFor(rec)

	tests := []struct {
		name   string
		mutate func(*ManifestEntry)
		data   []byte
		ok     bool
	}{
		{name: "valid", mutate: func(*ManifestEntry) {}, data: rec, ok: true},
		{name: "traversal", mutate: func(e *ManifestEntry) { e.Path = "../../etc/MyToken.json" }, data: rec},
		{name: "bad name", mutate: func(e *ManifestEntry) { e.Contract = ".."; e.Path = "10/...json" }, data: rec},
		{name: "missing data", mutate: func(*ManifestEntry) {}, data: nil},
		{name: "checksum", mutate: func(e *ManifestEntry) { e.SHA256 = strings.Repeat("0", 64) }, data: rec},
		{name: "address mismatch", mutate: func(e *ManifestEntry) { e.Address = "0x0000000000000000000000000000000000000001" }, data: rec},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := good
			tt.mutate(&entry)
			err := validateEntry(entry, tt.data)
			if (err == nil) != tt.ok {
				t.Fatalf("validateEntry() error = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestSignerKeys(t *testing.T) {
	signer := newTestSigner(t)
	sig, err := signer.Sign([]byte("payload"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := signer.Verify([]byte("payload"), sig, ""); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := signer.Verify([]byte("tampered"), sig, ""); err == nil {
		t.Fatalf("expected verification failure for tampered payload")
	}

	verifyOnly, err := NewSigner("", signer.PublicKeyBase64())
	if err != nil {
		t.Fatalf("NewSigner(public): %v", err)
	}
	if _, err := verifyOnly.Sign([]byte("payload")); err == nil {
		t.Fatalf("verify-only signer should not sign")
	}

	other := newTestSigner(t)
	identity, _ := age.GenerateX25519Identity()
	if _, err := NewSigner(identity.String(), other.PublicKeyBase64()); err == nil {
		t.Fatalf("expected mismatch between secret and public key")
	}
	if _, err := NewSigner("", ""); err == nil {
		t.Fatalf("expected error without keys")
	}
}
