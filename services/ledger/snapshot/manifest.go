package snapshot

import (
	"time"

	"gopkg.in/yaml.v3"
)

const manifestVersion = "1"

// Manifest is the signed index stored at the head of every snapshot.
type Manifest struct {
	Version          string          `yaml:"version"`
	CreatedAt        time.Time       `yaml:"created_at"`
	Signer           string          `yaml:"signer,omitempty"`
	SigningPublicKey string          `yaml:"signing_public_key,omitempty"`
	Signature        string          `yaml:"signature,omitempty"`
	Records          []ManifestEntry `yaml:"records"`
}

// SigningBytes marshals the manifest without its signature.
func (m Manifest) SigningBytes() ([]byte, error) {
	clone := m
	clone.Signature = ""
	return yaml.Marshal(clone)
}

// ManifestEntry describes one canonical record file in the snapshot.
type ManifestEntry struct {
	Path     string `yaml:"path"`
	ChainID  uint64 `yaml:"chain_id"`
	Contract string `yaml:"contract"`
	Address  string `yaml:"address"`
	Size     int64  `yaml:"size"`
	SHA256   string `yaml:"sha256"`
}
