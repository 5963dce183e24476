package ledger

import (
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"deployledger/pkg/deployment"
)

const (
	// MaxScanDepth bounds recursion below the root: chain-id/run/file layouts
	// sit at most three path components deep.
	MaxScanDepth = 3

	// BroadcastExt is the serialization extension of broadcast logs and canonical records.
	BroadcastExt = ".json"

	// DryRunSegment marks simulated runs whose transactions were never submitted.
	DryRunSegment = "dry-run"
)

// Scanner enumerates candidate broadcast-log files under a root directory.
type Scanner struct {
	fs     FileSystem
	logger zerolog.Logger
}

// NewScanner returns a Scanner reading through fsys. A nil fsys uses the host filesystem.
func NewScanner(fsys FileSystem, logger zerolog.Logger) *Scanner {
	if fsys == nil {
		fsys = OSFileSystem{}
	}
	return &Scanner{fs: fsys, logger: logger}
}

// Scan returns every candidate file under root. When filter is non-zero a
// candidate must also carry a path segment equal to the decimal chain id.
// A missing or unreadable root yields an empty result.
func (s *Scanner) Scan(root string, filter deployment.ChainID) []deployment.BroadcastArtifact {
	var out []deployment.BroadcastArtifact
	s.walk(root, nil, filter, &out)
	return out
}

func (s *Scanner) walk(dir string, segments []string, filter deployment.ChainID, out *[]deployment.BroadcastArtifact) {
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		s.logger.Debug().Err(err).Str("dir", dir).Msg("skip unreadable directory")
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		rel := append(segments[:len(segments):len(segments)], name)
		path := filepath.Join(dir, name)

		if entry.IsDir() {
			if len(rel) < MaxScanDepth {
				s.walk(path, rel, filter, out)
			}
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}
		if !isCandidate(rel, filter) {
			continue
		}
		*out = append(*out, deployment.BroadcastArtifact{
			Path:    path,
			ChainID: chainFromSegments(rel[:len(rel)-1]),
		})
	}
}

// isCandidate applies the extension, dry-run and network filters to a
// root-relative path split into segments.
func isCandidate(segments []string, filter deployment.ChainID) bool {
	if len(segments) == 0 {
		return false
	}
	if !strings.HasSuffix(segments[len(segments)-1], BroadcastExt) {
		return false
	}

	wanted := filter.String()
	matched := filter == deployment.AnyChain
	for _, seg := range segments {
		if seg == DryRunSegment {
			return false
		}
		if seg == wanted {
			matched = true
		}
	}
	return matched
}

// chainFromSegments returns the deepest all-decimal directory segment as a chain id.
func chainFromSegments(dirs []string) deployment.ChainID {
	for i := len(dirs) - 1; i >= 0; i-- {
		if !isDecimal(dirs[i]) {
			continue
		}
		if id, err := deployment.ParseChainID(dirs[i]); err == nil {
			return id
		}
	}
	return deployment.AnyChain
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
