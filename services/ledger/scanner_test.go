package ledger

import (
	"path/filepath"
	"slices"
	"sort"
	"testing"

	"github.com/rs/zerolog"

	"deployledger/pkg/deployment"
)

func scanRel(t *testing.T, root string, filter deployment.ChainID) []string {
	t.Helper()
	var got []string
	for _, a := range NewScanner(nil, zerolog.Nop()).Scan(root, filter) {
		rel, err := filepath.Rel(root, a.Path)
		if err != nil {
			t.Fatalf("rel: %v", err)
		}
		got = append(got, filepath.ToSlash(rel))
	}
	sort.Strings(got)
	return got
}

func TestScanFilters(t *testing.T) {
	root := t.TempDir()
	write(t, root, "Deploy.s.sol/1/run-1.json", "{}")
	write(t, root, "Deploy.s.sol/1/run-latest.json", "{}")
	write(t, root, "Deploy.s.sol/1/notes.txt", "ignored extension")
	write(t, root, "Deploy.s.sol/10/run-1.json", "{}")
	write(t, root, "Deploy.s.sol/31337/dry-run/run-1.json", "{}")
	write(t, root, "dry-run/31337/run-1.json", "{}")
	write(t, root, "Deploy.s.sol/1/nested/too/deep.json", "{}")
	write(t, root, "top.json", "{}")

	tests := []struct {
		name   string
		filter deployment.ChainID
		want   []string
	}{
		{
			name:   "any chain",
			filter: deployment.AnyChain,
			want: []string{
				"Deploy.s.sol/1/run-1.json",
				"Deploy.s.sol/1/run-latest.json",
				"Deploy.s.sol/10/run-1.json",
				"top.json",
			},
		},
		{
			name:   "exact segment match",
			filter: 1,
			want: []string{
				"Deploy.s.sol/1/run-1.json",
				"Deploy.s.sol/1/run-latest.json",
			},
		},
		{
			name:   "dry-run never visible",
			filter: 31337,
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scanRel(t, root, tt.filter)
			if !slices.Equal(got, tt.want) {
				t.Fatalf("got=%v want=%v", got, tt.want)
			}
		})
	}
}

func TestScanMissingRootIsEmpty(t *testing.T) {
	got := NewScanner(nil, zerolog.Nop()).Scan(filepath.Join(t.TempDir(), "absent"), 1)
	if len(got) != 0 {
		t.Fatalf("expected no artifacts, got %v", got)
	}
}

func TestScanRootIsFile(t *testing.T) {
	file := write(t, t.TempDir(), "run.json", "{}")
	if got := NewScanner(nil, zerolog.Nop()).Scan(file, 0); len(got) != 0 {
		t.Fatalf("expected no artifacts for a file root, got %v", got)
	}
}

func TestScanInfersChainFromPath(t *testing.T) {
	root := t.TempDir()
	write(t, root, "Deploy.s.sol/8453/run-1.json", "{}")
	write(t, root, "misc/run-1.json", "{}")

	byRel := map[string]deployment.ChainID{}
	for _, a := range NewScanner(nil, zerolog.Nop()).Scan(root, 0) {
		rel, _ := filepath.Rel(root, a.Path)
		byRel[filepath.ToSlash(rel)] = a.ChainID
	}
	if byRel["Deploy.s.sol/8453/run-1.json"] != 8453 {
		t.Fatalf("chain not inferred: %v", byRel)
	}
	if byRel["misc/run-1.json"] != deployment.AnyChain {
		t.Fatalf("expected zero chain for path without id: %v", byRel)
	}
}

func TestIsCandidate(t *testing.T) {
	tests := []struct {
		segments []string
		filter   deployment.ChainID
		want     bool
	}{
		{[]string{"1", "run.json"}, 1, true},
		{[]string{"11", "run.json"}, 1, false},
		{[]string{"1", "run.json.bak"}, 0, false},
		{[]string{"1", "dry-run", "run.json"}, 0, false},
		{[]string{"1", "dry-run-notes", "run.json"}, 1, true},
		{nil, 0, false},
	}
	for _, tt := range tests {
		if got := isCandidate(tt.segments, tt.filter); got != tt.want {
			t.Fatalf("isCandidate(%v, %d) = %v, want %v", tt.segments, tt.filter, got, tt.want)
		}
	}
}
