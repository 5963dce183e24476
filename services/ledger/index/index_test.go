package index

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"deployledger/pkg/deployment"
)

func TestRowRecordRoundTrip(t *testing.T) {
	rec := deployment.Record{
		Address:     common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
		Name:        "MyToken",
		BlockNumber: 12,
		Timestamp:   1700000000,
		Deployer:    common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
		ChainID:     11155111,
	}
	row := rowFromRecord(rec)
	if row.ContractAddress != "0x5FbDB2315678afecb367f032d93F642f64180aa3" {
		t.Fatalf("address should be checksummed, got %s", row.ContractAddress)
	}
	if got := row.Record(); got != rec {
		t.Fatalf("Record() = %+v, want %+v", got, rec)
	}
}

func TestChangeDetails(t *testing.T) {
	base := Row{ChainID: 1, ContractName: "MyToken", ContractAddress: "0xA", BlockNumber: 1, Timestamp: 10, Deployer: "0xD"}

	tests := []struct {
		name        string
		previous    *Row
		next        Row
		wantChanged bool
		wantPrev    bool
	}{
		{name: "first index", previous: nil, next: base, wantChanged: true},
		{name: "unchanged", previous: &base, next: base, wantChanged: false},
		{name: "redeployed", previous: &base, next: Row{ChainID: 1, ContractName: "MyToken", ContractAddress: "0xB", BlockNumber: 2, Timestamp: 20, Deployer: "0xD"}, wantChanged: true, wantPrev: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			details, changed := changeDetails(tt.previous, tt.next)
			if changed != tt.wantChanged {
				t.Fatalf("changed = %v, want %v", changed, tt.wantChanged)
			}
			if details["contract_address"] != tt.next.ContractAddress {
				t.Fatalf("details missing current address: %v", details)
			}
			if _, ok := details["previous_address"]; ok != tt.wantPrev {
				t.Fatalf("previous_address present = %v, want %v", ok, tt.wantPrev)
			}
		})
	}
}

func TestNewRequiresHandles(t *testing.T) {
	if _, err := New(nil, nil, zerolog.Nop()); err == nil {
		t.Fatalf("expected error without pool")
	}
}
