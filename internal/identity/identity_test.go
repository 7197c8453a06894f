package identity

import (
	"context"
	"testing"
)

func TestStatic_ReplaceAndAll(t *testing.T) {
	s := NewStatic(
		Identity{SenderID: "27820000002", TenantID: "meditest"},
		Identity{SenderID: "27820000001", TenantID: "meditest"},
	)
	all := s.All()
	if len(all) != 2 || all[0].SenderID != "27820000001" || all[1].SenderID != "27820000002" {
		t.Fatalf("All = %+v", all)
	}

	s.Replace([]Identity{{SenderID: "27820000003", TenantID: "acme"}})
	if s.Len() != 1 {
		t.Fatalf("Len = %d after Replace", s.Len())
	}
	if _, err := s.Resolve(context.Background(), "27820000001"); err != ErrNotFound {
		t.Fatalf("replaced sender still resolves: %v", err)
	}
}
