package members

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no member matches a lookup.
var ErrNotFound = errors.New("member not found")

// Member is one row of the insurance member table.
type Member struct {
	ID              string `json:"member_id"`
	Name            string `json:"member_name"`
	PolicyType      string `json:"policy_type"`
	PolicyNumber    string `json:"policy_number"`
	LastClaimType   string `json:"last_claim_type"`
	LastClaimAmount int    `json:"last_claim_amount"`
}

// Store is the read side of the member table.
type Store interface {
	// FindByName returns members whose name contains name, ignoring case.
	FindByName(ctx context.Context, name string) ([]Member, error)

	// FindByID returns the member with the given id or ErrNotFound.
	FindByID(ctx context.Context, id string) (Member, error)

	// List returns all members ordered by id.
	List(ctx context.Context) ([]Member, error)
}

// SeedMembers returns the demo rows both stores are seeded with.
func SeedMembers() []Member {
	return []Member{
		{ID: "M001", Name: "John Doe", PolicyType: "Health", PolicyNumber: "P001", LastClaimType: "Accident", LastClaimAmount: 5000},
		{ID: "M002", Name: "Jane Smith", PolicyType: "Life", PolicyNumber: "P002", LastClaimType: "Critical Illness", LastClaimAmount: 2000},
		{ID: "M003", Name: "Alice Johnson", PolicyType: "Auto", PolicyNumber: "P003", LastClaimType: "Collision", LastClaimAmount: 1500},
		{ID: "M004", Name: "Bob Brown", PolicyType: "Home", PolicyNumber: "P004", LastClaimType: "Fire", LastClaimAmount: 10000},
		{ID: "M005", Name: "Charlie Davis", PolicyType: "Travel", PolicyNumber: "P005", LastClaimType: "Trip Cancellation", LastClaimAmount: 3000},
	}
}
