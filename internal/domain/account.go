package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a balance-holding entity owned by a single principal.
// Version is bumped by exactly one on every committed update.
type Account struct {
	ID         int64
	HolderName string
	OwnerID    string
	Balance    decimal.Decimal
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (a *Account) OwnedBy(ownerID string) bool {
	return a.OwnerID == ownerID
}

// Clone returns a detached copy so stores never hand out shared state.
func (a *Account) Clone() *Account {
	c := *a
	return &c
}
