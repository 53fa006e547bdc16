package ledger

import (
	"context"

	"github.com/stockledger/backend/internal/domain/ledger"
)

// TransactionScope runs ledger mutations inside one database transaction.
// If fn returns an error the transaction is rolled back.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes repositories bound to the current transaction
type TransactionalRepositories interface {
	ItemRepo() ledger.ItemRepository
}

// NoOpTransactionScope runs fn directly against the given repository.
// Used in tests and for stores without transactions.
type NoOpTransactionScope struct {
	itemRepo ledger.ItemRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope
func NewNoOpTransactionScope(itemRepo ledger.ItemRepository) *NoOpTransactionScope {
	return &NoOpTransactionScope{itemRepo: itemRepo}
}

// Execute runs the function without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// ItemRepo returns the item repository
func (s *NoOpTransactionScope) ItemRepo() ledger.ItemRepository {
	return s.itemRepo
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
