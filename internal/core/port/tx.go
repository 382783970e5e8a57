package port

import "context"

// Repositories bundles the relational repositories participating in a
// transaction. Implementations return copies bound to the active tx.
type Repositories struct {
	Accounts   AccountRepository
	Sessions   SessionRepository
	LoginAudit LoginAuditRepository
}

// TxManager owns transaction boundaries for multi-write use cases. The
// closure receives tx-scoped repositories; any error rolls the whole
// transaction back.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
