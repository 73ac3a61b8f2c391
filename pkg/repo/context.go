package repo

import "context"

// OperationContext identifies who is performing a repository operation and
// in which tenant.
//
// Every store operation takes an explicit OperationContext instead of
// relying on ambient per-thread state: the principal and tenant travel
// with the call, so concurrent requests for different users never observe
// each other's identity.
//
// Authorization data (group membership, administrator status) is resolved
// by the store through its identity directory at operation time; callers
// only supply the principal name.
type OperationContext struct {
	// Context carries cancellation and deadlines for the operation.
	Context context.Context

	// Principal is the authenticated user performing the operation.
	Principal string

	// Tenant selects the tenant tree the operation applies to.
	Tenant string
}

// NewOperationContext builds an OperationContext for the given principal
// and tenant.
func NewOperationContext(ctx context.Context, principal, tenant string) *OperationContext {
	return &OperationContext{
		Context:   ctx,
		Principal: principal,
		Tenant:    tenant,
	}
}

// Err returns the context cancellation error, tolerating a nil receiver or
// missing inner context (used by tests that don't care about cancellation).
func (c *OperationContext) Err() error {
	if c == nil || c.Context == nil {
		return nil
	}
	return c.Context.Err()
}
