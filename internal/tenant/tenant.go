package tenant

import "errors"

// ErrInvalidTenant is returned when a data-access operation is invoked without
// a usable tenant identifier. The check runs before any storage I/O.
var ErrInvalidTenant = errors.New("invalid tenant id: data access without tenant context is not allowed")

// ID identifies the owning user of a row. Every store operation takes an ID as
// an explicit parameter; there is no default and no way to omit it. The sqlite
// schema has no row-level security, so this parameter plus the WHERE user_id
// filter in every query is the whole isolation mechanism.
type ID int64

// Validate rejects missing (zero) and negative identifiers.
func Validate(id ID) error {
	if id <= 0 {
		return ErrInvalidTenant
	}
	return nil
}
