package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"

	"paperboy/pkg/domain"
	"paperboy/pkg/serrors"
)

// policyRow is the database representation of a domain policy.
type policyRow struct {
	ID            int64  `db:"id" goqu:"skipinsert,skipupdate"`
	Domain        string `db:"domain"`
	Whitelisted   bool   `db:"whitelisted"`
	PaywallBypass bool   `db:"paywall_bypass"`
	UsageCount    int    `db:"usage_count"`
	CreatedAt     int64  `db:"created_at"`
	UpdatedAt     int64  `db:"updated_at"`
}

func (r policyRow) toDomain() domain.DomainPolicy {
	return domain.DomainPolicy{
		Domain:        r.Domain,
		Whitelisted:   r.Whitelisted,
		PaywallBypass: r.PaywallBypass,
		UsageCount:    r.UsageCount,
		CreatedAt:     time.Unix(r.CreatedAt, 0).UTC(),
		UpdatedAt:     time.Unix(r.UpdatedAt, 0).UTC(),
	}
}

// Policy returns the stored record for the given domain name, or nil when the
// domain has never been stored.
func (s *Store) Policy(ctx context.Context, name string) (*domain.DomainPolicy, error) {
	var row policyRow
	found, err := s.builder.From(policiesTable).
		Prepared(true).
		Where(goqu.C("domain").Eq(name)).
		ScanStructContext(ctx, &row)
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrStorage, err, "could not query policy")
	}
	if !found {
		return nil, nil //nolint: nilnil // absence is not an error at this layer
	}

	p := row.toDomain()

	return &p, nil
}

// StorePolicy inserts the record, or overwrites all mutable fields when the
// domain already exists (last-writer-wins). created_at of an existing row is
// preserved.
func (s *Store) StorePolicy(ctx context.Context, p domain.DomainPolicy) error {
	now := time.Now().UTC().Unix()
	row := policyRow{
		Domain:        p.Domain,
		Whitelisted:   p.Whitelisted,
		PaywallBypass: p.PaywallBypass,
		UsageCount:    p.UsageCount,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err := s.builder.Insert(policiesTable).
		Prepared(true).
		Rows(row).
		OnConflict(goqu.DoUpdate("domain", goqu.Record{
			"whitelisted":    row.Whitelisted,
			"paywall_bypass": row.PaywallBypass,
			"usage_count":    row.UsageCount,
			"updated_at":     row.UpdatedAt,
		})).
		Executor().ExecContext(ctx)
	if err != nil {
		return serrors.Wrap(serrors.ErrStorage, err, "could not store policy")
	}

	return nil
}

// RemovePolicy deletes the record for the given domain name and reports
// whether it existed.
func (s *Store) RemovePolicy(ctx context.Context, name string) (bool, error) {
	res, err := s.builder.Delete(policiesTable).
		Prepared(true).
		Where(goqu.C("domain").Eq(name)).
		Executor().ExecContext(ctx)
	if err != nil {
		return false, serrors.Wrap(serrors.ErrStorage, err, "could not remove policy")
	}

	affected, err := res.RowsAffected()
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, serrors.Wrap(serrors.ErrStorage, err, "could not read affected rows")
	}

	return affected > 0, nil
}

// Policies lists all stored records in insertion order.
func (s *Store) Policies(ctx context.Context) ([]domain.DomainPolicy, error) {
	var rows []policyRow
	err := s.builder.From(policiesTable).
		Prepared(true).
		Order(goqu.C("id").Asc()).
		ScanStructsContext(ctx, &rows)
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrStorage, err, "could not list policies")
	}

	policies := make([]domain.DomainPolicy, 0, len(rows))
	for _, row := range rows {
		policies = append(policies, row.toDomain())
	}

	return policies, nil
}
