package domain

import "time"

// DomainPolicy is the per-domain moderation record. Exactly one policy exists
// per registrable host name.
type DomainPolicy struct {
	// Domain is the registrable host name, e.g. "example.com". It is the
	// unique key of the record.
	Domain string `json:"domain"`

	// Whitelisted reports whether content from this domain may be processed
	// automatically.
	Whitelisted bool `json:"whitelisted"`
	// PaywallBypass reports whether fetching should use the alternate
	// (headless-browser) retrieval path. Consulted at call time on every run.
	PaywallBypass bool `json:"paywallBypass"`
	// UsageCount is the number of successful pipeline runs for this domain.
	// It only increases, and only after a successful run of a whitelisted
	// domain.
	UsageCount int `json:"usageCount"`

	// CreatedAt is when the record was first stored.
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt is when the record was last written.
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewProvisionalPolicy returns the policy created the first time a domain is
// seen: not whitelisted, no bypass, zero runs. The record exists so that a
// second message for the same domain is treated as "known, not whitelisted"
// instead of re-prompting.
func NewProvisionalPolicy(domain string) DomainPolicy {
	return DomainPolicy{Domain: domain}
}
