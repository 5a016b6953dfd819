// Package auditstore is the append-only audit trail: durable event rows
// plus the two query shapes the core needs (recent events for operators,
// failed-login windows for the lockout policy).
//
// No update or delete is exposed. The lockout policy recomputes its state
// from these rows on every evaluation; the trail is the single source of
// truth and lockout state self-heals from it.
package auditstore
