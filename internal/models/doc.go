// Package models defines the core domain models for the billing service.
//
// # Models
//
//   - Bill: a shared expense with a derived aggregate status
//   - Split: one participant's share of a bill and their response
//   - User: a registered account that can participate in bills
//
// # Design Principles
//
//  1. **Derived status**: Bill.Status is never set directly by a client. It is
//     recomputed from the bill's splits after every split mutation and only
//     the derivation step may persist it.
//  2. **One split per participant**: a user appears in a bill exactly once,
//     enforced by a unique (bill, user) constraint in storage.
//  3. **Exact money**: amounts are decimal.Decimal values with two fractional
//     digits, never floats, so split sums reconcile to the cent.
//  4. **Avoid circular references**: models reference each other by ID string
//     instead of pointers.
package models
