// Package models defines the core domain models for the Ajo ledger.
//
// # Models
//
//   - Group: one rotating savings circle (ROSCA) and its cycle state
//   - ContributionRecord: proof that a member paid into a specific cycle
//   - PayoutRecord: the pooled amount handed to one recipient
//   - RefundRecord: a contribution returned after the creator cancelled the group
//   - GroupMetadata: optional human-readable name, description and rules
//   - GroupStatus: derived, point-in-time view; never stored
//
// Members are identified by opaque address strings. Amounts are integers in
// the smallest currency unit and timestamps are Unix seconds.
//
// # Design Principles
//
//  1. Records reference groups by ID, never by pointer.
//  2. Member order is join order and defines payout order.
//  3. Stored records are append-only except for the Group row itself.
//  4. Every failure is exactly one ErrorKind.
package models
