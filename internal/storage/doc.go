// Package storage persists the bot's two tables:
//
//   - recipients: the set of chat IDs registered for alert fan-out
//   - deliveries: an append-only ledger of delivery outcomes
//
// Both live in a single sqlite database. The database pool is capped at one
// connection, so each operation effectively checks out its own scoped
// connection and sqlite's locking serializes concurrent writers.
package storage
