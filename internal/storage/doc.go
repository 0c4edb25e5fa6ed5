// Package storage persists users and therapy sessions.
//
// One sqlx implementation serves both drivers:
//   - "sqlite": embedded database file (modernc.org/sqlite, pure Go)
//   - "postgres": server database (github.com/lib/pq)
//
// Instants are stored as unix seconds so comparisons behave the same in both.
package storage
