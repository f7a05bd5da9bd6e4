// Package database provides the PostgreSQL connection pool used to persist
// messages that are waiting for a usable realtime connection.
package database
