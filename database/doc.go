// Package database provides connection management for MySQL, PostgreSQL and
// SQLite through Bun, together with the model registry, versioned migrations,
// SQL seed files, driver error translation, query hooks and logging.
//
// Most programs call InitDB once with a Config loaded by LoadConfig and then
// hand GetDB to the repositories.
package database
