// Package model holds the Bun table models and registers them with the
// database model registry so migrations create their tables.
package model
