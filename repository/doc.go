// Package repository provides a generic repository built on Bun with
// identity based CRUD, specification queries, sorting, pagination,
// transactions and dialect aware upserts, plus the Apple and User bindings.
package repository
