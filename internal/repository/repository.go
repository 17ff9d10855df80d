// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package repository implements the relational store over sqlx.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/vinovest/sqlx"
)

// ErrNotFound is returned when a record is not found.
var ErrNotFound = errors.New("record not found")

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx, so every repository
// method works inside or outside a transaction.
type queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// Repository wraps the database for all store operations.
type Repository struct {
	db   queryer
	conn *sqlx.DB // nil inside a transaction
}

// New creates a new Repository instance.
func New(db *sqlx.DB) *Repository {
	return &Repository{db: db, conn: db}
}

// InTx runs fn against a transaction-scoped repository. A nested call reuses
// the surrounding transaction.
func (r *Repository) InTx(ctx context.Context, fn func(*Repository) error) error {
	if r.conn == nil {
		return fn(r)
	}

	tx, err := r.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(&Repository{db: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// wrapErr converts database/sql errors to repository errors.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// IsUniqueViolation reports whether err is a SQLite unique-constraint
// failure. Used as the race backstop behind check-then-act sequences.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
