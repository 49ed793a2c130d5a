package models

import (
	"fmt"
	"strings"
)

// ValidationError reports input that was rejected before any mutation:
// an empty name, a non-positive quantity or price, a missing field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an operation referencing an id that does not exist.
type NotFoundError struct {
	Kind string // "material", "purchase", "link"
	ID   int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// Shortage names one material whose stock cannot cover a requested deduction.
type Shortage struct {
	MaterialID   int     `json:"material_id"`
	MaterialName string  `json:"material_name"`
	Available    float64 `json:"available"`
	Required     float64 `json:"required"`
}

// InsufficientStockError reports a deduction that would drive stock negative.
// The whole operation it belongs to aborts; no partial deduction is applied.
// Shortages lists every deficient material so the UI can surface all of them.
type InsufficientStockError struct {
	Shortages []Shortage
}

func (e *InsufficientStockError) Error() string {
	names := make([]string, len(e.Shortages))
	for i, s := range e.Shortages {
		names[i] = fmt.Sprintf("%s (have %.2f, need %.2f)", s.MaterialName, s.Available, s.Required)
	}
	return "insufficient stock: " + strings.Join(names, ", ")
}

// DuplicateLinkError reports an attempt to create a recipe-material link
// that already exists without asking for an overwrite.
type DuplicateLinkError struct {
	RecipeName   string
	MaterialName string
}

func (e *DuplicateLinkError) Error() string {
	return fmt.Sprintf("link between recipe %q and material %q already exists", e.RecipeName, e.MaterialName)
}

// PersistenceError reports a failed table write. In-memory state may be
// ahead of the file until the save is retried.
type PersistenceError struct {
	Table string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting table %s: %v", e.Table, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
