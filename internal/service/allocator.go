package service

import (
	"context"
	"fmt"

	"github.com/fairyhunter13/bulk-coupon-system/internal/codegen"
)

// CodeChecker reports which of a set of codes are already stored.
type CodeChecker interface {
	ExistingCodes(ctx context.Context, codes []string) ([]string, error)
}

// CodeAllocator produces candidate codes for a prefix and filters out the
// ones storage already holds. It never writes.
type CodeAllocator struct {
	gen   *codegen.Generator
	store CodeChecker
}

// NewCodeAllocator creates a CodeAllocator over the given generator and store.
func NewCodeAllocator(gen *codegen.Generator, store CodeChecker) *CodeAllocator {
	return &CodeAllocator{gen: gen, store: store}
}

// Candidates returns up to desired distinct codes under prefix.
func (a *CodeAllocator) Candidates(prefix string, desired int) ([]string, error) {
	return a.gen.Candidates(prefix, desired)
}

// FilterExisting returns the codes that are not yet stored, preserving
// input order. It is a single read of storage.
func (a *CodeAllocator) FilterExisting(ctx context.Context, codes []string) ([]string, error) {
	if len(codes) == 0 {
		return []string{}, nil
	}

	existing, err := a.store.ExistingCodes(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("filter existing codes: %w", err)
	}
	if len(existing) == 0 {
		return codes, nil
	}

	taken := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		taken[c] = struct{}{}
	}
	fresh := make([]string, 0, len(codes)-len(existing))
	for _, c := range codes {
		if _, ok := taken[c]; !ok {
			fresh = append(fresh, c)
		}
	}
	return fresh, nil
}
