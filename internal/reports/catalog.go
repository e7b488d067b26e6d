package reports

import (
	"context"
	"fmt"
	"io"
)

// ListOutcome holds the known report links of an account.
type ListOutcome struct {
	Links []string
}

// NoReports reports whether the account has no recorded reports.
func (o ListOutcome) NoReports() bool {
	return len(o.Links) == 0
}

// Catalog is the read side: it lists report links and streams artifacts.
type Catalog struct {
	records   RecordStore
	artifacts ArtifactStore
}

// NewCatalog creates a Catalog.
func NewCatalog(records RecordStore, artifacts ArtifactStore) *Catalog {
	return &Catalog{
		records:   records,
		artifacts: artifacts,
	}
}

// List returns the links recorded for account.
func (c *Catalog) List(ctx context.Context, account Account) (ListOutcome, error) {
	links, err := c.records.ListLinks(ctx, account)
	if err != nil {
		return ListOutcome{}, fmt.Errorf("List: reading links: %w", err)
	}
	return ListOutcome{Links: links}, nil
}

// Download opens the named artifact. ErrObjectNotFound and
// ErrInvalidObjectName are preserved in the returned error chain.
func (c *Catalog) Download(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := CheckObjectName(name); err != nil {
		return nil, fmt.Errorf("Download: %w", err)
	}
	rc, err := c.artifacts.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("Download: %w", err)
	}
	return rc, nil
}
