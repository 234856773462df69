package catalog

import (
	"context"
	"strings"
	"time"
)

type SourceKind string

const (
	SourceKindFeed    SourceKind = "feed"
	SourceKindChannel SourceKind = "channel"
)

// Source describes one monitored address. The pipeline treats sources as
// read-only; the catalog owns them.
type Source struct {
	ID      string
	Kind    SourceKind
	Address string
}

// Keywords maps a taxonomy category to the keyword hints configured for it.
// Keyword semantics belong to the classification service; the pipeline only
// passes them through as prompt hints.
type Keywords map[string][]string

// Snapshot is one consistent read of the catalog.
type Snapshot struct {
	Sources  []Source
	Keywords Keywords
	LoadedAt time.Time
}

type Client interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// NewSource derives the source descriptor from an address. Telegram channel
// URLs are monitored via the public preview page, everything else is fetched
// as a syndication feed. The address doubles as the stable source ID.
func NewSource(address string) Source {
	kind := SourceKindFeed
	if strings.Contains(address, "t.me/") {
		kind = SourceKindChannel
	}

	return Source{
		ID:      address,
		Kind:    kind,
		Address: address,
	}
}
