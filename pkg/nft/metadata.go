package nft

import (
	"fmt"
	"net/url"

	"github.com/artbay/nft-server/pkg/solana/metadata"
)

// MetadataValidationError reports a metadata field that fails on-chain size
// or format constraints. Validation happens before any RPC call so invalid
// requests are rejected without network round trips.
type MetadataValidationError struct {
	Field   string
	Message string
}

func (e *MetadataValidationError) Error() string {
	return fmt.Sprintf("invalid metadata field %s: %s", e.Field, e.Message)
}

// validateMetadata enforces the token metadata program's byte limits and
// requires an absolute http(s) URI. Limits are byte lengths, not rune
// counts, matching the on-chain account layout.
func validateMetadata(name, symbol, uri string) error {
	if name == "" {
		return &MetadataValidationError{Field: "name", Message: "must not be empty"}
	}
	if len(name) > metadata.MaxNameLength {
		return &MetadataValidationError{
			Field:   "name",
			Message: fmt.Sprintf("must be at most %d bytes", metadata.MaxNameLength),
		}
	}
	if len(symbol) > metadata.MaxSymbolLength {
		return &MetadataValidationError{
			Field:   "symbol",
			Message: fmt.Sprintf("must be at most %d bytes", metadata.MaxSymbolLength),
		}
	}
	if len(uri) > metadata.MaxURILength {
		return &MetadataValidationError{
			Field:   "uri",
			Message: fmt.Sprintf("must be at most %d bytes", metadata.MaxURILength),
		}
	}

	parsed, err := url.Parse(uri)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return &MetadataValidationError{Field: "uri", Message: "must be an absolute url"}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &MetadataValidationError{Field: "uri", Message: "must use an http or https scheme"}
	}

	return nil
}
