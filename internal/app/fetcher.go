package app

import (
	"context"

	"github.com/formosa-data/formosa/internal/mops"
)

// TaxonomyFetcher adapts the MOPS client to the taxonomy manager's fetch
// interface. Taxonomy schemas and linkbases are plain UTF-8 XML.
type TaxonomyFetcher struct {
	Client *mops.Client
}

// Get downloads one taxonomy artifact.
func (f TaxonomyFetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := f.Client.Get(ctx, rawURL, mops.EncodingUTF8)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
