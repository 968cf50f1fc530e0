package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
)

// OCDSParser parses an OCDS-style document: a container whose "releases"
// field holds a list of heterogeneous release objects. The upstream schema is
// semi-structured, so every field the normalizer cares about is probed at
// each of its known paths and the values found are copied into the RawRecord
// under the original dotted path. Numeric path segments index arrays
// ("parties.0.name").
type OCDSParser struct{}

func NewOCDSParser() *OCDSParser {
	return &OCDSParser{}
}

// releasePaths are the paths probed on every release. Priority order between
// alternates is the normalizer's concern; the parser just preserves what is
// present.
var releasePaths = []string{
	"ocid",
	"id",
	"tender.id",
	"tender.title",
	"title",
	"tender.description",
	"description",
	"buyer.name",
	"parties.0.name",
	"tender.value.amount",
	"tender.minValue.amount",
	"tender.estimatedValue.amount",
	"tender.value.currency",
	"tender.tenderPeriod.endDate",
	"tender.enquiryPeriod.endDate",
	"tender.milestones.0.dueDate",
	"closeDate",
	"buyer.address.region",
	"buyer.address.locality",
	"buyer.address.countryName",
	"parties.0.address.region",
	"tender.items.0.deliveryAddresses.0.region",
	"tender.documents.0.url",
	"planning.documents.0.url",
}

func (p *OCDSParser) Parse(ctx context.Context, r io.Reader) ([]RawRecord, error) {
	var doc struct {
		Releases []json.RawMessage `json:"releases"`
		Results  []json.RawMessage `json:"results"`
	}
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding OCDS document: %w", err)
	}

	// An empty releases list is a valid document with zero notices; only a
	// document carrying neither envelope key is malformed.
	releases := doc.Releases
	if releases == nil {
		releases = doc.Results
	}
	if releases == nil {
		return nil, fmt.Errorf("OCDS document has no releases list")
	}

	var records []RawRecord
	dropped := 0
	for _, raw := range releases {
		if err := ctx.Err(); err != nil {
			return records, err
		}

		var release map[string]any
		if err := json.Unmarshal(raw, &release); err != nil {
			dropped++
			continue
		}

		rec := make(RawRecord)
		for _, path := range releasePaths {
			if v, ok := lookupPath(release, path); ok {
				rec[path] = v
			}
		}
		if len(rec) == 0 {
			dropped++
			continue
		}
		records = append(records, rec)
	}

	if dropped > 0 {
		log.Printf("[OCDSParser] Dropped %d malformed releases (%d parsed)", dropped, len(records))
	}
	return records, nil
}

// lookupPath walks a dotted path through nested maps and slices, returning
// the value found and whether every segment was present and non-nil.
func lookupPath(doc any, path string) (any, bool) {
	current := doc
	for _, seg := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok || v == nil {
				return nil, false
			}
			current = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	if current == nil {
		return nil, false
	}
	return current, true
}
