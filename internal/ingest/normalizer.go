package ingest

import (
	"crypto/sha1"
	"fmt"
	"strings"
	"time"

	"github.com/xcaplin/tender-banana/internal/models"
)

// Field alias chains, in priority order. Each chain is folded with "first
// present, non-empty wins" so the normalizer never probes dynamic shapes:
// every path a source can use is listed here explicitly.
var (
	idFields = []string{
		"ocid", "noticeIdentifier", "Notice Identifier", "tender.id", "id", "Reference",
	}
	titleFields = []string{
		"tender.title", "title", "Title", "Notice Title",
	}
	organizationFields = []string{
		"buyer.name", "parties.0.name", "organisationName", "Organisation Name", "Organisation", "Buyer",
	}
	descriptionFields = []string{
		"tender.description", "description", "Description",
	}
	valueFields = []string{
		"tender.value.amount", "tender.minValue.amount", "tender.estimatedValue.amount",
		"awardedValue", "valueLow", "valueHigh",
		"Awarded Value", "Value Low", "Value High", "Contract Value",
	}
	deadlineFields = []string{
		"tender.tenderPeriod.endDate", "tender.enquiryPeriod.endDate",
		"tender.milestones.0.dueDate", "closeDate", "deadlineDate",
		"Closing Date", "End Date", "Deadline",
	}
	regionFields = []string{
		"buyer.address.region", "parties.0.address.region",
		"tender.items.0.deliveryAddresses.0.region", "buyer.address.locality",
		"buyer.address.countryName", "region", "Region", "Location",
	}
	urlFields = []string{
		"noticeURL", "URL", "Link", "tender.documents.0.url", "planning.documents.0.url",
	}
)

const (
	noticeURLTemplate = "https://www.find-tender.service.gov.uk/Notice/%s"
	portalFallbackURL = "https://www.find-tender.service.gov.uk/Search"
)

// Normalizer maps intermediate records to canonical Tenders. It is stateless
// apart from the clock, which tests override.
type Normalizer struct {
	now func() time.Time
}

func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// Normalize converts one raw record into a canonical Tender, or returns nil
// when the record has no recoverable title. A non-nil result satisfies every
// Tender invariant: non-empty title and organization, non-negative value,
// and a concrete deadline (now+30d when the source has none; missing dates
// never block the pipeline).
func (n *Normalizer) Normalize(rec RawRecord) *models.Tender {
	title := cleanText(sanitizeUTF8(HTMLToText(firstString(rec, titleFields))))
	if title == "" {
		return nil
	}

	organization := cleanText(firstString(rec, organizationFields))
	if organization == "" {
		organization = models.UnknownOrganization
	}

	value := models.FallbackValue
	if v, ok := firstFloat(rec, valueFields); ok && v > 0 {
		value = v
	}

	deadline := toEndOfDay(n.now().AddDate(0, 0, models.DefaultDeadlineDays))
	if raw := firstString(rec, deadlineFields); raw != "" {
		if dt, err := parseDateRobust(raw); err == nil {
			deadline = dt
		}
	}

	description := sanitizeHTML(sanitizeUTF8(firstString(rec, descriptionFields)))
	summary := TruncateText(HTMLToText(description), 280)

	region := cleanText(firstString(rec, regionFields))
	if region == "" {
		region = models.DefaultRegion
	}

	id := firstString(rec, idFields)
	if id == "" {
		id = surrogateID(title, organization, deadline)
	}

	url := firstString(rec, urlFields)
	if url == "" {
		if externalID := firstString(rec, idFields); externalID != "" {
			url = fmt.Sprintf(noticeURLTemplate, externalID)
		} else {
			url = portalFallbackURL
		}
	}

	return &models.Tender{
		ID:                  id,
		Title:               title,
		Organization:        organization,
		Value:               value,
		Deadline:            deadline,
		Status:              models.StatusNew,
		Summary:             summary,
		DetailedDescription: description,
		Categories:          Classify(title, description),
		Region:              region,
		URL:                 url,
	}
}

// firstString folds an alias chain: the first key present with a non-empty
// string value wins.
func firstString(rec RawRecord, keys []string) string {
	for _, k := range keys {
		if v := rec.String(k); v != "" {
			return v
		}
	}
	return ""
}

// firstFloat folds an alias chain for monetary fields.
func firstFloat(rec RawRecord, keys []string) (float64, bool) {
	for _, k := range keys {
		if v, ok := rec.Float(k); ok {
			return v, true
		}
	}
	return 0, false
}

// surrogateID derives a stable identifier for records lacking a native one.
// Hashing title+organization+deadline date keeps the ID identical across
// repeated fetches of overlapping data, so the same notice cannot reappear
// under a fresh ID. Two notices sharing all three fields collapse together,
// the same approximation composite-key dedup already accepts.
func surrogateID(title, organization string, deadline time.Time) string {
	key := strings.ToLower(title) + "|" + strings.ToLower(organization) + "|" + deadline.Format("2006-01-02")
	sum := sha1.Sum([]byte(key))
	return fmt.Sprintf("synth-%x", sum[:6])
}
