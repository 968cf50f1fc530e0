package ingest

import (
	"strings"

	"github.com/xcaplin/tender-banana/internal/models"
)

type categoryRule struct {
	Category string
	Keywords []string
}

// categoryRules map keyword variants to category tags. Rules are evaluated in
// order against the lowercased title+description; every rule that matches
// contributes its category (union, not first-match).
var categoryRules = []categoryRule{
	{"Healthcare", []string{"health", "nhs", "clinical", "hospital", "patient", "medical", "nursing", "gp "}},
	{"Social Care", []string{"social care", "community care", "care home", "domiciliary", "wellbeing", "mental health"}},
	{"Digital & Technology", []string{"software", "digital", "technology", "ict", "cloud", "data platform", "cyber"}},
	{"Professional Services", []string{"consultancy", "advisory", "audit", "legal services", "recruitment"}},
	{"Construction", []string{"construction", "building works", "refurbishment", "civil engineering"}},
	{"Facilities Management", []string{"cleaning", "catering", "facilities management", "security services", "grounds maintenance"}},
	{"Transport", []string{"transport", "vehicle", "fleet", "ambulance"}},
	{"Education & Training", []string{"training", "education", "apprenticeship", "learning"}},
}

// Classify derives category tags from free text. Zero matches yields the
// single default category so every tender is filterable.
func Classify(title, description string) []string {
	text := strings.ToLower(title + " " + description)

	var categories []string
	for _, rule := range categoryRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(text, kw) {
				categories = append(categories, rule.Category)
				break
			}
		}
	}

	if len(categories) == 0 {
		return []string{models.DefaultCategory}
	}
	return categories
}

// KnownCategories lists every category the classifier can assign, for the
// dashboard's filter controls.
func KnownCategories() []string {
	out := make([]string, 0, len(categoryRules)+1)
	for _, rule := range categoryRules {
		out = append(out, rule.Category)
	}
	return append(out, models.DefaultCategory)
}
