package detector

import "regexp"

// pattern is one regex rule. Group selects the submatch that carries
// the PII when the expression needs surrounding context (0 reports
// the whole match). Validate, when set, gates the match entirely: a
// failing or panicking validator yields no detection.
type pattern struct {
	Category   string
	Region     string
	Confidence float64
	Group      int
	Validate   func(string) bool
	re         *regexp.Regexp
}

// patternTable is the full rule set. Regional rules are skipped when
// a locale is set and differs; rules with an empty Region always run.
// Confidence values already reflect checksum strength.
var patternTable = []pattern{
	{
		Category:   "EMAIL",
		Confidence: 0.95,
		re:         regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
	},
	{
		Category:   "CREDIT_CARD",
		Confidence: 0.98,
		Validate:   luhn,
		re:         regexp.MustCompile(`\b\d(?:[ -]?\d){12,18}\b`),
	},
	{
		Category:   "IP_ADDRESS",
		Confidence: 0.90,
		Validate:   ipv4Octets,
		re:         regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
	},
	{
		Category:   "IPV6",
		Confidence: 0.85,
		Validate:   ipv6Addr,
		re: regexp.MustCompile(
			`\b(?:[0-9A-Fa-f]{1,4}:){7}[0-9A-Fa-f]{1,4}\b|\b(?:[0-9A-Fa-f]{1,4}:){1,6}:(?:[0-9A-Fa-f]{1,4}(?::[0-9A-Fa-f]{1,4}){0,5})?`),
	},
	{
		Category:   "MAC_ADDRESS",
		Confidence: 0.90,
		re:         regexp.MustCompile(`\b[0-9A-Fa-f]{2}(?:[:-][0-9A-Fa-f]{2}){5}\b`),
	},
	{
		Category:   "URL",
		Confidence: 0.80,
		re:         regexp.MustCompile(`\bhttps?://[^\s<>"']+`),
	},
	{
		Category:   "VIN",
		Confidence: 0.90,
		Validate:   vinISO3779,
		re:         regexp.MustCompile(`\b[A-HJ-NPR-Z0-9]{17}\b`),
	},
	{
		Category:   "DOB",
		Confidence: 0.85,
		Group:      1,
		re: regexp.MustCompile(
			`(?i)\b(?:date of birth|birth ?date|d\.?o\.?b\.?|born on)\b[:.\s]*(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}|\d{4}-\d{2}-\d{2})`),
	},
	{
		Category:   "US_SSN",
		Region:     "US",
		Confidence: 0.92,
		Validate:   usSSN,
		re:         regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	},
	{
		Category:   "US_PHONE",
		Region:     "US",
		Confidence: 0.75,
		re:         regexp.MustCompile(`\b(?:\+?1[ .-]?)?(?:\(\d{3}\)|\d{3})[ .-]?\d{3}[ .-]?\d{4}\b`),
	},
	{
		Category:   "UK_NHS",
		Region:     "UK",
		Confidence: 0.95,
		Validate:   ukNHS,
		re:         regexp.MustCompile(`\b\d{3}[ -]?\d{3}[ -]?\d{4}\b`),
	},
	{
		Category:   "UK_NINO",
		Region:     "UK",
		Confidence: 0.90,
		Validate:   ukNINO,
		re:         regexp.MustCompile(`\b[A-Za-z]{2}\s?\d{2}\s?\d{2}\s?\d{2}\s?[A-Da-d]\b`),
	},
	{
		Category:   "UK_PHONE",
		Region:     "UK",
		Confidence: 0.75,
		re:         regexp.MustCompile(`\b(?:\+44\s?\d{4}|\(?0\d{3,4}\)?)\s?\d{3}\s?\d{3,4}\b`),
	},
	{
		Category:   "UK_POSTCODE",
		Region:     "UK",
		Confidence: 0.85,
		re:         regexp.MustCompile(`\b[A-Z]{1,2}\d[A-Z\d]?\s?\d[A-Z]{2}\b`),
	},
	{
		Category:   "UK_PASSPORT",
		Region:     "UK",
		Confidence: 0.85,
		Group:      1,
		re:         regexp.MustCompile(`(?i)\bpassport(?:\s+(?:no|number|num))?\.?\s*[:#]?\s*(\d{9})\b`),
	},
	{
		Category:   "UK_SORT_CODE",
		Region:     "UK",
		Confidence: 0.80,
		re:         regexp.MustCompile(`\b\d{2}-\d{2}-\d{2}\b`),
	},
	{
		Category:   "AU_TFN",
		Region:     "AU",
		Confidence: 0.95,
		Validate:   auTFN,
		re:         regexp.MustCompile(`\b\d{3} ?\d{3} ?\d{3}\b`),
	},
	{
		Category:   "AU_MEDICARE",
		Region:     "AU",
		Confidence: 0.95,
		Validate:   auMedicare,
		re:         regexp.MustCompile(`\b[2-6]\d{3} ?\d{5} ?\d(?: ?/?\d)?\b`),
	},
	{
		Category:   "AU_ABN",
		Region:     "AU",
		Confidence: 0.95,
		Validate:   auABN,
		re:         regexp.MustCompile(`\b\d{2} ?\d{3} ?\d{3} ?\d{3}\b`),
	},
	{
		Category:   "AU_BSB_ACCT",
		Region:     "AU",
		Confidence: 0.80,
		re:         regexp.MustCompile(`\b\d{3}-\d{3} ?\d{6,10}\b`),
	},
	{
		Category:   "AU_PHONE",
		Region:     "AU",
		Confidence: 0.80,
		re:         regexp.MustCompile(`\b(?:\+?61[ -]?[2-478]|0[2-478])(?:[ -]?\d){8}\b`),
	},
	{
		Category:   "AU_POSTCODE",
		Region:     "AU",
		Confidence: 0.70,
		Group:      1,
		re:         regexp.MustCompile(`(?i)\b(?:post\s?code|postal code)\s*[:#]?\s*(\d{4})\b`),
	},
	{
		Category:   "AU_PASSPORT",
		Region:     "AU",
		Confidence: 0.85,
		Group:      1,
		re:         regexp.MustCompile(`(?i)\bpassport(?:\s+(?:no|number|num))?\.?\s*[:#]?\s*([A-Z]{1,2}\d{7})\b`),
	},
	{
		Category:   "NZ_IRD",
		Region:     "NZ",
		Confidence: 0.95,
		Validate:   nzIRD,
		re:         regexp.MustCompile(`\b\d{2,3}[ -]?\d{3}[ -]?\d{3}\b`),
	},
	{
		Category:   "NZ_NHI",
		Region:     "NZ",
		Confidence: 0.95,
		Validate:   nzNHI,
		re:         regexp.MustCompile(`\b[A-Za-z]{3}\d{4}\b`),
	},
	{
		Category:   "NZ_PHONE",
		Region:     "NZ",
		Confidence: 0.80,
		re:         regexp.MustCompile(`\b(?:\+?64[ -]?|0)[2-9](?:[ -]?\d){7,9}\b`),
	},
	{
		Category:   "NZ_POSTCODE",
		Region:     "NZ",
		Confidence: 0.70,
		Group:      1,
		re:         regexp.MustCompile(`(?i)\b(?:post\s?code|postal code)\s*[:#]?\s*(\d{4})\b`),
	},
	{
		Category:   "NZ_BANK",
		Region:     "NZ",
		Confidence: 0.90,
		re:         regexp.MustCompile(`\b\d{2}-\d{4}-\d{7}-\d{2,3}\b`),
	},
	{
		Category:   "NZ_PASSPORT",
		Region:     "NZ",
		Confidence: 0.85,
		Group:      1,
		re:         regexp.MustCompile(`(?i)\bpassport(?:\s+(?:no|number|num))?\.?\s*[:#]?\s*([A-Z]{1,2}\d{6})\b`),
	},
	{
		Category:   "MRN",
		Confidence: 0.85,
		Group:      1,
		re: regexp.MustCompile(
			`(?i)\b(?:mrn|medical record(?:\s+(?:no|number|num))?)\.?\s*[:#]?\s*([A-Z0-9]{5,12})\b`),
	},
	{
		Category:   "LICENCE_NUMBER",
		Confidence: 0.80,
		Group:      1,
		re: regexp.MustCompile(
			`(?i)\b(?:driver'?s?\s+)?licen[cs]e(?:\s+(?:no|number|num))?\.?\s*[:#]?\s*([A-Z0-9]{5,12})\b`),
	},
}
