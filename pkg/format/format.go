// Package format provides BCP-47 language-tag normalization shared by the
// stream model (Stream.Language, §3) and the variant-selection language
// preference match (§4.12).
package format

import (
	"strings"

	"golang.org/x/text/language"
)

// NormalizeLanguage parses tag as a BCP-47 language tag and returns its
// base language subtag in canonical form (e.g. "en-US" and "eng" both
// normalize to "en"). Tags that fail to parse are returned lowercased but
// otherwise unchanged, so callers still get a stable comparison key.
func NormalizeLanguage(tag string) string {
	parsed, err := language.Parse(tag)
	if err != nil {
		return strings.ToLower(tag)
	}
	base, conf := parsed.Base()
	if conf == language.No {
		return strings.ToLower(tag)
	}
	return base.String()
}

// LanguagesMatch reports whether two BCP-47 tags denote the same base
// language, ignoring region/script subtags and case (e.g. "en-US" matches
// "en-GB" and "EN").
func LanguagesMatch(a, b string) bool {
	return NormalizeLanguage(a) == NormalizeLanguage(b)
}
