package language

import (
	"fmt"
	"sort"
	"strings"

	"github.com/oukeidos/posync/internal/apperrors"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// KeyDelimiter separates the resource slug from the language code in a
// translation unit key, e.g. "foreman__pt_BR".
const KeyDelimiter = "__"

// Language is one of the languages every backend must carry.
type Language struct {
	Code string // backend code, gettext style (pt_BR)
	Name string
	Tag  language.Tag
}

// requiredCodes is the language set shipped with the product.
var requiredCodes = []string{
	"de",
	"es",
	"fr",
	"it",
	"ja",
	"ko",
	"pt_BR",
	"ru",
	"zh_CN",
	"zh_TW",
}

// Languages maps backend code -> Language for every required language.
var Languages = mustBuild(requiredCodes)

func mustBuild(codes []string) map[string]Language {
	out := make(map[string]Language, len(codes))
	namer := display.English.Tags()
	for _, code := range codes {
		tag, err := language.Parse(strings.ReplaceAll(code, "_", "-"))
		if err != nil {
			panic(fmt.Sprintf("invalid language code %q: %v", code, err))
		}
		out[code] = Language{Code: code, Name: namer.Name(tag), Tag: tag}
	}
	return out
}

// GetLanguage returns the required language with the exact backend code.
func GetLanguage(code string) (Language, bool) {
	lang, ok := Languages[code]
	return lang, ok
}

// Codes returns the required language codes, sorted.
func Codes() []string {
	out := make([]string, 0, len(Languages))
	for code := range Languages {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// MissingLanguagesError lists required languages absent from a backend.
type MissingLanguagesError struct {
	Missing []string
}

func (e *MissingLanguagesError) Error() string {
	return fmt.Sprintf("missing languages: %s", strings.Join(e.Missing, ", "))
}

// Require checks the backend language catalog against the required set and
// returns the required codes. A partial set is never returned.
func Require(catalog []string) ([]string, error) {
	available := make(map[string]bool, len(catalog))
	for _, code := range catalog {
		available[code] = true
	}
	var missing []string
	for _, code := range Codes() {
		if !available[code] {
			missing = append(missing, code)
		}
	}
	if len(missing) > 0 {
		cause := &MissingLanguagesError{Missing: missing}
		return nil, apperrors.New(apperrors.KindMismatch, cause.Error(), cause)
	}
	return Codes(), nil
}

// JoinKey builds the translation unit key for a resource and language.
func JoinKey(slug, code string) string {
	return slug + KeyDelimiter + code
}

// SplitKey splits a translation unit key at its last delimiter. The final
// segment is the language code.
func SplitKey(key string) (slug, code string, ok bool) {
	idx := strings.LastIndex(key, KeyDelimiter)
	if idx <= 0 || idx+len(KeyDelimiter) >= len(key) {
		return "", "", false
	}
	return key[:idx], key[idx+len(KeyDelimiter):], true
}
