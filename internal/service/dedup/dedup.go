// Package dedup removes repeated buyers from a batch using exact keys and
// fuzzy company-name similarity.
package dedup

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agext/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/octobees/turmeric-buyers/internal/entity"
)

// DefaultSimilarity is the name similarity above which two records are the same buyer.
const DefaultSimilarity = 0.85

const phoneKeyDigits = 10

var (
	honorificPrefix = regexp.MustCompile(`^\s*(m\s*/\s*s\.?|messrs\.?)\s+`)
	nonAlnum        = regexp.MustCompile(`[^a-z0-9]+`)
)

// corporateSuffixes are trailing words dropped from name keys, so that
// "Spice World Pvt Ltd" and "Spice World" share a key.
var corporateSuffixes = map[string]struct{}{
	"pvt":          {},
	"private":      {},
	"ltd":          {},
	"limited":      {},
	"llp":          {},
	"llc":          {},
	"inc":          {},
	"incorporated": {},
	"corp":         {},
	"corporation":  {},
	"co":           {},
	"company":      {},
	"gmbh":         {},
	"plc":          {},
	"pte":          {},
}

// NameKey lowercases, folds accents, drops the M/s prefix, punctuation and
// corporate suffixes, and collapses whitespace.
func NameKey(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	name = foldAccents(name)
	name = honorificPrefix.ReplaceAllString(name, "")
	name = strings.ReplaceAll(name, "&", " and ")
	tokens := strings.Fields(nonAlnum.ReplaceAllString(name, " "))
	for len(tokens) > 1 {
		if _, ok := corporateSuffixes[tokens[len(tokens)-1]]; !ok {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

// EmailKey is the trimmed, lowercased address.
func EmailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PhoneKey keeps the last ten digits so national and international forms of
// the same number collide. Shorter inputs produce no key.
func PhoneKey(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < phoneKeyDigits {
		return ""
	}
	return digits[len(digits)-phoneKeyDigits:]
}

// KeysFor derives the duplicate keys of a record.
func KeysFor(record entity.CandidateRecord) entity.DuplicateKeys {
	return entity.DuplicateKeys{
		Name:  NameKey(record.CompanyName),
		Email: EmailKey(record.Email),
		Phone: PhoneKey(record.Phone),
	}
}

// Similarity returns the normalized edit similarity of two name keys in [0,1].
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	return levenshtein.Similarity(a, b, nil)
}

// Deduplicator tracks the identities seen so far in one batch. It is not safe
// for concurrent use; create one per batch.
type Deduplicator struct {
	threshold float64
	params    *levenshtein.Params
	names     map[string]int
	emails    map[string]int
	phones    map[string]int
	accepted  []acceptedName
	count     int
}

type acceptedName struct {
	key   string
	runes int
	pos   int
}

// New builds a deduplicator. A threshold outside (0,1] falls back to DefaultSimilarity.
func New(threshold float64) *Deduplicator {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarity
	}
	return &Deduplicator{
		threshold: threshold,
		// A bonus threshold above 1 disables the prefix bonus, matching Similarity.
		params: levenshtein.NewParams().MinScore(threshold).BonusThreshold(1.1),
		names:  make(map[string]int),
		emails: make(map[string]int),
		phones: make(map[string]int),
	}
}

// Add records the candidate and reports whether it is unique. Duplicates are
// not recorded, so the first occurrence always wins.
func (d *Deduplicator) Add(record entity.CandidateRecord) bool {
	return d.Resolve(record) < 0
}

// Resolve records a unique candidate and returns -1. For a duplicate it
// returns the position, counted in order of acceptance, of the earlier
// record it matched. The fuzzy comparison scans every accepted name whose
// length could still reach the threshold, so a batch is O(n²) in the worst
// case.
func (d *Deduplicator) Resolve(record entity.CandidateRecord) int {
	keys := KeysFor(record)
	if keys.Name != "" {
		if pos, ok := d.names[keys.Name]; ok {
			return pos
		}
	}
	if keys.Email != "" {
		if pos, ok := d.emails[keys.Email]; ok {
			return pos
		}
	}
	if keys.Phone != "" {
		if pos, ok := d.phones[keys.Phone]; ok {
			return pos
		}
	}
	runes := utf8.RuneCountInString(keys.Name)
	if keys.Name != "" {
		for _, prior := range d.accepted {
			if !d.reachable(runes, prior.runes) {
				continue
			}
			if levenshtein.Match(keys.Name, prior.key, d.params) > d.threshold {
				return prior.pos
			}
		}
	}

	pos := d.count
	d.count++
	if keys.Name != "" {
		d.names[keys.Name] = pos
		d.accepted = append(d.accepted, acceptedName{key: keys.Name, runes: runes, pos: pos})
	}
	if keys.Email != "" {
		d.emails[keys.Email] = pos
	}
	if keys.Phone != "" {
		d.phones[keys.Phone] = pos
	}
	return -1
}

// reachable reports whether two names of these lengths could score above the
// threshold. The edit distance is at least the length difference.
func (d *Deduplicator) reachable(a, b int) bool {
	longest, diff := a, a-b
	if b > a {
		longest, diff = b, b-a
	}
	if longest == 0 {
		return false
	}
	return 1-float64(diff)/float64(longest) > d.threshold
}

// Deduplicate returns the unique records in input order and the number of
// duplicates dropped.
func Deduplicate(records []entity.CandidateRecord, threshold float64) ([]entity.CandidateRecord, int) {
	d := New(threshold)
	unique := make([]entity.CandidateRecord, 0, len(records))
	for _, record := range records {
		if d.Add(record) {
			unique = append(unique, record)
		}
	}
	return unique, len(records) - len(unique)
}

// Merge combines a prior dataset with fresh records. The most complete copy
// of each buyer survives; ties keep existing records first.
func Merge(existing, incoming []entity.CandidateRecord, threshold float64) ([]entity.CandidateRecord, int) {
	combined := make([]entity.CandidateRecord, 0, len(existing)+len(incoming))
	combined = append(combined, existing...)
	combined = append(combined, incoming...)
	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].Completeness() > combined[j].Completeness()
	})
	return Deduplicate(combined, threshold)
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}
