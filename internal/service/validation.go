package service

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/nyaruka/phonenumbers"
	"github.com/rotisserie/eris"
	"golang.org/x/net/idna"

	"github.com/octobees/turmeric-buyers/internal/entity"
)

var (
	emailPattern = regexp.MustCompile(`^[a-z0-9._%+\-']+@[a-z0-9.-]+\.[a-z]{2,}$`)
	idnaProfile  = idna.Lookup
)

const (
	defaultMXTimeout   = 3 * time.Second
	defaultHTTPTimeout = 10 * time.Second
	minNameLength      = 3
	minPhoneLength     = 10
	repeatedRunLength  = 5
	regionAgnostic     = "ZZ"
	websiteUserAgent   = "Mozilla/5.0 (compatible; turmeric-buyers/1.0)"
)

// DefaultSpamPatterns are placeholder names that show up in scraped directories.
var DefaultSpamPatterns = []string{
	`test\s*company`,
	`example\s*corp`,
	`sample\s*ltd`,
	`dummy\s*business`,
	`fake\s*enterprise`,
	`xxx+`,
	`aaa+`,
	`lorem\s*ipsum`,
	`john\s*doe`,
	`company\s*name`,
	`business\s*here`,
	`enter\s*name`,
	`your\s*company`,
}

// DefaultDisposableDomains are throwaway mailbox providers.
var DefaultDisposableDomains = []string{
	"10minutemail.com",
	"tempmail.org",
	"guerrillamail.com",
	"mailinator.com",
	"yopmail.com",
	"temp-mail.org",
	"throwaway.email",
	"maildrop.cc",
	"getnada.com",
	"tempail.com",
	"sharklasers.com",
	"grr.la",
	"fakeinbox.com",
	"spamgourmet.com",
	"dispostable.com",
	"mailnesia.com",
	"guerrillamailblock.com",
	"0-mail.com",
}

// DefaultMobilePrefixes are the leading national digits of Indian mobile numbers.
var DefaultMobilePrefixes = func() []string {
	prefixes := make([]string, 0, 30)
	for p := 70; p <= 99; p++ {
		prefixes = append(prefixes, fmt.Sprintf("%d", p))
	}
	return prefixes
}()

// DefaultRegionHints is the order in which phone regions are tried. The empty
// hint only parses numbers written in international form.
var DefaultRegionHints = []string{"IN", "US", "GB", ""}

// Rules holds the tunable data used by the field validators.
type Rules struct {
	SpamPatterns          []string
	DisposableDomains     []string
	DomesticRegion        string
	EnforceDomesticPrefix bool
	MobilePrefixes        []string
	RegionHints           []string
	MXTimeout             time.Duration
	HTTPTimeout           time.Duration
	SkipMXCheck           bool
	SkipWebsiteCheck      bool
}

// DefaultRules returns the rule set used when nothing is configured.
func DefaultRules() Rules {
	return Rules{
		SpamPatterns:          append([]string(nil), DefaultSpamPatterns...),
		DisposableDomains:     append([]string(nil), DefaultDisposableDomains...),
		DomesticRegion:        "IN",
		EnforceDomesticPrefix: true,
		MobilePrefixes:        append([]string(nil), DefaultMobilePrefixes...),
		RegionHints:           append([]string(nil), DefaultRegionHints...),
		MXTimeout:             defaultMXTimeout,
		HTTPTimeout:           defaultHTTPTimeout,
	}
}

// DNSResolver abstracts DNS lookups to simplify testing.
type DNSResolver interface {
	LookupMX(ctx context.Context, domain string) ([]*net.MX, error)
}

// HTTPClient abstracts HTTP requests for validation purposes.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// FieldValidator checks the individual fields of a candidate record. It holds
// no per-call state and is safe for concurrent use.
type FieldValidator struct {
	rules       Rules
	spam        []*regexp.Regexp
	disposable  map[string]struct{}
	prefixes    map[string]struct{}
	dnsResolver DNSResolver
	httpClient  HTTPClient
}

// FieldValidatorOption configures optional dependencies.
type FieldValidatorOption func(*FieldValidator)

// WithDNSResolver overrides the default DNS resolver.
func WithDNSResolver(resolver DNSResolver) FieldValidatorOption {
	return func(v *FieldValidator) {
		if resolver != nil {
			v.dnsResolver = resolver
		}
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPClient) FieldValidatorOption {
	return func(v *FieldValidator) {
		if client != nil {
			v.httpClient = client
		}
	}
}

// NewFieldValidator compiles the rule set. Invalid spam patterns are a
// configuration error.
func NewFieldValidator(rules Rules, opts ...FieldValidatorOption) (*FieldValidator, error) {
	if rules.MXTimeout <= 0 {
		rules.MXTimeout = defaultMXTimeout
	}
	if rules.HTTPTimeout <= 0 {
		rules.HTTPTimeout = defaultHTTPTimeout
	}
	if len(rules.RegionHints) == 0 {
		rules.RegionHints = append([]string(nil), DefaultRegionHints...)
	}
	rules.DomesticRegion = strings.ToUpper(strings.TrimSpace(rules.DomesticRegion))

	v := &FieldValidator{
		rules:       rules,
		disposable:  toSet(rules.DisposableDomains),
		prefixes:    toSet(rules.MobilePrefixes),
		dnsResolver: systemDNSResolver{},
		httpClient: &http.Client{
			Timeout: rules.HTTPTimeout,
		},
	}
	for _, pattern := range rules.SpamPatterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)` + pattern)
		if err != nil {
			return nil, eris.Wrapf(err, "validation: compile spam pattern %q", pattern)
		}
		v.spam = append(v.spam, re)
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// ValidateCompanyName rejects blank, too short, letterless and placeholder names.
func (v *FieldValidator) ValidateCompanyName(name string) entity.FieldVerdict {
	name = strings.TrimSpace(name)
	if name == "" {
		return entity.Invalid(entity.KindEmpty, "company name missing")
	}
	if len([]rune(name)) < minNameLength {
		return entity.Invalid(entity.KindMalformed, "company name too short")
	}
	if !strings.ContainsFunc(name, unicode.IsLetter) {
		return entity.Invalid(entity.KindMalformed, "company name has no letters")
	}
	for _, re := range v.spam {
		if re.MatchString(name) {
			return entity.Invalid(entity.KindSpamPattern, "company name matches "+re.String())
		}
	}
	if hasRepeatedRun(strings.ToLower(name), repeatedRunLength) {
		return entity.Invalid(entity.KindSpamPattern, "company name repeats a character")
	}
	return entity.Valid(entity.KindValid, "company name ok")
}

// ValidateEmail checks shape, disposable providers and the domain's mail exchange.
func (v *FieldValidator) ValidateEmail(ctx context.Context, raw string) entity.FieldVerdict {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return entity.Invalid(entity.KindEmpty, "email missing")
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || strings.Contains(domain, "@") {
		return entity.Invalid(entity.KindMalformed, "email is not local@domain")
	}
	asciiDomain, err := idnaProfile.ToASCII(domain)
	if err != nil || asciiDomain == "" || !isDomainValid(asciiDomain) {
		return entity.Invalid(entity.KindMalformed, "email domain is invalid")
	}
	canonical := local + "@" + asciiDomain
	if !emailPattern.MatchString(canonical) {
		return entity.Invalid(entity.KindMalformed, "email format invalid")
	}
	if _, ok := v.disposable[asciiDomain]; ok {
		verdict := entity.Invalid(entity.KindDisposable, "disposable email provider "+asciiDomain)
		verdict.Canonical = canonical
		return verdict
	}
	if v.rules.SkipMXCheck {
		verdict := entity.Valid(entity.KindValid, "mail exchange not checked")
		verdict.Canonical = canonical
		return verdict
	}
	if !v.hasMXRecord(ctx, asciiDomain) {
		verdict := entity.Invalid(entity.KindNoMX, "no mail exchange for "+asciiDomain)
		verdict.Canonical = canonical
		return verdict
	}
	verdict := entity.Valid(entity.KindValid, "email ok")
	verdict.Canonical = canonical
	return verdict
}

// ValidatePhone parses the number against the configured region hints.
func (v *FieldValidator) ValidatePhone(raw string) entity.FieldVerdict {
	if strings.TrimSpace(raw) == "" {
		return entity.Invalid(entity.KindEmpty, "phone missing")
	}
	cleaned := cleanPhone(raw)
	digits := strings.TrimPrefix(cleaned, "+")
	if len(cleaned) < minPhoneLength {
		return entity.Invalid(entity.KindFakePattern, "phone too short")
	}
	if isFakeDigits(digits) {
		return entity.Invalid(entity.KindFakePattern, "phone digits follow a fake pattern")
	}

	for _, hint := range v.rules.RegionHints {
		region := strings.ToUpper(strings.TrimSpace(hint))
		if region == "" {
			region = regionAgnostic
		}
		number, err := phonenumbers.Parse(cleaned, region)
		if err != nil || !phonenumbers.IsValidNumber(number) {
			continue
		}
		actual := phonenumbers.GetRegionCodeForNumber(number)
		canonical := phonenumbers.Format(number, phonenumbers.E164)
		if v.rules.EnforceDomesticPrefix && actual != "" && actual == v.rules.DomesticRegion {
			national := phonenumbers.GetNationalSignificantNumber(number)
			if len(national) < 2 {
				return entity.Invalid(entity.KindFakePattern, "national number too short")
			}
			if _, ok := v.prefixes[national[:2]]; !ok {
				verdict := entity.Invalid(entity.KindFakePattern, "prefix "+national[:2]+" not allowed for "+actual)
				verdict.Region = actual
				verdict.Canonical = canonical
				return verdict
			}
		}
		verdict := entity.Valid(entity.KindValid, "phone ok")
		verdict.Region = actual
		verdict.Canonical = canonical
		return verdict
	}
	return entity.Invalid(entity.KindUnparseable, "phone not valid in any region")
}

// ValidateWebsite fetches the site and classifies the final response.
func (v *FieldValidator) ValidateWebsite(ctx context.Context, raw string) entity.FieldVerdict {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return entity.Invalid(entity.KindEmpty, "website missing")
	}
	target := raw
	if !strings.Contains(target, "://") {
		target = "https://" + target
	}
	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return entity.Invalid(entity.KindMalformed, "website has no host")
	}
	if v.rules.SkipWebsiteCheck {
		verdict := entity.Invalid(entity.KindSkipped, "website check disabled")
		verdict.Canonical = u.String()
		return verdict
	}
	if v.httpClient == nil {
		return entity.Invalid(entity.KindUnreachable, "no http client")
	}

	ctx, cancel := context.WithTimeout(ctx, v.rules.HTTPTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return entity.Invalid(entity.KindMalformed, "website url invalid")
	}
	req.Header.Set("User-Agent", websiteUserAgent)
	resp, err := v.httpClient.Do(req)
	if err != nil {
		verdict := entity.Invalid(entity.KindUnreachable, "website unreachable")
		verdict.Canonical = u.String()
		return verdict
	}
	defer resp.Body.Close()

	var verdict entity.FieldVerdict
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		verdict = entity.Valid(entity.KindActive, "website active")
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		verdict = entity.Valid(entity.KindRedirect, "website redirects")
	default:
		verdict = entity.Invalid(entity.KindHTTPStatus, fmt.Sprintf("website returned %d", resp.StatusCode))
	}
	verdict.HTTPStatus = resp.StatusCode
	verdict.Canonical = u.String()
	return verdict
}

// Validate runs every field check for one record.
func (v *FieldValidator) Validate(ctx context.Context, record entity.CandidateRecord) map[entity.Field]entity.FieldVerdict {
	return map[entity.Field]entity.FieldVerdict{
		entity.FieldCompanyName: v.ValidateCompanyName(record.CompanyName),
		entity.FieldEmail:       v.ValidateEmail(ctx, record.Email),
		entity.FieldPhone:       v.ValidatePhone(record.Phone),
		entity.FieldWebsite:     v.ValidateWebsite(ctx, record.Website),
	}
}

func (v *FieldValidator) hasMXRecord(ctx context.Context, domain string) bool {
	if v.dnsResolver == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, v.rules.MXTimeout)
	defer cancel()
	records, err := v.dnsResolver.LookupMX(ctx, domain)
	return err == nil && len(records) > 0
}

func cleanPhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// isFakeDigits flags a single repeated digit and straight ascending or
// descending runs such as 1234567890 and 9876543210.
func isFakeDigits(digits string) bool {
	if len(digits) < 2 {
		return false
	}
	same, up, down := true, true, true
	for i := 1; i < len(digits); i++ {
		prev, cur := int(digits[i-1]-'0'), int(digits[i]-'0')
		if cur != prev {
			same = false
		}
		if cur != (prev+1)%10 {
			up = false
		}
		if cur != (prev+9)%10 {
			down = false
		}
	}
	return same || up || down
}

func hasRepeatedRun(s string, n int) bool {
	var last rune
	run := 0
	for _, r := range s {
		if r == last {
			run++
		} else {
			last, run = r, 1
		}
		if run >= n {
			return true
		}
	}
	return false
}

func isDomainValid(domain string) bool {
	if strings.Count(domain, ".") == 0 {
		return false
	}
	parts := strings.Split(domain, ".")
	for _, part := range parts {
		if part == "" || strings.HasPrefix(part, "-") || strings.HasSuffix(part, "-") {
			return false
		}
	}
	return true
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value != "" {
			set[value] = struct{}{}
		}
	}
	return set
}

type systemDNSResolver struct{}

func (systemDNSResolver) LookupMX(ctx context.Context, domain string) ([]*net.MX, error) {
	return net.DefaultResolver.LookupMX(ctx, domain)
}
