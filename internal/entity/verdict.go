package entity

// Field names a validated attribute of a candidate record.
type Field string

const (
	FieldCompanyName Field = "company_name"
	FieldEmail       Field = "email"
	FieldPhone       Field = "phone"
	FieldWebsite     Field = "website"
)

// Fields lists every validated field in reporting order.
var Fields = []Field{FieldCompanyName, FieldEmail, FieldPhone, FieldWebsite}

// VerdictKind classifies the outcome of a single field check.
type VerdictKind string

const (
	KindValid       VerdictKind = "valid"
	KindEmpty       VerdictKind = "empty"
	KindMalformed   VerdictKind = "malformed"
	KindSpamPattern VerdictKind = "spam_pattern"
	KindDisposable  VerdictKind = "disposable"
	KindNoMX        VerdictKind = "no_mx"
	KindFakePattern VerdictKind = "fake_pattern"
	KindUnparseable VerdictKind = "unparseable"
	KindActive      VerdictKind = "active"
	KindRedirect    VerdictKind = "redirect"
	KindUnreachable VerdictKind = "unreachable"
	KindHTTPStatus  VerdictKind = "http_status"
	KindSkipped     VerdictKind = "skipped"
	KindTimeout     VerdictKind = "timeout"
)

// FieldVerdict is the outcome of validating one field. Detail is for humans only.
type FieldVerdict struct {
	Valid      bool        `json:"is_valid"`
	Kind       VerdictKind `json:"kind"`
	Detail     string      `json:"detail"`
	Region     string      `json:"region,omitempty"`
	Canonical  string      `json:"canonical,omitempty"`
	HTTPStatus int         `json:"http_status,omitempty"`
}

// Valid builds a passing verdict.
func Valid(kind VerdictKind, detail string) FieldVerdict {
	return FieldVerdict{Valid: true, Kind: kind, Detail: detail}
}

// Invalid builds a failing verdict.
func Invalid(kind VerdictKind, detail string) FieldVerdict {
	return FieldVerdict{Kind: kind, Detail: detail}
}
