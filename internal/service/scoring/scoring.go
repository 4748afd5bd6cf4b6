package scoring

import (
	"errors"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/octobees/turmeric-buyers/internal/entity"
)

// Rejection reasons reported for failed gates.
const (
	ReasonInvalidName     = "invalid company name"
	ReasonDisposableEmail = "disposable email"
	ReasonInvalidEmail    = "invalid email"
	ReasonNoMailExchange  = "email domain has no mail exchange"
	ReasonInvalidPhone    = "invalid phone number"
	ReasonLowScore        = "low validation score"
	ReasonTimeout         = "validation timed out"
)

// Threshold tiers.
const (
	ThresholdLenient  = 60
	ThresholdModerate = 80
	ThresholdStrict   = 100
)

// ErrWeightsTotal is returned when the weights do not add up to 100.
var ErrWeightsTotal = errors.New("scoring: weights must sum to 100")

// Weights assigns points per field. Bonuses are earned on top of the base
// points only when the verdict kind is the strongest one for the field.
type Weights struct {
	CompanyName   int
	EmailBase     int
	EmailMX       int
	Phone         int
	WebsiteBase   int
	WebsiteActive int
}

// DefaultWeights gives name 20, email 30, phone 25 and website 25.
func DefaultWeights() Weights {
	return Weights{
		CompanyName:   20,
		EmailBase:     20,
		EmailMX:       10,
		Phone:         25,
		WebsiteBase:   15,
		WebsiteActive: 10,
	}
}

// Total returns the maximum attainable score.
func (w Weights) Total() int {
	return w.CompanyName + w.EmailBase + w.EmailMX + w.Phone + w.WebsiteBase + w.WebsiteActive
}

// Validate checks that every weight is non-negative and the total is 100.
func (w Weights) Validate() error {
	for _, v := range []int{w.CompanyName, w.EmailBase, w.EmailMX, w.Phone, w.WebsiteBase, w.WebsiteActive} {
		if v < 0 {
			return eris.Errorf("scoring: negative weight %d", v)
		}
	}
	if total := w.Total(); total != 100 {
		return eris.Wrapf(ErrWeightsTotal, "got %d", total)
	}
	return nil
}

// Result reports the score, the acceptance decision and the per-field breakdown.
type Result struct {
	Score     int
	Accepted  bool
	Reasons   []string
	Breakdown map[entity.Field]int
}

// Scorer turns field verdicts into a score and an acceptance decision.
type Scorer struct {
	weights   Weights
	threshold int
}

// NewScorer validates the weights and the threshold.
func NewScorer(weights Weights, threshold int) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, eris.Wrap(err, "scoring: weights")
	}
	if threshold < 0 || threshold > 100 {
		return nil, eris.Errorf("scoring: threshold %d outside [0,100]", threshold)
	}
	return &Scorer{weights: weights, threshold: threshold}, nil
}

// Threshold returns the acceptance floor.
func (s *Scorer) Threshold() int {
	return s.threshold
}

// Score evaluates the verdicts. Missing verdicts count as failed.
func (s *Scorer) Score(verdicts map[entity.Field]entity.FieldVerdict) Result {
	name := verdicts[entity.FieldCompanyName]
	email := verdicts[entity.FieldEmail]
	phone := verdicts[entity.FieldPhone]
	website := verdicts[entity.FieldWebsite]

	breakdown := map[entity.Field]int{
		entity.FieldCompanyName: 0,
		entity.FieldEmail:       0,
		entity.FieldPhone:       0,
		entity.FieldWebsite:     0,
	}
	if name.Valid {
		breakdown[entity.FieldCompanyName] = s.weights.CompanyName
	}
	if email.Valid {
		breakdown[entity.FieldEmail] = s.weights.EmailBase
		if email.Kind == entity.KindValid {
			breakdown[entity.FieldEmail] += s.weights.EmailMX
		}
	}
	if phone.Valid {
		breakdown[entity.FieldPhone] = s.weights.Phone
	}
	if website.Valid {
		breakdown[entity.FieldWebsite] = s.weights.WebsiteBase
		if website.Kind == entity.KindActive {
			breakdown[entity.FieldWebsite] += s.weights.WebsiteActive
		}
	}

	total := 0
	for _, points := range breakdown {
		total += points
	}
	total = clamp(total, 0, 100)

	var reasons []string
	if !name.Valid {
		reasons = append(reasons, ReasonInvalidName)
	}
	switch {
	case email.Kind == entity.KindDisposable:
		reasons = append(reasons, ReasonDisposableEmail)
	case email.Kind == entity.KindNoMX:
		reasons = append(reasons, ReasonNoMailExchange)
	case !email.Valid:
		reasons = append(reasons, ReasonInvalidEmail)
	}
	if !phone.Valid {
		reasons = append(reasons, ReasonInvalidPhone)
	}
	if len(reasons) == 0 && total < s.threshold {
		reasons = append(reasons, ReasonLowScore)
	}

	return Result{
		Score:     total,
		Accepted:  len(reasons) == 0,
		Reasons:   reasons,
		Breakdown: breakdown,
	}
}

// ParseThreshold accepts a tier name (lenient, moderate, strict) or an integer
// in [0,100]. An empty value selects the moderate tier.
func ParseThreshold(raw string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "moderate":
		return ThresholdModerate, nil
	case "lenient":
		return ThresholdLenient, nil
	case "strict":
		return ThresholdStrict, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, eris.Errorf("scoring: unknown threshold %q", raw)
	}
	if value < 0 || value > 100 {
		return 0, eris.Errorf("scoring: threshold %d outside [0,100]", value)
	}
	return value, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
