package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octobees/turmeric-buyers/internal/entity"
)

func TestNameKey(t *testing.T) {
	cases := map[string]string{
		"Spice World Trading Co.":             "spice world trading",
		"  spice world trading co ":           "spice world trading",
		"M/s Golden Spice Pvt. Ltd.":          "golden spice",
		"Messrs Haldi & Sons Private Limited": "haldi and sons",
		"Café Épices LLP":                     "cafe epices",
		"Company":                             "company",
		"":                                    "",
	}
	for input, want := range cases {
		assert.Equal(t, want, NameKey(input), "input %q", input)
	}
}

func TestPhoneKeyUsesLastTenDigits(t *testing.T) {
	assert.Equal(t, "9876543210", PhoneKey("+91 98765-43210"))
	assert.Equal(t, "9876543210", PhoneKey("098765 43210"))
	assert.Empty(t, PhoneKey("12345"))
}

func TestDeduplicateFirstOccurrenceWins(t *testing.T) {
	records := []entity.CandidateRecord{
		{CompanyName: "Spice World Trading Co.", Email: "a@spiceworld.in", Source: "first"},
		{CompanyName: "Spice World Trading Co", Email: "b@spiceworld.in", Source: "second"},
		{CompanyName: "Kerala Haldi Exports", Phone: "+91 9876543210"},
		{CompanyName: "Different Name", Phone: "09876543210"},
		{CompanyName: "Another Buyer", Email: "A@SpiceWorld.in"},
		{CompanyName: "Everest Spices Pvt Ltd"},
		{CompanyName: "Everest Spice Pvt Ltd"},
		{CompanyName: "Nilgiri Foods"},
	}

	unique, dupes := Deduplicate(records, DefaultSimilarity)

	require.Len(t, unique, 4)
	assert.Equal(t, 4, dupes)
	assert.Equal(t, "first", unique[0].Source)
	assert.Equal(t, "Kerala Haldi Exports", unique[1].CompanyName)
	assert.Equal(t, "Everest Spices Pvt Ltd", unique[2].CompanyName)
	assert.Equal(t, "Nilgiri Foods", unique[3].CompanyName)
}

func TestDeduplicateIgnoresEmptyKeys(t *testing.T) {
	records := []entity.CandidateRecord{
		{CompanyName: ""},
		{CompanyName: ""},
		{CompanyName: "Alpha Traders"},
	}
	unique, dupes := Deduplicate(records, DefaultSimilarity)
	assert.Len(t, unique, 3)
	assert.Zero(t, dupes)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("alpha", "alpha"))
	assert.Zero(t, Similarity("", "alpha"))
	assert.Greater(t, Similarity("everest spices", "everest spice"), DefaultSimilarity)
	assert.Less(t, Similarity("everest spices", "nilgiri foods"), DefaultSimilarity)
}

func TestMergePrefersMoreCompleteRecord(t *testing.T) {
	existing := []entity.CandidateRecord{
		{CompanyName: "Golden Spice Traders", Source: "old"},
	}
	incoming := []entity.CandidateRecord{
		{CompanyName: "Golden Spice Traders", Phone: "+91 9876543210", Email: "sales@goldenspice.in", City: "Erode", Source: "new"},
		{CompanyName: "Nilgiri Foods", Source: "new"},
	}

	merged, dupes := Merge(existing, incoming, DefaultSimilarity)

	require.Len(t, merged, 2)
	assert.Equal(t, 1, dupes)
	assert.Equal(t, "new", merged[0].Source)
	assert.Equal(t, "Erode", merged[0].City)
}

func TestResolveReportsMatchedPosition(t *testing.T) {
	d := New(DefaultSimilarity)

	assert.Equal(t, -1, d.Resolve(entity.CandidateRecord{CompanyName: "Everest Spices", Email: "sales@everestspices.com"}))
	assert.Equal(t, -1, d.Resolve(entity.CandidateRecord{CompanyName: "Kerala Haldi Exports", Phone: "+91 9876543210"}))
	assert.Equal(t, -1, d.Resolve(entity.CandidateRecord{Email: "info@nilgiri.in"}))

	assert.Equal(t, 0, d.Resolve(entity.CandidateRecord{CompanyName: "Everest Spice Traders India", Email: "SALES@everestspices.com"}))
	assert.Equal(t, 1, d.Resolve(entity.CandidateRecord{CompanyName: "Other", Phone: "09876543210"}))
	assert.Equal(t, 2, d.Resolve(entity.CandidateRecord{CompanyName: "Nilgiri", Email: "info@nilgiri.in"}))
	assert.Equal(t, 0, d.Resolve(entity.CandidateRecord{CompanyName: "Everest Spice"}))
	assert.Equal(t, -1, d.Resolve(entity.CandidateRecord{CompanyName: "Everest Spices International Trading"}))
}
