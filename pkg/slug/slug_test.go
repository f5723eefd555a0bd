package slug

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMake(t *testing.T) {
	cases := []struct {
		title  string
		suffix string
		want   string
	}{
		{title: "My Trip", suffix: "123", want: "my-trip-123"},
		{title: "  Hello,   World!! ", suffix: "abc", want: "hello-world-abc"},
		{title: "---Already--Hyphenated---", suffix: "1", want: "already-hyphenated-1"},
		{title: "Café über Niño", suffix: "7", want: "cafe-uber-nino-7"},
		{title: "2024: Year in Review", suffix: "x", want: "2024-year-in-review-x"},
		{title: "!!!", suffix: "42", want: "42"},
		{title: "Science Fair", suffix: "", want: "science-fair"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Make(tc.title, tc.suffix), tc.title)
	}
}

func TestMakeIsDeterministic(t *testing.T) {
	assert.Equal(t, Make("Sports Day Recap", "k1"), Make("Sports Day Recap", "k1"))
	assert.NotEqual(t, Make("Sports Day Recap", "k1"), Make("Sports Day Recap", "k2"))
}

func TestDisambiguator(t *testing.T) {
	ts := time.Unix(0, 1_700_000_000_123_456_789)
	d := Disambiguator(ts)
	assert.Equal(t, Base(d), d)
	assert.NotEqual(t, d, Disambiguator(ts.Add(time.Nanosecond)))
}
