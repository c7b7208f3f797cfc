package pagination

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestCalculate(t *testing.T) {
	tests := []struct {
		name  string
		skip  *int
		take  *int
		total int
		want  Links
	}{
		{
			name: "no take means no neighbours",
			skip: intPtr(10), take: nil, total: 100,
			want: Links{},
		},
		{
			name: "last partial page has no next",
			skip: intPtr(10), take: intPtr(5), total: 12,
			want: Links{HasPrevious: true, Previous: Window{Skip: 5, Take: 5}},
		},
		{
			name: "middle page",
			skip: intPtr(10), take: intPtr(5), total: 16,
			want: Links{
				HasPrevious: true, Previous: Window{Skip: 5, Take: 5},
				HasNext: true, Next: Window{Skip: 15, Take: 5},
			},
		},
		{
			name: "nil skip, fewer results than take",
			skip: nil, take: intPtr(5), total: 3,
			want: Links{},
		},
		{
			name: "nil skip, more results than take",
			skip: nil, take: intPtr(5), total: 10,
			want: Links{HasNext: true, Next: Window{Skip: 5, Take: 5}},
		},
		{
			name: "first page never has previous",
			skip: intPtr(0), take: intPtr(5), total: 10,
			want: Links{HasNext: true, Next: Window{Skip: 5, Take: 5}},
		},
		{
			name: "exact fit has no next",
			skip: intPtr(5), take: intPtr(5), total: 10,
			want: Links{HasPrevious: true, Previous: Window{Skip: 0, Take: 5}},
		},
		{
			name: "unaligned skip shrinks previous window",
			skip: intPtr(3), take: intPtr(5), total: 20,
			want: Links{
				HasPrevious: true, Previous: Window{Skip: 0, Take: 3},
				HasNext: true, Next: Window{Skip: 8, Take: 5},
			},
		},
		{
			name: "unaligned skip beyond one page",
			skip: intPtr(7), take: intPtr(5), total: 20,
			want: Links{
				HasPrevious: true, Previous: Window{Skip: 2, Take: 5},
				HasNext: true, Next: Window{Skip: 12, Take: 5},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Calculate(tt.skip, tt.take, tt.total))
		})
	}
}

func TestCalculate_PreviousAlwaysPresentForPositiveSkip(t *testing.T) {
	for skip := 1; skip <= 40; skip++ {
		for take := 0; take <= 12; take++ {
			got := Calculate(intPtr(skip), intPtr(take), 50)
			require.True(t, got.HasPrevious, "skip=%d take=%d", skip, take)
			assert.Equal(t, max(0, skip-take), got.Previous.Skip, "skip=%d take=%d", skip, take)
			assert.LessOrEqual(t, got.Previous.Skip+got.Previous.Take, skip, "previous page overlaps current")
		}
	}
}

func TestWithWindow(t *testing.T) {
	u, err := url.Parse("https://example.test/v1/guests?surName=Hopper&skip=10&take=5")
	require.NoError(t, err)

	got := WithWindow(u, Window{Skip: 15, Take: 5})
	assert.Equal(t, "15", got.Query().Get("skip"))
	assert.Equal(t, "5", got.Query().Get("take"))
	assert.Equal(t, "Hopper", got.Query().Get("surName"))
	assert.Equal(t, "10", u.Query().Get("skip"), "input url is not modified")
}

func TestCollectionURL(t *testing.T) {
	u, err := url.Parse("https://example.test/v1/guests?skip=10&take=5#top")
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/v1/guests", CollectionURL(u).String())
}
