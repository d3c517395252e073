package connector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectSubResource(t *testing.T) {
	keywords := []string{"wisdom", "book"}

	cases := []struct {
		name       string
		candidates []Candidate
		want       string
		wantOK     bool
	}{
		{
			name: "first keyword wins",
			candidates: []Candidate{
				{ID: "1", Name: "Travel"},
				{ID: "2", Name: "My Wisdom Board"},
				{ID: "3", Name: "Book Club"},
			},
			want:   "My Wisdom Board",
			wantOK: true,
		},
		{
			name: "second keyword when first absent",
			candidates: []Candidate{
				{ID: "1", Name: "Travel"},
				{ID: "3", Name: "Book Club"},
			},
			want:   "Book Club",
			wantOK: true,
		},
		{
			name: "first available fallback",
			candidates: []Candidate{
				{ID: "1", Name: "Travel"},
			},
			want:   "Travel",
			wantOK: true,
		},
		{
			name:   "no candidates",
			wantOK: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := SelectSubResource(tc.candidates, keywords)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.want, got.Name)
			}
		})
	}
}

func TestSelectSubResourceIsDeterministic(t *testing.T) {
	candidates := []Candidate{
		{ID: "a", Name: "Quotes of Wisdom"},
		{ID: "b", Name: "Wisdom Collection"},
	}
	first, _ := SelectSubResource(candidates, []string{"wisdom"})
	for i := 0; i < 10; i++ {
		again, _ := SelectSubResource(candidates, []string{"wisdom"})
		assert.Equal(t, first.ID, again.ID)
	}
}
