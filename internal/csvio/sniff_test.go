package csvio

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		name   string
		sample string
		want   rune
	}{
		{
			name:   "comma",
			sample: "id,title,price\n1,Shirt,10\n2,Hat,5\n",
			want:   ',',
		},
		{
			name:   "semicolon with commas in prices",
			sample: "id;title;price\n1;Shirt;10,50\n2;Hat;5,00\n",
			want:   ';',
		},
		{
			name:   "tab",
			sample: "id\ttitle\tprice\n1\tShirt\t10\n",
			want:   '\t',
		},
		{
			name:   "pipe",
			sample: "id|title\n1|Shirt\n",
			want:   '|',
		},
		{
			name:   "quoted commas ignored",
			sample: "id;title\n1;\"Shirt, blue\"\n2;\"Hat, red\"\n",
			want:   ';',
		},
		{
			name:   "single column falls back to comma",
			sample: "title\nShirt\nHat\n",
			want:   ',',
		},
		{
			name:   "empty sample",
			sample: "",
			want:   ',',
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SniffDelimiter([]byte(tt.sample)))
		})
	}
}

func TestSniffDelimiter_TruncatedSample(t *testing.T) {
	var b strings.Builder
	b.WriteString("a;b;c\n")
	for b.Len() < SampleSize+100 {
		b.WriteString("1;2;3\n")
	}
	sample := []byte(b.String())[:SampleSize]

	assert.Equal(t, ';', SniffDelimiter(sample))
}
