package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"plain words", "Red Running Shoes", []string{"red", "running", "shoes"}},
		{"camel case", "productName", []string{"productname", "product", "name"}},
		{"snake case", "sku_code", []string{"skucode", "sku", "code"}},
		{"acronym", "HTTPServer", []string{"httpserver", "http", "server"}},
		{"digits kept", "size 9", []string{"size", "9"}},
		{"short words dropped", "a b cd", []string{"cd"}},
		{"unicode letters", "Café crème", []string{"café", "crème"}},
		{"punctuation", "hello, world!", []string{"hello", "world"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.input))
		})
	}
}

func TestFilterStopWords(t *testing.T) {
	stop := BuildStopWordMap(DefaultStopWords)
	got := FilterStopWords(Tokenize("The Lord of the Rings"), stop)
	assert.Equal(t, []string{"lord", "rings"}, got)
}

func TestFlattenText_SortedAndNested(t *testing.T) {
	fields := map[string]any{
		"title":  "Blue Lamp",
		"brand":  "Acme",
		"price":  12.5,
		"tags":   []any{"home", "light"},
		"meta":   map[string]any{"color": "blue"},
		"active": true,
		"none":   nil,
	}
	assert.Equal(t, "Acme blue 12.5 home light Blue Lamp", FlattenText(fields))
}
