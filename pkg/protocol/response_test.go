package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseString(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Response
		want  string
	}{
		{
			name:  "single field",
			build: func() *Response { return NewResponse().Add("ougmcim") },
			want:  "ougmcim\n",
		},
		{
			name:  "multiple fields joined with pipe",
			build: func() *Response { return NewResponse().Add("hijklmn").Add("janedoe") },
			want:  "hijklmn|janedoe\n",
		},
		{
			name:  "empty field still contributes a separator",
			build: func() *Response { return NewResponse().Add("hijklmn").Add("") },
			want:  "hijklmn|\n",
		},
		{
			name:  "list field renders parenthesized",
			build: func() *Response { return NewResponse().Add("abcdefg").AddList([]string{"a", "b", "c"}) },
			want:  "abcdefg|(a,b,c)\n",
		},
		{
			name:  "empty list contributes nothing",
			build: func() *Response { return NewResponse().Add("abcdefg").AddList(nil) },
			want:  "abcdefg\n",
		},
		{
			name:  "nested builder omits newline",
			build: func() *Response { return Nested().Add("id").Add("ref") },
			want:  "id|ref",
		},
		{
			name:  "no fields",
			build: func() *Response { return NewResponse() },
			want:  "\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.build().String())
		})
	}
}

func TestEscape(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain text passes through",
			input: "Hello world",
			want:  "Hello world",
		},
		{
			name:  "quotes doubled without wrapping when no comma",
			input: `say "hi"`,
			want:  `say ""hi""`,
		},
		{
			name:  "comma triggers wrapping",
			input: "a,b",
			want:  `"a,b"`,
		},
		{
			name:  "quotes and comma",
			input: `Hello, "world"!`,
			want:  `"Hello, ""world""!"`,
		},
		{
			name:  "pipe is not escaped here",
			input: "a|b",
			want:  "a|b",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Escape(tt.input))
		})
	}
}

func TestAddEscaped(t *testing.T) {
	got := NewResponse().
		Add("opqrstu").
		AddEscaped(`Hi "there", folks`).
		String()

	assert.Equal(t, "opqrstu|\"Hi \"\"there\"\", folks\"\n", got)
}
