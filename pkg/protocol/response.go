package protocol

import "strings"

// Response accumulates ordered wire fields and serializes them exactly once.
// Fields are joined with '|' and the line is terminated with '\n', unless the
// builder was created with Nested() for embedding inside another response.
type Response struct {
	parts  []string
	nested bool
}

// NewResponse returns a builder for a complete wire line.
func NewResponse() *Response {
	return &Response{}
}

// Nested returns a builder whose output omits the trailing newline, for use
// as a field inside a parent response.
func Nested() *Response {
	return &Response{nested: true}
}

// Add appends a field verbatim. Structural fields (request ids, discussion
// ids, references) never need escaping.
func (r *Response) Add(field string) *Response {
	r.parts = append(r.parts, field)
	return r
}

// AddEscaped appends a field with CSV-style escaping applied. Content fields
// always go through here since they may contain reserved characters.
func (r *Response) AddEscaped(field string) *Response {
	r.parts = append(r.parts, Escape(field))
	return r
}

// AddList appends a parenthesized, comma-joined list field. An empty list
// contributes nothing to the response, not even empty parens.
func (r *Response) AddList(items []string) *Response {
	if len(items) == 0 {
		return r
	}
	r.parts = append(r.parts, "("+strings.Join(items, ",")+")")
	return r
}

// String serializes the response.
func (r *Response) String() string {
	line := strings.Join(r.parts, "|")
	if r.nested {
		return line
	}
	return line + "\n"
}

// Escape doubles every literal quote and, if the result still contains a
// comma, wraps the whole value in one additional pair of quotes. Values with
// neither quotes nor commas pass through unchanged.
func Escape(s string) string {
	escaped := strings.ReplaceAll(s, `"`, `""`)
	if strings.Contains(escaped, ",") {
		return `"` + escaped + `"`
	}
	return escaped
}
