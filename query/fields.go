package query

// FieldSpec describes one field extracted by a Select step: where to look
// (CSS selector, relative to the current scope root) and what to take from
// the first matching element.
//
// An empty Attribute means "trimmed text content". The attributes "href"
// and "src" resolve to absolute URLs against the page's final location.
// AsMarkdown extracts the matched element's HTML converted to Markdown and
// is mutually exclusive with Attribute.
type FieldSpec struct {
	Name       string
	Selector   string
	Attribute  string
	AsMarkdown bool
}

// Text builds a field that extracts the trimmed text content of the first
// element matching selector.
func Text(name, selector string) FieldSpec {
	return FieldSpec{Name: name, Selector: selector}
}

// Attr builds a field that extracts the named attribute of the first
// element matching selector.
func Attr(name, selector, attribute string) FieldSpec {
	return FieldSpec{Name: name, Selector: selector, Attribute: attribute}
}

// Markdown builds a field that extracts the first matching element's HTML
// rendered as Markdown.
func Markdown(name, selector string) FieldSpec {
	return FieldSpec{Name: name, Selector: selector, AsMarkdown: true}
}

// normalizeFields validates a field list. Order is preserved exactly as
// given; it determines nothing about extraction but keeps results stable
// for callers that serialise records. An empty list is legal here — the
// executor's no-results check is the only emptiness rule.
func normalizeFields(fields []FieldSpec) ([]FieldSpec, error) {
	out := make([]FieldSpec, 0, len(fields))
	for _, f := range fields {
		if f.Name == "" || f.Selector == "" {
			return nil, errInvalidPipeline()
		}
		if f.AsMarkdown && f.Attribute != "" {
			return nil, errInvalidPipeline()
		}
		out = append(out, f)
	}
	return out, nil
}
