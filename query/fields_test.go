package query

import "testing"

func TestNormalizeFields(t *testing.T) {
	tests := []struct {
		name   string
		fields []FieldSpec
		ok     bool
	}{
		{"text field", []FieldSpec{Text("title", "p")}, true},
		{"attr field", []FieldSpec{Attr("link", "a", "href")}, true},
		{"markdown field", []FieldSpec{Markdown("body", "article")}, true},
		{"empty list", nil, true},
		{"missing name", []FieldSpec{{Selector: "p"}}, false},
		{"missing selector", []FieldSpec{{Name: "title"}}, false},
		{"markdown with attribute", []FieldSpec{{Name: "x", Selector: "a", Attribute: "href", AsMarkdown: true}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := normalizeFields(tt.fields)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !IsCode(err, ErrCodeInvalidPipeline) {
				t.Fatalf("expected invalid pipeline error, got %v", err)
			}
			if tt.ok && len(out) != len(tt.fields) {
				t.Fatalf("order/length not preserved: %v", out)
			}
		})
	}
}
