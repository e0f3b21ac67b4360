package mention

import (
	"strings"
	"testing"
)

func TestEncodeDecode_FillsPublishedAndKeepsNullLink(t *testing.T) {
	t.Parallel()

	raw, err := Encode(Mention{ID: "m_1", Canon: "Some Title", Title: "Some Title", PublishedTS: 0})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(raw, `"link":null`) || !strings.Contains(raw, `"published":"1970-01-01T00:00:00Z"`) {
		t.Fatalf("unexpected encoding: %s", raw)
	}

	m, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.LinkValue() != "" || m.Canon != "Some Title" {
		t.Fatalf("unexpected decoded mention: %+v", m)
	}
}

func TestEncode_IsStable(t *testing.T) {
	t.Parallel()

	m := Mention{ID: "m_2", Canon: "https://a.example/x", Link: StringPtr("https://a.example/x"), PublishedTS: 1700000000}
	first, err := Encode(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	second, err := Encode(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical encodings, got %s and %s", first, second)
	}
}

func TestDecode_RejectsIncompleteRecords(t *testing.T) {
	t.Parallel()

	cases := []string{
		"",
		"not json",
		`{"title":"no id","canon":"x"}`,
		`{"id":"m_3","title":"no keys"}`,
	}
	for _, raw := range cases {
		if _, err := Decode(raw); err == nil {
			t.Fatalf("expected decode error for %q", raw)
		}
	}
	if _, err := Encode(Mention{}); err == nil {
		t.Fatalf("expected encode error without id")
	}
}

func TestStringPtr(t *testing.T) {
	t.Parallel()

	if StringPtr("   ") != nil {
		t.Fatalf("expected nil for blank value")
	}
	if p := StringPtr(" x "); p == nil || *p != "x" {
		t.Fatalf("unexpected pointer value: %v", p)
	}
}
