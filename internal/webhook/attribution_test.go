package webhook

import "testing"

func TestLandingSiteParam(t *testing.T) {
	cases := []struct {
		landing string
		key     string
		want    string
	}{
		{"/pages/ada?utm_source=linkbio&lb=1", "utm_source", "linkbio"},
		{"https://ada.myshopify.com/products/mug?utm_source=linkbio", "utm_source", "linkbio"},
		{"/", "utm_source", ""},
		{"", "utm_source", ""},
		{"/checkout?utm_source=newsletter", "utm_source", "newsletter"},
		{"/pages/ada?utm_source=linkbio", "", ""},
		{"://bad url", "utm_source", ""},
	}
	for _, tc := range cases {
		if got := landingSiteParam(tc.landing, tc.key); got != tc.want {
			t.Fatalf("landingSiteParam(%q, %q) = %q, want %q", tc.landing, tc.key, got, tc.want)
		}
	}
}

func TestOrderAttributed(t *testing.T) {
	var p orderPaidPayload

	p.LandingSite = "/pages/ada?utm_source=linkbio"
	if !p.attributed() {
		t.Fatalf("utm-tagged landing site should attribute")
	}

	// Substring of another source must not match.
	p.LandingSite = "/pages/ada?utm_source=linkbiopro"
	if p.attributed() {
		t.Fatalf("foreign utm_source attributed")
	}

	p.LandingSite = "/"
	if p.attributed() {
		t.Fatalf("bare landing site attributed")
	}

	p.NoteAttributes = []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}{{Name: visitorNoteAttribute, Value: "v-123"}}
	if !p.attributed() {
		t.Fatalf("visitor note attribute should attribute")
	}

	p.NoteAttributes[0].Value = ""
	if p.attributed() {
		t.Fatalf("empty visitor note attributed")
	}
}

func TestCurrencyOrDefault(t *testing.T) {
	if got := currencyOrDefault(""); got != "USD" {
		t.Fatalf("empty currency = %q, want USD", got)
	}
	if got := currencyOrDefault(" eur "); got != "EUR" {
		t.Fatalf("currency = %q, want EUR", got)
	}
}
