package page

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestParseAndValidate_FullDocument(t *testing.T) {
	raw := json.RawMessage(`{
		"version": 1,
		"title": "Ada's Shop",
		"bio": "Ceramics, small batches.",
		"theme": {"preset": "dark", "accent": "#FF5A5F"},
		"blocks": [
			{"id": "b1", "type": "link", "title": "Lookbook", "url": "https://example.com/lookbook"},
			{"id": "b2", "type": "product", "productId": 632910392},
			{"id": "b3", "type": "text", "text": "Free shipping over $50."},
			{"id": "b4", "type": "socials", "links": [{"platform": "instagram", "url": "https://instagram.com/ada"}]},
			{"id": "b5", "type": "video", "url": "https://youtube.com/watch?v=x"}
		]
	}`)

	cfg, err := ParseAndValidate(raw)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Version != 1 || len(cfg.Blocks) != 5 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestParseAndValidate_DefaultsVersion(t *testing.T) {
	cfg, err := ParseAndValidate(json.RawMessage(`{"blocks": []}`))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Version != 1 {
		t.Fatalf("version = %d, want 1", cfg.Version)
	}
}

func TestParseAndValidate_Rejections(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		code string
	}{
		{"bad json", `{`, "VALIDATION_FAILED"},
		{"future version", `{"version": 2, "blocks": []}`, "CONFIG_VERSION_UNSUPPORTED"},
		{"unknown block type", `{"blocks": [{"id":"b1","type":"carousel"}]}`, "BLOCK_TYPE_UNKNOWN"},
		{"missing block id", `{"blocks": [{"type":"text","text":"hi"}]}`, "BLOCK_ID_INVALID"},
		{"duplicate block id", `{"blocks": [{"id":"b1","type":"text","text":"a"},{"id":"b1","type":"text","text":"b"}]}`, "BLOCK_ID_DUPLICATE"},
		{"link without url", `{"blocks": [{"id":"b1","type":"link","title":"x"}]}`, "LINK_URL_INVALID"},
		{"link with javascript url", `{"blocks": [{"id":"b1","type":"link","title":"x","url":"javascript:alert(1)"}]}`, "LINK_URL_INVALID"},
		{"product without id", `{"blocks": [{"id":"b1","type":"product"}]}`, "PRODUCT_ID_REQUIRED"},
		{"empty socials", `{"blocks": [{"id":"b1","type":"socials","links":[]}]}`, "SOCIALS_INVALID"},
		{"bad accent", `{"theme":{"accent":"red"},"blocks":[]}`, "THEME_ACCENT_INVALID"},
		{"unknown preset", `{"theme":{"preset":"neon"},"blocks":[]}`, "THEME_UNKNOWN"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ParseAndValidate(json.RawMessage(c.raw))
			var ve ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if ve.Code != c.code {
				t.Fatalf("code = %s, want %s", ve.Code, c.code)
			}
		})
	}
}

func TestParseAndValidate_BlockCap(t *testing.T) {
	var blocks []string
	for i := 0; i <= MaxBlocks; i++ {
		blocks = append(blocks, fmt.Sprintf(`{"id":"b%d","type":"text","text":"t"}`, i))
	}
	raw := `{"blocks":[` + strings.Join(blocks, ",") + `]}`

	_, err := ParseAndValidate(json.RawMessage(raw))
	var ve ValidationError
	if !errors.As(err, &ve) || ve.Code != "TOO_MANY_BLOCKS" {
		t.Fatalf("err = %v, want TOO_MANY_BLOCKS", err)
	}
}
