package page

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// BlockType enumerates what a page can render.
type BlockType string

const (
	BlockLink    BlockType = "link"
	BlockProduct BlockType = "product"
	BlockText    BlockType = "text"
	BlockSocials BlockType = "socials"
	BlockVideo   BlockType = "video"
)

const (
	// MaxBlocks caps the document so one page can't balloon storage or
	// renderer work.
	MaxBlocks    = 50
	maxTextLen   = 2000
	maxTitleLen  = 120
	maxSocials   = 12
	maxConfigLen = 256 * 1024
)

// Config is stored as JSONB in `pages.config` and mirrored verbatim into the
// blob store on publish. Versioned so the document can evolve without
// breaking stored pages.
type Config struct {
	Version int     `json:"version"`
	Title   string  `json:"title,omitempty"`
	Bio     string  `json:"bio,omitempty"`
	Theme   Theme   `json:"theme"`
	Blocks  []Block `json:"blocks"`
}

type Theme struct {
	Preset string `json:"preset,omitempty"`
	Accent string `json:"accent,omitempty"` // #rrggbb
}

// Block is the union of all block shapes; Type decides which fields matter.
type Block struct {
	ID    string    `json:"id"`
	Type  BlockType `json:"type"`
	Title string    `json:"title,omitempty"`

	URL       string       `json:"url,omitempty"`       // link, video
	Text      string       `json:"text,omitempty"`      // text
	ProductID int64        `json:"productId,omitempty"` // product
	Links     []SocialLink `json:"links,omitempty"`     // socials
}

type SocialLink struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

type ValidationError struct {
	Code    string
	Message string
}

func (e ValidationError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

var (
	themePresets = map[string]bool{
		"": true, "light": true, "dark": true, "midnight": true, "sand": true,
	}
	accentPattern  = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	blockIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
)

// ParseAndValidate checks a raw config document and returns the parsed form.
// Unknown block types are rejected; evolution happens through version.
func ParseAndValidate(raw json.RawMessage) (Config, error) {
	if len(raw) > maxConfigLen {
		return Config{}, ValidationError{Code: "CONFIG_TOO_LARGE", Message: "config document too large"}
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, ValidationError{Code: "VALIDATION_FAILED", Message: "invalid config json"}
	}
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if cfg.Version != 1 {
		return Config{}, ValidationError{Code: "CONFIG_VERSION_UNSUPPORTED", Message: fmt.Sprintf("unsupported config version %d", cfg.Version)}
	}

	if len(cfg.Title) > maxTitleLen {
		return Config{}, ValidationError{Code: "TITLE_TOO_LONG", Message: "title too long"}
	}
	if !themePresets[cfg.Theme.Preset] {
		return Config{}, ValidationError{Code: "THEME_UNKNOWN", Message: "unknown theme preset"}
	}
	if cfg.Theme.Accent != "" && !accentPattern.MatchString(cfg.Theme.Accent) {
		return Config{}, ValidationError{Code: "THEME_ACCENT_INVALID", Message: "accent must be #rrggbb"}
	}

	if len(cfg.Blocks) > MaxBlocks {
		return Config{}, ValidationError{Code: "TOO_MANY_BLOCKS", Message: fmt.Sprintf("at most %d blocks", MaxBlocks)}
	}

	seen := make(map[string]bool, len(cfg.Blocks))
	for i, b := range cfg.Blocks {
		if err := validateBlock(i, b); err != nil {
			return Config{}, err
		}
		if seen[b.ID] {
			return Config{}, ValidationError{Code: "BLOCK_ID_DUPLICATE", Message: fmt.Sprintf("block %d: duplicate id %q", i, b.ID)}
		}
		seen[b.ID] = true
	}

	return cfg, nil
}

func validateBlock(i int, b Block) error {
	// Click analytics key on block ids, so every block carries one.
	if !blockIDPattern.MatchString(b.ID) {
		return ValidationError{Code: "BLOCK_ID_INVALID", Message: fmt.Sprintf("block %d: id required ([a-zA-Z0-9_-], max 64)", i)}
	}
	if len(b.Title) > maxTitleLen {
		return ValidationError{Code: "BLOCK_TITLE_TOO_LONG", Message: fmt.Sprintf("block %d: title too long", i)}
	}

	switch b.Type {
	case BlockLink:
		if strings.TrimSpace(b.Title) == "" {
			return ValidationError{Code: "LINK_TITLE_REQUIRED", Message: fmt.Sprintf("block %d: link title required", i)}
		}
		if !isHTTPURL(b.URL) {
			return ValidationError{Code: "LINK_URL_INVALID", Message: fmt.Sprintf("block %d: url must be http(s)", i)}
		}
	case BlockProduct:
		if b.ProductID <= 0 {
			return ValidationError{Code: "PRODUCT_ID_REQUIRED", Message: fmt.Sprintf("block %d: productId required", i)}
		}
	case BlockText:
		if strings.TrimSpace(b.Text) == "" {
			return ValidationError{Code: "TEXT_REQUIRED", Message: fmt.Sprintf("block %d: text required", i)}
		}
		if len(b.Text) > maxTextLen {
			return ValidationError{Code: "TEXT_TOO_LONG", Message: fmt.Sprintf("block %d: text too long", i)}
		}
	case BlockSocials:
		if len(b.Links) == 0 || len(b.Links) > maxSocials {
			return ValidationError{Code: "SOCIALS_INVALID", Message: fmt.Sprintf("block %d: 1-%d links required", i, maxSocials)}
		}
		for _, l := range b.Links {
			if strings.TrimSpace(l.Platform) == "" || !isHTTPURL(l.URL) {
				return ValidationError{Code: "SOCIAL_LINK_INVALID", Message: fmt.Sprintf("block %d: each link needs platform and http(s) url", i)}
			}
		}
	case BlockVideo:
		if !isHTTPURL(b.URL) {
			return ValidationError{Code: "VIDEO_URL_INVALID", Message: fmt.Sprintf("block %d: url must be http(s)", i)}
		}
	default:
		return ValidationError{Code: "BLOCK_TYPE_UNKNOWN", Message: fmt.Sprintf("block %d: unknown type %q", i, b.Type)}
	}
	return nil
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
