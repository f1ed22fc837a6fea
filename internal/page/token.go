package page

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PreviewToken lets a merchant share an unpublished draft: the public
// preview endpoint resolves the page through the token while it is live.
type PreviewToken struct {
	ID        string     `json:"id"`
	PageID    string     `json:"pageId"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (r *Repository) CreatePreviewToken(ctx context.Context, pageID string, expiresAt time.Time) (*PreviewToken, error) {
	const q = `
INSERT INTO preview_tokens (page_id, token, expires_at)
VALUES ($1, $2, $3)
RETURNING id, page_id, token, expires_at, revoked_at, created_at`
	tok := &PreviewToken{}
	err := r.db.QueryRow(ctx, q, pageID, uuid.NewString(), expiresAt).Scan(
		&tok.ID, &tok.PageID, &tok.Token, &tok.ExpiresAt, &tok.RevokedAt, &tok.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return tok, nil
}

// FindByPreviewToken resolves a draft page through a live token. Expired or
// revoked tokens behave exactly like unknown ones.
func (r *Repository) FindByPreviewToken(ctx context.Context, token string, now time.Time) (*Page, string, error) {
	const q = `
SELECT p.id, p.shop_id, p.handle, p.config, p.published, p.version, p.created_at, p.updated_at,
       s.shop_domain
FROM preview_tokens t
JOIN pages p ON p.id = t.page_id
JOIN shops s ON s.id = p.shop_id
WHERE t.token = $1 AND t.revoked_at IS NULL AND t.expires_at > $2`
	p := &Page{}
	var shopDomain string
	err := r.db.QueryRow(ctx, q, token, now).Scan(
		&p.ID, &p.ShopID, &p.Handle, &p.Config, &p.Published, &p.Version, &p.CreatedAt, &p.UpdatedAt,
		&shopDomain,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return p, shopDomain, nil
}

// RevokePreviewTokens kills every live token for a page.
func (r *Repository) RevokePreviewTokens(ctx context.Context, pageID string) error {
	const q = `UPDATE preview_tokens SET revoked_at = now() WHERE page_id = $1 AND revoked_at IS NULL`
	_, err := r.db.Exec(ctx, q, pageID)
	return err
}

// SweepPreviewTokens deletes long-dead tokens; a periodic dev task, not a
// correctness requirement.
func (r *Repository) SweepPreviewTokens(ctx context.Context, olderThan time.Time) error {
	const q = `DELETE FROM preview_tokens WHERE expires_at < $1`
	_, err := r.db.Exec(ctx, q, olderThan)
	return err
}
