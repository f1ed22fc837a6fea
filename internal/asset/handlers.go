package asset

import (
	"errors"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"linkbio/internal/api"
	"linkbio/pkg/blobstore"
	"linkbio/pkg/shopify"
)

const maxUploadBytes = 5 << 20 // 5 MiB

// allowedTypes maps accepted content types to the stored extension. The
// extension always comes from here, never from the uploaded filename.
var allowedTypes = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

var blobNamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

type Handlers struct {
	Repo          *Repository
	Blobs         blobstore.Store
	PublicBaseURL string
	Log           zerolog.Logger
}

// Upload accepts one multipart file field named "file", stores the bytes in
// the blob store and the metadata in Postgres, and returns the public URL.
func (h Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	s := api.ShopFromContext(r.Context())
	if s == nil {
		api.WriteUnauthorized(w, "missing shop identity")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+64*1024)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		api.WriteError(w, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE", "upload exceeds 5 MiB")
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		api.WriteValidationError(w, `multipart field "file" is required`)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		api.WriteValidationError(w, "unreadable upload")
		return
	}
	if len(data) > maxUploadBytes {
		api.WriteError(w, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE", "upload exceeds 5 MiB")
		return
	}
	if len(data) == 0 {
		api.WriteValidationError(w, "empty upload")
		return
	}

	contentType := resolveContentType(hdr.Header.Get("Content-Type"), data)
	ext, ok := allowedTypes[contentType]
	if !ok {
		api.WriteError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "only png, jpeg, gif, webp and svg uploads are accepted")
		return
	}

	key := BlobKey(s.Domain, uuid.NewString()+ext)
	if err := h.Blobs.Put(r.Context(), key, blobstore.Object{ContentType: contentType, Data: data}); err != nil {
		h.Log.Error().Err(err).Str("shop", s.Domain).Msg("asset blob write failed")
		api.WriteInternalError(w)
		return
	}

	a, err := h.Repo.Insert(r.Context(), s.ID, key, path.Base(hdr.Filename), contentType, int64(len(data)))
	if err != nil {
		// Row insert failed; don't leave an orphaned blob behind.
		_ = h.Blobs.Delete(r.Context(), key)
		h.Log.Error().Err(err).Str("shop", s.Domain).Msg("asset insert failed")
		api.WriteInternalError(w)
		return
	}

	a.URL = h.publicURL(s.Domain, key)
	api.WriteJSON(w, http.StatusCreated, a)
}

func (h Handlers) List(w http.ResponseWriter, r *http.Request) {
	s := api.ShopFromContext(r.Context())
	if s == nil {
		api.WriteUnauthorized(w, "missing shop identity")
		return
	}

	items, err := h.Repo.ListByShop(r.Context(), s.ID)
	if err != nil {
		api.WriteInternalError(w)
		return
	}
	if items == nil {
		items = []Asset{}
	}
	for i := range items {
		items[i].URL = h.publicURL(s.Domain, items[i].Key)
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	s := api.ShopFromContext(r.Context())
	if s == nil {
		api.WriteUnauthorized(w, "missing shop identity")
		return
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		api.WriteValidationError(w, "missing id")
		return
	}

	key, err := h.Repo.Delete(r.Context(), s.ID, id)
	if errors.Is(err, ErrNotFound) {
		api.WriteNotFound(w, "asset not found")
		return
	}
	if err != nil {
		api.WriteInternalError(w)
		return
	}

	if err := h.Blobs.Delete(r.Context(), key); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		h.Log.Warn().Err(err).Str("key", key).Msg("asset blob delete failed")
	}
	api.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ServePublic streams stored bytes with the recorded content type. The blob
// key is reconstructed from the path, so the name is checked against a strict
// pattern first.
func (h Handlers) ServePublic(w http.ResponseWriter, r *http.Request) {
	domain := shopify.NormalizeShopDomain(chi.URLParam(r, "shop"))
	if !shopify.IsValidShopDomain(domain) {
		api.WriteValidationError(w, "invalid shop domain")
		return
	}
	name := chi.URLParam(r, "key")
	if !blobNamePattern.MatchString(name) || strings.Contains(name, "..") {
		api.WriteNotFound(w, "asset not found")
		return
	}

	obj, err := h.Blobs.Get(r.Context(), BlobKey(domain, name))
	if errors.Is(err, blobstore.ErrNotFound) {
		api.WriteNotFound(w, "asset not found")
		return
	}
	if err != nil {
		api.WriteInternalError(w)
		return
	}

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.Data)
}

func (h Handlers) publicURL(shopDomain, key string) string {
	return h.PublicBaseURL + "/v1/public/assets/" + shopDomain + "/" + path.Base(key)
}

// BlobKey is where an asset's bytes live: assets/<shop>/<name>.
func BlobKey(shopDomain, name string) string {
	return "assets/" + shopDomain + "/" + name
}

// resolveContentType trusts sniffing for binary image formats and falls back
// to the declared type for SVG, which sniffs as generic XML or text.
func resolveContentType(declared string, data []byte) string {
	sniffed := http.DetectContentType(data)
	if _, ok := allowedTypes[sniffed]; ok {
		return sniffed
	}
	declared, _, _ = strings.Cut(declared, ";")
	declared = strings.TrimSpace(strings.ToLower(declared))
	if declared == "image/svg+xml" && (strings.HasPrefix(sniffed, "text/xml") || strings.HasPrefix(sniffed, "text/plain")) {
		return declared
	}
	return sniffed
}
