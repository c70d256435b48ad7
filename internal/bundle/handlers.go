package bundle

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bundle-admin/internal/common"
	"github.com/noah-isme/bundle-admin/internal/media"
)

const defaultMaxUpload = 20 << 20

// Handler exposes the admin bundle endpoints.
type Handler struct {
	service   *Service
	maxUpload int64
	logger    zerolog.Logger
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service        *Service
	MaxUploadBytes int64
	Logger         zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	limit := cfg.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUpload
	}
	return &Handler{service: cfg.Service, maxUpload: limit, logger: cfg.Logger}
}

// Routes mounts the bundle endpoints. create wraps the create handlers, for
// example with idempotency.
func (h *Handler) Routes(r chi.Router, create func(http.Handler) http.Handler) {
	if create == nil {
		create = func(next http.Handler) http.Handler { return next }
	}
	r.Get("/bundles", h.List)
	r.Method(http.MethodPost, "/bundles", create(http.HandlerFunc(h.Create)))
	r.Method(http.MethodPost, "/bundles/infinite", create(http.HandlerFunc(h.CreateInfinite)))
	r.Put("/bundles/infinite/{id}", h.UpdateInfinite)
	r.Get("/bundles/{id}", h.Get)
	r.Put("/bundles/{id}", h.Update)
	r.Delete("/bundles/{id}", h.Delete)
	r.Patch("/products/{productId}/status", h.SetStatus)
	r.Delete("/products/{productId}", h.DeleteProduct)
}

func (h *Handler) ready(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "bundle service not configured", nil)
		return "", false
	}
	shop, ok := common.Shop(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing shop session", nil)
		return "", false
	}
	return shop, true
}

// List handles GET /api/v1/bundles.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	shop, ok := h.ready(w, r)
	if !ok {
		return
	}
	page, perPage := common.ParsePagination(r, 20, 100)
	items, total, err := h.service.List(r.Context(), shop, perPage, common.Offset(page, perPage))
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       items,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}

// Get handles GET /api/v1/bundles/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	shop, ok := h.ready(w, r)
	if !ok {
		return
	}
	id, ok := h.bundleID(w, r)
	if !ok {
		return
	}
	b, err := h.service.Get(r.Context(), shop, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": b})
}

// Create handles POST /api/v1/bundles. The body is either JSON or a
// multipart form whose "formData" field carries the JSON request and whose
// "media_<index>" parts carry the files listed in its media array.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	shop, ok := h.ready(w, r)
	if !ok {
		return
	}
	in, err := h.decodeCreate(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.service.Create(r.Context(), shop, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"success": true, "data": res})
}

// Update handles PUT /api/v1/bundles/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	shop, ok := h.ready(w, r)
	if !ok {
		return
	}
	id, ok := h.bundleID(w, r)
	if !ok {
		return
	}
	var in UpdateInput
	if err := decodeJSON(r.Body, &in); err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.service.Update(r.Context(), shop, id, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, res)
}

// Delete handles DELETE /api/v1/bundles/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	shop, ok := h.ready(w, r)
	if !ok {
		return
	}
	id, ok := h.bundleID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), shop, id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateInfinite handles POST /api/v1/bundles/infinite.
func (h *Handler) CreateInfinite(w http.ResponseWriter, r *http.Request) {
	shop, ok := h.ready(w, r)
	if !ok {
		return
	}
	var in InfiniteInput
	if err := decodeJSON(r.Body, &in); err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.service.CreateInfinite(r.Context(), shop, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"success": true, "data": res})
}

// UpdateInfinite handles PUT /api/v1/bundles/infinite/{id}.
func (h *Handler) UpdateInfinite(w http.ResponseWriter, r *http.Request) {
	shop, ok := h.ready(w, r)
	if !ok {
		return
	}
	id, ok := h.bundleID(w, r)
	if !ok {
		return
	}
	var in InfiniteInput
	if err := decodeJSON(r.Body, &in); err != nil {
		h.writeError(w, err)
		return
	}
	b, err := h.service.UpdateInfinite(r.Context(), shop, id, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"success": true, "data": b})
}

type statusRequest struct {
	Status Status `json:"status"`
}

// SetStatus handles PATCH /api/v1/products/{productId}/status.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	shop, ok := h.ready(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		h.writeError(w, err)
		return
	}
	productID := chi.URLParam(r, "productId")
	if err := h.service.SetStatus(r.Context(), shop, productID, Status(strings.ToLower(string(req.Status)))); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"success": true})
}

// DeleteProduct handles DELETE /api/v1/products/{productId}.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	shop, ok := h.ready(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteProduct(r.Context(), shop, chi.URLParam(r, "productId")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) bundleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "bundle id must be a positive integer", nil)
		return 0, false
	}
	return id, true
}

func decodeJSON(body io.Reader, dst any) error {
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return common.NewAppError("INVALID_BODY", "invalid JSON body", http.StatusBadRequest, err)
	}
	return nil
}

func (h *Handler) decodeCreate(w http.ResponseWriter, r *http.Request) (CreateInput, error) {
	var in CreateInput
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return in, decodeJSON(r.Body, &in)
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		return in, common.NewAppError("INVALID_FORM", "unable to parse multipart form", http.StatusBadRequest, err)
	}
	if err := json.Unmarshal([]byte(r.FormValue("formData")), &in); err != nil {
		return in, common.NewAppError("INVALID_BODY", "invalid formData payload", http.StatusBadRequest, err)
	}
	for i, meta := range in.MediaMeta {
		if meta.IsProductImage {
			in.Media = append(in.Media, media.Item{Name: meta.Name, MimeType: meta.Type, AltText: meta.AltText, Src: meta.Src, IsProductImage: true})
			continue
		}
		files := r.MultipartForm.File[fmt.Sprintf("media_%d", i)]
		if len(files) == 0 {
			h.logger.Warn().Str("media", meta.Name).Msg("media_file_missing")
			continue
		}
		f, err := files[0].Open()
		if err != nil {
			return in, common.NewAppError("INVALID_FORM", "unable to read media file", http.StatusBadRequest, err)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return in, common.NewAppError("INVALID_FORM", "unable to read media file", http.StatusBadRequest, err)
		}
		mimeType := meta.Type
		if mimeType == "" {
			mimeType = files[0].Header.Get("Content-Type")
		}
		in.Media = append(in.Media, media.Item{
			Name:     meta.Name,
			MimeType: mimeType,
			Size:     int64(len(data)),
			AltText:  meta.AltText,
			Data:     data,
		})
	}
	return in, nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var bundleErr *Error
	if errors.As(err, &bundleErr) {
		status := bundleErr.HTTPStatus()
		if status >= http.StatusInternalServerError {
			h.logger.Error().Err(err).Str("kind", string(bundleErr.Kind)).Msg("bundle_request_failed")
		}
		common.JSONError(w, status, bundleErr.Code(), bundleErr.Error(), bundleErr.Details)
		return
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		var details any
		if appErr.Details != nil {
			details = appErr.Details
		}
		var syntaxErr *json.SyntaxError
		if errors.As(appErr.Err, &syntaxErr) {
			details = map[string]any{"offset": syntaxErr.Offset}
		}
		common.JSONError(w, status, appErr.Code, appErr.Message, details)
		return
	}
	h.logger.Error().Err(err).Msg("bundle_request_failed")
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
