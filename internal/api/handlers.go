package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/onto/internal/service"
)

// GraphLimits bounds traversal depth for GET /graph/{id}.
type GraphLimits struct {
	DefaultDepth int
	MaxDepth     int
}

const (
	defaultPageSize = 50
	maxPageSize     = 500
	maxBodyBytes    = 10 << 20
)

// Handler holds API route handlers.
type Handler struct {
	svc    *service.Service
	limits GraphLimits
}

// NewHandler creates a new Handler.
func NewHandler(svc *service.Service, limits GraphLimits) *Handler {
	if limits.MaxDepth <= 0 {
		limits.MaxDepth = 10
	}
	if limits.DefaultDepth < 0 || limits.DefaultDepth > limits.MaxDepth {
		limits.DefaultDepth = limits.MaxDepth
	}
	return &Handler{svc: svc, limits: limits}
}

// filePath extracts the store path from the URL (everything after /files/).
// Supports encoded slashes from OpenAPI clients (e.g. people%2Fjdoe.yaml).
func filePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Validate handles GET /api/validate.
//
//	@Summary		Validate the whole store
//	@Tags			validation
//	@Produce		json
//	@Param			strict	query		bool	false	"Treat warnings as failures"
//	@Success		200		{object}	ValidateResponse
//	@Security		BearerAuth
//	@Router			/validate [get]
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	strict, _ := strconv.ParseBool(r.URL.Query().Get("strict"))
	report, passed, err := h.svc.Validate(r.Context(), strict)
	if err != nil {
		writeError(w, "validate", err)
		return
	}
	writeJSON(w, http.StatusOK, ValidateResponse{Passed: passed, Strict: strict, Report: report})
}

// Search handles GET /api/search.
//
//	@Summary		Search instances and relations
//	@Tags			search
//	@Produce		json
//	@Param			q	query		string	true	"Query, e.g. :Person.email: company"
//	@Success		200	{object}	SearchResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	hits, err := h.svc.SearchHits(r.Context(), q)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: q, Results: hits})
}

// Graph handles GET /api/graph/{id}.
//
//	@Summary		Walk outgoing edges from an instance
//	@Tags			graph
//	@Produce		json
//	@Param			id		path		string	true	"Start instance id"
//	@Param			depth	query		int		false	"Maximum depth"
//	@Success		200		{object}	GraphResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/graph/{id} [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	depth := h.limits.DefaultDepth
	if raw := r.URL.Query().Get("depth"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("depth must be a non-negative integer"))
			return
		}
		depth = d
	}
	if depth > h.limits.MaxDepth {
		depth = h.limits.MaxDepth
	}

	view, steps, err := h.svc.Traverse(r.Context(), id, depth)
	if err != nil {
		writeError(w, "graph", err)
		return
	}
	writeJSON(w, http.StatusOK, GraphResponse{
		Start: id,
		Depth: depth,
		Nodes: view.Nodes,
		Links: view.Links,
		Steps: steps,
	})
}

// ListInstances handles GET /api/instances.
//
//	@Summary		List instances with optional class filter
//	@Tags			instances
//	@Produce		json
//	@Param			class	query		string	false	"Filter by class"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	InstanceListResponse
//	@Security		BearerAuth
//	@Router			/instances [get]
func (h *Handler) ListInstances(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	rows, total, err := h.svc.ListInstances(r.Context(), q.Get("class"), limit, offset)
	if err != nil {
		writeError(w, "list instances", err)
		return
	}
	writeJSON(w, http.StatusOK, InstanceListResponse{Instances: rows, Total: total})
}

// ClassCounts handles GET /api/classes.
//
//	@Summary		Count instances per class
//	@Tags			instances
//	@Produce		json
//	@Success		200	{object}	ClassCountsResponse
//	@Security		BearerAuth
//	@Router			/classes [get]
func (h *Handler) ClassCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.ClassCounts(r.Context())
	if err != nil {
		writeError(w, "class counts", err)
		return
	}
	writeJSON(w, http.StatusOK, ClassCountsResponse{Classes: counts})
}

// GetInstance handles GET /api/instances/{id}.
//
//	@Summary		Get one instance with its edges
//	@Tags			instances
//	@Produce		json
//	@Param			id	path		string	true	"Instance id"
//	@Success		200	{object}	InstanceDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/instances/{id} [get]
func (h *Handler) GetInstance(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Instance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get instance", err)
		return
	}
	w.Header().Set("ETag", `"`+d.Checksum+`"`)
	writeJSON(w, http.StatusOK, d)
}

// CreateInstance handles POST /api/instances.
//
//	@Summary		Create an instance file
//	@Tags			instances
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateInstanceRequest	true	"Instance to create"
//	@Success		201		{object}	WriteResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	ValidationFailedResponse
//	@Security		BearerAuth
//	@Router			/instances [post]
func (h *Handler) CreateInstance(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CreateInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	res, err := h.svc.CreateInstance(r.Context(), req)
	if err != nil {
		writeError(w, "create instance", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// DeleteInstance handles DELETE /api/instances/{id}.
//
//	@Summary		Delete the file holding an instance
//	@Tags			instances
//	@Param			id	path	string	true	"Instance id"
//	@Success		200	{object}	WriteResponse
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Failure		422	{object}	ValidationFailedResponse
//	@Security		BearerAuth
//	@Router			/instances/{id} [delete]
func (h *Handler) DeleteInstance(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.DeleteInstance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "delete instance", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// WriteFile handles PUT /api/files/*.
//
//	@Summary		Replace or create a store file through the commit gate
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Param			path		path		string				true	"Store path"
//	@Param			If-Match	header		string				false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body		WriteFileRequest	true	"New content"
//	@Success		200			{object}	WriteResponse
//	@Failure		400			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Failure		422			{object}	ValidationFailedResponse
//	@Security		BearerAuth
//	@Router			/files/{path} [put]
func (h *Handler) WriteFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	p := filePath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	var req WriteFileRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	res, err := h.svc.WriteFile(r.Context(), p, []byte(req.Content), ifMatch)
	if err != nil {
		writeError(w, "write file", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
