package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ruteri/storage-adapters/adapter"
	"github.com/ruteri/storage-adapters/catalog"
	"github.com/ruteri/storage-adapters/interfaces"
	"github.com/ruteri/storage-adapters/metrics"
	"github.com/ruteri/storage-adapters/registry"
)

// DefaultMaxBodySize bounds uploaded payloads (64MB).
const DefaultMaxBodySize = 64 << 20

var (
	errUnknownStore        = errors.New("unknown store")
	errRangeNotSatisfiable = errors.New("range not satisfiable")
)

// RequestError provides structured error information for HTTP responses.
type RequestError struct {
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Handler serves the file and store API on top of a registry of storage
// adapters and a file collection.
type Handler struct {
	stores      *registry.Registry
	files       *catalog.Collection
	log         *slog.Logger
	maxBodySize int64
}

// NewHandler creates a handler. Request bodies are limited to DefaultMaxBodySize.
func NewHandler(stores *registry.Registry, files *catalog.Collection, log *slog.Logger) *Handler {
	return &Handler{
		stores:      stores,
		files:       files,
		log:         log,
		maxBodySize: DefaultMaxBodySize,
	}
}

type copyView struct {
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type fileView struct {
	ID     string              `json:"id"`
	Name   string              `json:"name"`
	Type   string              `json:"type"`
	Size   int64               `json:"size"`
	Copies map[string]copyView `json:"copies"`
}

type storeView struct {
	Name         string                  `json:"name"`
	Type         string                  `json:"type"`
	Capabilities interfaces.Capabilities `json:"capabilities"`
	Sync         bool                    `json:"sync"`
}

// HandleCreateFile creates a file from the request body.
//
// URL format: POST /api/files?name=&type=
func (h *Handler) HandleCreateFile(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "Missing file name", http.StatusBadRequest)
		return
	}

	data, err := h.readBody(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if len(data) == 0 {
		// Metadata only; the payload arrives with the first PUT.
		data = nil
	}

	contentType := r.URL.Query().Get("type")
	if contentType == "" {
		contentType = r.Header.Get("Content-Type")
	}

	file := h.files.Create(name, contentType, data)
	writeJSON(w, http.StatusCreated, viewOf(file))
}

// HandleGetFile returns the metadata and copy records of a file.
//
// URL format: GET /api/files/{id}
func (h *Handler) HandleGetFile(w http.ResponseWriter, r *http.Request) {
	file, err := h.files.Get(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(file))
}

// HandleListStores lists the registered stores and their capabilities.
//
// URL format: GET /api/stores
func (h *Handler) HandleListStores(w http.ResponseWriter, r *http.Request) {
	names := h.stores.Names()
	views := make([]storeView, 0, len(names))
	for _, name := range names {
		a, ok := h.stores.Lookup(name)
		if !ok {
			continue
		}
		views = append(views, storeView{
			Name:         a.Name(),
			Type:         a.TypeName(),
			Capabilities: a.Capabilities(),
			Sync:         a.SyncEnabled(),
		})
	}
	writeJSON(w, http.StatusOK, views)
}

// HandlePutCopy stores a file in a store. A non-empty body replaces the
// file's payload first. Files without a copy in the store are inserted,
// others are updated in place.
//
// URL format: PUT /api/stores/{store}/files/{id}
//
// Responds 201 with the saved file info, or 204 when a pre-save hook skipped
// the write.
func (h *Handler) HandlePutCopy(w http.ResponseWriter, r *http.Request) {
	store, file, err := h.resolve(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	data, err := h.readBody(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(data) > 0 {
		file.SetDataFromBinary(data)
		file.SetSize(int64(len(data)))
	}

	var res adapter.WriteResult
	if _, exists := file.CopyInfo(store.Name()); exists {
		res, err = store.Update(r.Context(), file)
	} else {
		res, err = store.Insert(r.Context(), file)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if !res.Stored() {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	metrics.RecordBackendBytes(store.Name(), metrics.DirectionIn, len(file.Buffer()))
	if err := h.files.ApplySaved(file.ID(), store.Name(), *res.Info); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res.Info)
}

// HandleGetCopy returns a file's payload from a store. A single
// "bytes=" range is served from adapters with range support.
//
// URL format: GET /api/stores/{store}/files/{id}
func (h *Handler) HandleGetCopy(w http.ResponseWriter, r *http.Request) {
	store, file, err := h.resolve(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		data, err := store.GetBuffer(r.Context(), file)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		metrics.RecordBackendBytes(store.Name(), metrics.DirectionOut, len(data))
		writePayload(w, file, http.StatusOK, data)
		return
	}

	ranger, ok := store.(adapter.RangeAdapter)
	if !ok {
		h.writeError(w, r, &RequestError{
			StatusCode: http.StatusRequestedRangeNotSatisfiable,
			Err:        fmt.Errorf("store %s does not serve byte ranges", store.Name()),
		})
		return
	}

	rec, _ := file.CopyInfo(store.Name())
	start, end, err := parseRange(rangeHeader, rec.Size)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	data, err := ranger.GetBytes(r.Context(), file, start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(data) == 0 {
		h.writeError(w, r, errRangeNotSatisfiable)
		return
	}
	metrics.RecordBackendBytes(store.Name(), metrics.DirectionOut, len(data))

	total := "*"
	if rec.Size > 0 {
		total = strconv.FormatInt(rec.Size, 10)
	}
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%s", start, start+int64(len(data))-1, total))
	writePayload(w, file, http.StatusPartialContent, data)
}

// HandleDeleteCopy removes a file's copy from a store.
//
// URL format: DELETE /api/stores/{store}/files/{id}?ignore_missing=true
func (h *Handler) HandleDeleteCopy(w http.ResponseWriter, r *http.Request) {
	store, file, err := h.resolve(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ignoreMissing, _ := strconv.ParseBool(r.URL.Query().Get("ignore_missing"))
	removed, err := store.Remove(r.Context(), file, adapter.RemoveOptions{IgnoreMissing: ignoreMissing})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if _, exists := file.CopyInfo(store.Name()); exists {
		if err := h.files.DropCopy(file.ID(), store.Name()); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (h *Handler) resolve(r *http.Request) (adapter.Adapter, *catalog.File, error) {
	storeName := r.PathValue("store")
	store, ok := h.stores.Lookup(storeName)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", errUnknownStore, storeName)
	}

	file, err := h.files.Get(r.PathValue("id"))
	if err != nil {
		return nil, nil, err
	}
	return store, file, nil
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &RequestError{StatusCode: http.StatusRequestEntityTooLarge, Err: err}
		}
		return nil, &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("failed to read request body: %w", err)}
	}
	return data, nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logFn := h.log.Debug
	if status >= http.StatusInternalServerError {
		logFn = h.log.Error
	}
	logFn("Request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("kind", adapter.Classify(err).String()),
		"err", err)
	http.Error(w, err.Error(), status)
}

// statusFor maps adapter, catalog and backend errors to HTTP status codes.
func statusFor(err error) int {
	var reqErr *RequestError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.StatusCode
	case errors.Is(err, errUnknownStore), errors.Is(err, catalog.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, errRangeNotSatisfiable):
		return http.StatusRequestedRangeNotSatisfiable
	}

	switch adapter.Classify(err) {
	case adapter.KindNoKey:
		return http.StatusNotFound
	case adapter.KindContractViolation:
		return http.StatusBadRequest
	case adapter.KindConfiguration:
		return http.StatusInternalServerError
	}

	switch {
	case errors.Is(err, interfaces.ErrContentNotFound):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrKeyExists):
		return http.StatusConflict
	}
	return http.StatusBadGateway
}

// parseRange parses a single "bytes=" range into a half-open [start, end)
// interval. size is the stored size of the copy, 0 when unknown.
func parseRange(header string, size int64) (int64, int64, error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return 0, 0, errRangeNotSatisfiable
	}
	first, last, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok {
		return 0, 0, errRangeNotSatisfiable
	}

	if first == "" {
		// Suffix range: the last n bytes.
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 || size <= 0 {
			return 0, 0, errRangeNotSatisfiable
		}
		return max(size-n, 0), size, nil
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, errRangeNotSatisfiable
	}
	if size > 0 && start >= size {
		return 0, 0, errRangeNotSatisfiable
	}

	end := int64(math.MaxInt64)
	if last != "" {
		lastByte, err := strconv.ParseInt(last, 10, 64)
		if err != nil || lastByte < start {
			return 0, 0, errRangeNotSatisfiable
		}
		if lastByte < math.MaxInt64 {
			end = lastByte + 1
		}
	}
	if size > 0 && end > size {
		end = size
	}
	return start, end, nil
}

func viewOf(file *catalog.File) fileView {
	view := fileView{
		ID:     file.ID(),
		Name:   file.Name(),
		Type:   file.Type(),
		Size:   file.Size(),
		Copies: make(map[string]copyView),
	}
	for _, store := range file.Stores() {
		if rec, ok := file.CopyInfo(store); ok {
			view.Copies[store] = copyView(rec)
		}
	}
	return view
}

func writePayload(w http.ResponseWriter, file *catalog.File, status int, data []byte) {
	contentType := file.Type()
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(status)
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
