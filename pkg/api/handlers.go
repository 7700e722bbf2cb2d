package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
	"gopkg.in/yaml.v3"

	"github.com/ssargent/rbxdom/pkg/binary"
	"github.com/ssargent/rbxdom/pkg/dom"
	"github.com/ssargent/rbxdom/pkg/reflection"
	"github.com/ssargent/rbxdom/pkg/storage"
)

const (
	contentTypeModel = "application/octet-stream"
	contentTypeYAML  = "application/yaml"
)

// ModelView is the decoded, redacted form of a stored model
type ModelView struct {
	ID                string               `json:"id" yaml:"id"`
	Name              string               `json:"name" yaml:"name"`
	Metadata          map[string]string    `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	UnknownProperties []string             `json:"unknown_properties,omitempty" yaml:"unknown_properties,omitempty"`
	Instances         []dom.ViewedInstance `json:"instances" yaml:"instances"`
}

// Server holds the API server state
type Server struct {
	store   IModelStore
	db      *reflection.Database
	config  ServerConfig
	metrics *Metrics
	logger  zerolog.Logger
}

// NewServer creates a new API server. A nil database uses the embedded
// reflection table.
func NewServer(store IModelStore, db *reflection.Database, config ServerConfig, metrics *Metrics, logger zerolog.Logger) *Server {
	if db == nil {
		db = reflection.Default()
	}
	if config.Limits.MaxChunkBytes <= 0 {
		config.Limits = binary.DefaultLimits()
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = int64(config.Limits.MaxChunkBytes)
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Server{
		store:   store,
		db:      db,
		config:  config,
		metrics: metrics,
		logger:  logger,
	}
}

// handleHealth reports the server as healthy when the store can be listed.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.List(); err != nil {
		s.metrics.RecordHealthCheck(false)
		sendError(w, fmt.Sprintf("Model store unavailable: %v", err), http.StatusServiceUnavailable)
		return
	}
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]string{"status": "healthy"})
}

// handleUploadModel stores the request body as a new model. The name comes
// from the name query parameter.
func (s *Server) handleUploadModel(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes))
	if err != nil {
		s.metrics.RecordModelOperation("put", false, time.Since(start))
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendError(w, "Model exceeds upload limit", http.StatusRequestEntityTooLarge)
			return
		}
		sendError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	info, err := s.store.Put(r.URL.Query().Get("name"), body)
	if err != nil {
		s.metrics.RecordModelOperation("put", false, time.Since(start))
		if errors.Is(err, storage.ErrInvalidModel) {
			s.metrics.RecordCodecError("put")
			sendError(w, err.Error(), http.StatusBadRequest)
			return
		}
		sendError(w, fmt.Sprintf("Failed to store model: %v", err), http.StatusInternalServerError)
		return
	}

	s.metrics.RecordModelOperation("put", true, time.Since(start))
	s.refreshStoreStats()
	s.logger.Debug().Str("id", info.ID.String()).Int("size", info.Size).Msg("model stored")
	sendCreated(w, info)
}

// handleListModels lists every stored model in creation order.
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	models, err := s.store.List()
	if err != nil {
		s.metrics.RecordModelOperation("list", false, time.Since(start))
		sendError(w, fmt.Sprintf("Failed to list models: %v", err), http.StatusInternalServerError)
		return
	}
	s.metrics.RecordModelOperation("list", true, time.Since(start))

	if models == nil {
		models = []*storage.ModelInfo{}
	}
	sendSuccess(w, ModelListResponse{Models: models, Count: len(models)})
}

// handleGetModel returns the stored model bytes unchanged.
func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	info, data, ok := s.loadModel(w, r, "get")
	if !ok {
		return
	}

	w.Header().Set("Content-Type", contentTypeModel)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if info.Name != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", info.Name))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleViewModel decodes a model and returns its redacted tree. Use
// ?format=yaml for YAML output.
func (s *Server) handleViewModel(w http.ResponseWriter, r *http.Request) {
	info, data, ok := s.loadModel(w, r, "view")
	if !ok {
		return
	}

	dec := binary.NewDecoder(binary.DecodeOptions{
		Database: s.db,
		Limits:   s.config.Limits,
		Logger:   &s.logger,
	})
	d, err := dec.Decode(bytes.NewReader(data))
	if err != nil {
		s.metrics.RecordCodecError("view")
		sendError(w, fmt.Sprintf("Failed to decode model: %v", err), http.StatusUnprocessableEntity)
		return
	}
	s.metrics.RecordDecode(d.Len() - 1)

	view := ModelView{
		ID:        info.ID.String(),
		Name:      info.Name,
		Metadata:  dec.Metadata(),
		Instances: dom.NewDomViewer().ViewChildren(d),
	}
	for _, p := range dec.UnknownProperties() {
		view.UnknownProperties = append(view.UnknownProperties, p.Class+"."+p.Property)
	}
	s.send(w, r, view)
}

// handleModelChunks returns the chunk-level structure of a model.
func (s *Server) handleModelChunks(w http.ResponseWriter, r *http.Request) {
	_, data, ok := s.loadModel(w, r, "chunks")
	if !ok {
		return
	}

	model, err := binary.Inspect(bytes.NewReader(data), s.config.Limits)
	if err != nil {
		s.metrics.RecordCodecError("chunks")
		sendError(w, fmt.Sprintf("Failed to inspect model: %v", err), http.StatusUnprocessableEntity)
		return
	}
	s.send(w, r, model)
}

// handleReencodeModel decodes a model, encodes it again with the requested
// compression and stores the result as a new model.
func (s *Server) handleReencodeModel(w http.ResponseWriter, r *http.Request) {
	info, data, ok := s.loadModel(w, r, "reencode")
	if !ok {
		return
	}

	compression := s.config.Compression
	if name := r.URL.Query().Get("compression"); name != "" {
		c, err := binary.ParseCompression(name)
		if err != nil {
			sendError(w, err.Error(), http.StatusBadRequest)
			return
		}
		compression = c
	}

	start := time.Now()
	dec := binary.NewDecoder(binary.DecodeOptions{Database: s.db, Limits: s.config.Limits, Logger: &s.logger})
	d, err := dec.Decode(bytes.NewReader(data))
	if err != nil {
		s.metrics.RecordCodecError("reencode")
		sendError(w, fmt.Sprintf("Failed to decode model: %v", err), http.StatusUnprocessableEntity)
		return
	}

	var buf bytes.Buffer
	enc := binary.NewEncoder(binary.EncodeOptions{
		Database:    s.db,
		Compression: compression,
		Metadata:    dec.Metadata(),
		Logger:      &s.logger,
	})
	if err := enc.Encode(&buf, d, d.Root().Children()); err != nil {
		s.metrics.RecordCodecError("reencode")
		sendError(w, fmt.Sprintf("Failed to encode model: %v", err), http.StatusUnprocessableEntity)
		return
	}

	stored, err := s.store.Put(info.Name, buf.Bytes())
	if err != nil {
		s.metrics.RecordModelOperation("put", false, time.Since(start))
		sendError(w, fmt.Sprintf("Failed to store model: %v", err), http.StatusInternalServerError)
		return
	}
	s.metrics.RecordModelOperation("put", true, time.Since(start))
	s.refreshStoreStats()
	sendCreated(w, stored)
}

// handleDeleteModel removes a stored model.
func (s *Server) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, ok := parseModelID(w, r)
	if !ok {
		s.metrics.RecordModelOperation("delete", false, time.Since(start))
		return
	}

	if err := s.store.Delete(id); err != nil {
		s.metrics.RecordModelOperation("delete", false, time.Since(start))
		if errors.Is(err, storage.ErrModelNotFound) {
			sendError(w, "Model not found", http.StatusNotFound)
			return
		}
		sendError(w, fmt.Sprintf("Failed to delete model: %v", err), http.StatusInternalServerError)
		return
	}

	s.metrics.RecordModelOperation("delete", true, time.Since(start))
	s.refreshStoreStats()
	sendSuccess(w, map[string]string{"message": "Model deleted successfully"})
}

// loadModel resolves the id URL parameter and fetches the model, writing the
// error response itself when it fails.
func (s *Server) loadModel(w http.ResponseWriter, r *http.Request, operation string) (*storage.ModelInfo, []byte, bool) {
	start := time.Now()
	id, ok := parseModelID(w, r)
	if !ok {
		s.metrics.RecordModelOperation(operation, false, time.Since(start))
		return nil, nil, false
	}

	info, data, err := s.store.Get(id)
	if err != nil {
		s.metrics.RecordModelOperation(operation, false, time.Since(start))
		if errors.Is(err, storage.ErrModelNotFound) {
			sendError(w, "Model not found", http.StatusNotFound)
		} else {
			sendError(w, fmt.Sprintf("Failed to get model: %v", err), http.StatusInternalServerError)
		}
		return nil, nil, false
	}
	s.metrics.RecordModelOperation(operation, true, time.Since(start))
	return info, data, true
}

func parseModelID(w http.ResponseWriter, r *http.Request) (ksuid.KSUID, bool) {
	id, err := ksuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, "Invalid model id", http.StatusBadRequest)
		return ksuid.Nil, false
	}
	return id, true
}

// send writes data as JSON, or as bare YAML when ?format=yaml is given.
func (s *Server) send(w http.ResponseWriter, r *http.Request, data interface{}) {
	if r.URL.Query().Get("format") != "yaml" {
		sendSuccess(w, data)
		return
	}
	out, err := yaml.Marshal(data)
	if err != nil {
		sendError(w, fmt.Sprintf("Failed to render YAML: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeYAML)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// refreshStoreStats recomputes the store gauges.
func (s *Server) refreshStoreStats() {
	models, err := s.store.List()
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to refresh store metrics")
		return
	}
	var size int64
	for _, m := range models {
		size += int64(m.Size)
	}
	s.metrics.UpdateStoreStats(len(models), size)
}
