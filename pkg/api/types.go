package api

import (
	"github.com/segmentio/ksuid"

	"github.com/ssargent/rbxdom/pkg/binary"
	"github.com/ssargent/rbxdom/pkg/storage"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ModelListResponse is returned by GET /models
type ModelListResponse struct {
	Models []*storage.ModelInfo `json:"models"`
	Count  int                  `json:"count"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Bind        string
	Port        int
	APIKey      string
	Compression binary.Compression
	Limits      binary.Limits
	// MaxUploadBytes bounds request bodies on POST /models. Zero means
	// Limits.MaxChunkBytes.
	MaxUploadBytes int64
}

// IModelStore defines the model store operations the server needs
type IModelStore interface {
	Put(name string, data []byte) (*storage.ModelInfo, error)
	Info(id ksuid.KSUID) (*storage.ModelInfo, error)
	Get(id ksuid.KSUID) (*storage.ModelInfo, []byte, error)
	Delete(id ksuid.KSUID) error
	List() ([]*storage.ModelInfo, error)
}
