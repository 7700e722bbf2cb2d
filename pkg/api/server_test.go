package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/rbxdom/pkg/binary"
	"github.com/ssargent/rbxdom/pkg/dom"
	"github.com/ssargent/rbxdom/pkg/storage"
	"github.com/ssargent/rbxdom/pkg/types"
)

const testAPIKey = "test-key"

type testServer struct {
	server  *Server
	handler http.Handler
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	return setupTestServerWithConfig(t, ServerConfig{APIKey: testAPIKey})
}

func setupTestServerWithConfig(t *testing.T, config ServerConfig) *testServer {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "rbxdom_api_test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	store, err := storage.Open(tmpDir, binary.DefaultLimits())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	server := NewServer(store, nil, config, NewMetrics(), zerolog.Nop())
	return &testServer{server: server, handler: server.Router()}
}

func (ts *testServer) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("X-API-Key", testAPIKey)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

// upload stores a model and returns its id.
func (ts *testServer) upload(t *testing.T, name string, data []byte) string {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/v1/models?name="+name, data)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var info storage.ModelInfo
	decodeData(t, w, &info)
	return info.ID.String()
}

// decodeData unwraps an APIResponse and decodes its data field into out.
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var response struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	require.True(t, response.Success, response.Error)
	require.NoError(t, json.Unmarshal(response.Data, out))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var response APIResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	require.False(t, response.Success)
	return response.Error
}

func sampleModel(t *testing.T) []byte {
	t.Helper()
	tree := dom.New(dom.NewInstanceBuilder("Folder").WithName("Assets").WithChildren(
		dom.NewInstanceBuilder("StringValue").WithName("Greeting").WithProperty("Value", types.String("hello")),
		dom.NewInstanceBuilder("Part").WithName("Floor").WithProperty("Anchored", types.Bool(true)),
	))
	var buf bytes.Buffer
	require.NoError(t, binary.Encode(&buf, tree, []types.Ref{tree.RootRef()}))
	return buf.Bytes()
}
