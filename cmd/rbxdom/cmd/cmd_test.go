package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/rbxdom/pkg/binary"
	"github.com/ssargent/rbxdom/pkg/config"
	"github.com/ssargent/rbxdom/pkg/dom"
	"github.com/ssargent/rbxdom/pkg/reflection"
	"github.com/ssargent/rbxdom/pkg/types"
)

type testEnv struct {
	dir        string
	configPath string
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir, err := os.MkdirTemp("", "rbxdom_cmd_test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	cfg := config.DefaultConfig()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.Logging.Level = "error"
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, config.SaveConfig(cfg, configPath))

	return &testEnv{dir: dir, configPath: configPath}
}

func (e *testEnv) path(name string) string {
	return filepath.Join(e.dir, name)
}

// run executes rbxdom with the test config and returns everything it printed.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := root.Execute()
	return out.String(), err
}

func (e *testEnv) writeModel(t *testing.T, name string) string {
	t.Helper()
	tree := dom.New(dom.NewInstanceBuilder("Folder").WithName("Assets").WithChildren(
		dom.NewInstanceBuilder("StringValue").WithName("Greeting").WithProperty("Value", types.String("hello")),
		dom.NewInstanceBuilder("Part").WithName("Floor").WithProperty("Anchored", types.Bool(true)),
	))
	var buf bytes.Buffer
	require.NoError(t, binary.NewEncoder(binary.EncodeOptions{
		Metadata: map[string]string{"ExplicitAutoJoints": "true"},
	}).Encode(&buf, tree, []types.Ref{tree.RootRef()}))

	path := e.path(name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func TestInspectCommand(t *testing.T) {
	env := setupTestEnv(t)
	model := env.writeModel(t, "model.rbxm")

	out, err := env.run(t, "inspect", model)
	require.NoError(t, err)
	assert.Contains(t, out, "num_instances: 3")
	assert.Contains(t, out, "name: META")
	assert.Contains(t, out, "class_name: Folder")
	assert.Contains(t, out, "name: PRNT")

	out, err = env.run(t, "inspect", model, "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"num_classes": 3`)

	_, err = env.run(t, "inspect", env.path("missing.rbxm"))
	assert.Error(t, err)

	_, err = env.run(t, "inspect", model, "--format", "xml")
	assert.Error(t, err)
}

func TestViewCommand(t *testing.T) {
	env := setupTestEnv(t)
	model := env.writeModel(t, "model.rbxm")

	out, err := env.run(t, "view", model)
	require.NoError(t, err)
	assert.Contains(t, out, "referent: referent-0")
	assert.Contains(t, out, "class: Folder")
	assert.Contains(t, out, "name: Greeting")
	assert.Contains(t, out, "String: hello")

	garbage := env.path("garbage.rbxm")
	require.NoError(t, os.WriteFile(garbage, []byte("not a model"), 0644))
	_, err = env.run(t, "view", garbage)
	assert.ErrorIs(t, err, binary.ErrUnsupportedFormat)
}

func TestRoundtripCommand(t *testing.T) {
	env := setupTestEnv(t)
	model := env.writeModel(t, "model.rbxm")
	out := env.path("out.rbxm")

	printed, err := env.run(t, "roundtrip", model, out, "--compression", "zstd")
	require.NoError(t, err)
	assert.Contains(t, printed, "Wrote 3 instances")
	assert.Contains(t, printed, "zstd")

	before, err := env.run(t, "view", model)
	require.NoError(t, err)
	after, err := env.run(t, "view", out)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := binary.Inspect(f, binary.DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, "META", decoded.Chunks[0].Name)
	assert.Equal(t, "true", decoded.Chunks[0].Metadata["ExplicitAutoJoints"])
	assert.Equal(t, "zstd", decoded.Chunks[1].Compression)

	_, err = env.run(t, "roundtrip", model, out, "--compression", "gzip")
	assert.Error(t, err)
}

const testDump = `{
  "Version": 7,
  "Classes": [
    {
      "Name": "Instance",
      "Superclass": "<<<ROOT>>>",
      "Members": [
        {"MemberType": "Property", "Name": "Archivable", "ValueType": {"Category": "Primitive", "Name": "bool"}}
      ]
    },
    {
      "Name": "Workspace",
      "Superclass": "Instance",
      "Tags": ["Service"],
      "Members": [
        {"MemberType": "Property", "Name": "Gravity", "ValueType": {"Category": "Primitive", "Name": "float"}}
      ]
    }
  ]
}`

func TestReflectCommand(t *testing.T) {
	env := setupTestEnv(t)
	dump := env.path("dump.json")
	require.NoError(t, os.WriteFile(dump, []byte(testDump), 0644))
	table := env.path("table.yaml")

	out, err := env.run(t, "reflect", dump, "-o", table)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 2 classes")

	db, err := reflection.Load(table)
	require.NoError(t, err)
	assert.Equal(t, "7", db.Version)
	assert.True(t, db.IsService("Workspace"))
	prop, ok := db.FindProperty("Workspace", "Archivable")
	require.True(t, ok)
	assert.Equal(t, types.TypeBool, prop.Type)

	out, err = env.run(t, "reflect", dump)
	require.NoError(t, err)
	assert.Contains(t, out, "Workspace")
}

func TestReflectionDumpPath(t *testing.T) {
	env := setupTestEnv(t)
	dump := env.path("dump.json")
	require.NoError(t, os.WriteFile(dump, []byte(testDump), 0644))

	cfg, err := config.LoadConfig(env.configPath)
	require.NoError(t, err)
	cfg.Reflection.DumpPath = dump
	require.NoError(t, config.SaveConfig(cfg, env.configPath))

	// StringValue.Value is unknown to the dump, so the column keeps its name
	// and its string values stay strings.
	model := env.writeModel(t, "model.rbxm")
	out, err := env.run(t, "view", model)
	require.NoError(t, err)
	assert.Contains(t, out, "String: hello")

	cfg.Reflection.DumpPath = env.path("missing.json")
	require.NoError(t, config.SaveConfig(cfg, env.configPath))
	_, err = env.run(t, "view", model)
	assert.Error(t, err)
}

func TestStoreCommands(t *testing.T) {
	env := setupTestEnv(t)
	model := env.writeModel(t, "model.rbxm")

	out, err := env.run(t, "store", "put", model, "--name", "lobby")
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.NotEmpty(t, id)

	out, err = env.run(t, "store", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, id)
	assert.Contains(t, out, "lobby")

	out, err = env.run(t, "store", "list", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf(`"id": %q`, id))

	fetched := env.path("fetched.rbxm")
	_, err = env.run(t, "store", "get", id, "-o", fetched)
	require.NoError(t, err)
	original, err := os.ReadFile(model)
	require.NoError(t, err)
	got, err := os.ReadFile(fetched)
	require.NoError(t, err)
	assert.Equal(t, original, got)

	_, err = env.run(t, "store", "delete", id)
	require.NoError(t, err)

	_, err = env.run(t, "store", "get", id, "-o", fetched)
	assert.Error(t, err)

	_, err = env.run(t, "store", "delete", "not-an-id")
	assert.Error(t, err)

	garbage := env.path("garbage.rbxm")
	require.NoError(t, os.WriteFile(garbage, []byte("not a model"), 0644))
	_, err = env.run(t, "store", "put", garbage)
	assert.Error(t, err)
}

func TestInitCommand(t *testing.T) {
	dir, err := os.MkdirTemp("", "rbxdom_init_test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	env := &testEnv{dir: dir, configPath: filepath.Join(dir, "nested", "rbxdom.toml")}

	out, err := env.run(t, "init", "--data-dir", env.path("models"))
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration created")
	assert.Contains(t, out, "API key:")

	cfg, err := config.LoadConfig(env.configPath)
	require.NoError(t, err)
	assert.Len(t, cfg.Security.APIKey, 64)
	assert.Equal(t, env.path("models"), cfg.DataDir)

	out, err = env.run(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	_, err = env.run(t, "init", "--force")
	require.NoError(t, err)
	again, err := config.LoadConfig(env.configPath)
	require.NoError(t, err)
	assert.NotEqual(t, cfg.Security.APIKey, again.Security.APIKey)
}

func TestLoadApp(t *testing.T) {
	_, err := loadApp(filepath.Join(os.TempDir(), "rbxdom-does-not-exist.yaml"), false)
	assert.Error(t, err)

	a, err := loadApp(filepath.Join(os.TempDir(), "rbxdom-does-not-exist.yaml"), true)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), a.cfg)
}
