package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fatih/color"

	"tableflip.dev/todosync/pkg/runner/todos"
	"tableflip.dev/todosync/pkg/server"
	"tableflip.dev/todosync/pkg/store"
)

type testConfig string

func (c testConfig) BasePath() string { return string(c) }

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	prev := color.Output
	color.Output = &buf
	defer func() { color.Output = prev }()

	cmd := New()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestCommandsAgainstServer(t *testing.T) {
	t.Setenv("TODOSYNC_CONFIG_PATH", t.TempDir())
	p, err := store.Load(testConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	srv := httptest.NewServer(server.New(p, slog.New(slog.NewTextHandler(io.Discard, nil))).Handler())
	defer srv.Close()

	common := []string{"--api", srv.URL, "--user", "2", "--json"}
	run := func(args ...string) todos.View {
		t.Helper()
		out, err := execute(t, append(args, common...)...)
		if err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		var v todos.View
		if err := json.Unmarshal([]byte(out), &v); err != nil {
			t.Fatalf("%v: decode %q: %v", args, out, err)
		}
		return v
	}

	run("add", "buy", "milk")
	run("add", "eggs")
	if v := run("toggle", "1"); v.Active != 1 {
		t.Fatalf("expected one active todo, got %+v", v)
	}
	if v := run("list", "--filter", "completed"); len(v.Items) != 1 || v.Items[0].Title != "buy milk" {
		t.Fatalf("unexpected completed list %+v", v)
	}
	if v := run("clear-completed"); len(v.Items) != 1 || v.Items[0].ID != 2 {
		t.Fatalf("unexpected list after clear %+v", v)
	}
	if v := run("edit", "2", "bread"); v.Items[0].Title != "bread" {
		t.Fatalf("unexpected list after edit %+v", v)
	}
	if v := run("toggle-all"); v.Active != 0 {
		t.Fatalf("expected everything completed %+v", v)
	}
	if v := run("delete", "2"); len(v.Items) != 0 {
		t.Fatalf("expected empty list %+v", v)
	}
}

func TestAddWithoutTitleFails(t *testing.T) {
	t.Setenv("TODOSYNC_CONFIG_PATH", t.TempDir())
	if _, err := execute(t, "add"); err == nil {
		t.Fatal("expected error")
	}
}

func TestMCPRejectsUnknownTransport(t *testing.T) {
	t.Setenv("TODOSYNC_CONFIG_PATH", t.TempDir())
	_, err := execute(t, "mcp", "--transport", "carrier-pigeon")
	if err == nil || !strings.Contains(err.Error(), "unsupported transport") {
		t.Fatalf("expected unsupported transport error, got %v", err)
	}
}
