//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// E2ETestEnv holds the built binaries and a fake OpenAI-compatible provider.
type E2ETestEnv struct {
	T          *testing.T
	BinaryDir  string
	Provider   *httptest.Server
	Workspace  string
	Quiz       string
	Requests   atomic.Int32
	HTTPClient *http.Client
}

// SetupE2EEnv builds both binaries and starts the fake provider.
func SetupE2EEnv(t *testing.T, quiz string) *E2ETestEnv {
	e := &E2ETestEnv{
		T:          t,
		Workspace:  t.TempDir(),
		Quiz:       quiz,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	e.Provider = httptest.NewServer(http.HandlerFunc(e.serveProvider))
	t.Cleanup(e.Provider.Close)
	e.BuildBinaries()
	return e
}

func (e *E2ETestEnv) serveProvider(w http.ResponseWriter, r *http.Request) {
	e.Requests.Add(1)
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/v1/embeddings":
		var body struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data := make([]map[string]any, 0, len(body.Input))
		for i, text := range body.Input {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(strings.Count(text, "func")) + 0.5, float32(len(text) % 11), 1},
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	case "/v1/chat/completions":
		if r.Header.Get("Authorization") == "Bearer rejected" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"invalid key","type":"auth"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "c1",
			"object": "chat.completion",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": e.Quiz},
				"finish_reason": "stop",
			}},
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// BuildBinaries builds the ownership and ownershipd binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir := e.T.TempDir()
	e.BinaryDir = tmpDir

	for _, name := range []string{"ownership", "ownershipd"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, name), "./cmd/"+name)
		cmd.Dir = "../.."
		if out, err := cmd.CombinedOutput(); err != nil {
			e.T.Fatalf("failed to build %s: %v\n%s", name, err, out)
		}
	}
}

func (e *E2ETestEnv) env(extra ...string) []string {
	var base []string
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, "LLM_") {
			base = append(base, kv)
		}
	}
	base = append(base,
		"LLM_BASE_URL="+e.Provider.URL+"/v1",
		"LLM_EMBEDDING_BASE_URL="+e.Provider.URL+"/v1",
		"LLM_WORKSPACE_ROOT="+e.Workspace,
	)
	return append(base, extra...)
}

// RunOwnership runs the CLI and returns stdout and stderr separately.
func (e *E2ETestEnv) RunOwnership(env []string, args ...string) (string, string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "ownership"), args...)
	cmd.Dir = e.Workspace
	cmd.Env = e.env(env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// StartDaemon runs ownershipd serve on a free port until the test ends.
func (e *E2ETestEnv) StartDaemon(env ...string) string {
	port, err := getFreePort()
	if err != nil {
		e.T.Fatalf("failed to get free port: %v", err)
	}

	cmd := exec.Command(filepath.Join(e.BinaryDir, "ownershipd"), "serve", "--port", fmt.Sprint(port))
	cmd.Dir = e.Workspace
	cmd.Env = e.env(env...)
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		e.T.Fatalf("failed to start ownershipd: %v", err)
	}
	e.T.Cleanup(func() {
		_ = cmd.Process.Signal(os.Interrupt)
		_ = cmd.Wait()
	})

	url := fmt.Sprintf("http://127.0.0.1:%d", port)
	waitForServer(e.T, url+"/health", 10*time.Second)
	return url
}

// WriteFile writes a file inside the workspace and returns its path.
func (e *E2ETestEnv) WriteFile(name, content string) string {
	path := filepath.Join(e.Workspace, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		e.T.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		e.T.Fatalf("write: %v", err)
	}
	return path
}

// APIResponse holds a decoded daemon response
type APIResponse struct {
	StatusCode int
	Body       map[string]interface{}
}

func (e *E2ETestEnv) Post(url string, body interface{}) (*APIResponse, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	resp, err := e.HTTPClient.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out := &APIResponse{StatusCode: resp.StatusCode}
	if err := json.NewDecoder(resp.Body).Decode(&out.Body); err != nil && err != io.EOF {
		return nil, err
	}
	return out, nil
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not become ready within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func sampleSource(lines int) string {
	var b strings.Builder
	b.WriteString("package billing\n\n")
	for i := 0; i < lines; i++ {
		fmt.Fprintf(&b, "func step%d(total int) int { return total + %d } // rounding rule %d\n", i, i, i)
	}
	return b.String()
}
