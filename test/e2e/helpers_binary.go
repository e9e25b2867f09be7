//go:build e2e

package e2e

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

// quotaServer is a quota binary running as a child process, with enough
// bookkeeping to poke it, restart it, and read its log output.
type quotaServer struct {
	cmd     *exec.Cmd
	dataDir string
	address string
	apiKey  string
	logFile string
}

// startQuota launches the binary against the given upstream URL in a fresh
// temporary directory and blocks until its health endpoint answers.
func startQuota(t *testing.T, upstreamURL string) *quotaServer {
	t.Helper()
	return startQuotaWithDataDir(t, upstreamURL, t.TempDir())
}

// startQuotaWithDataDir launches the binary over an existing data directory.
// Restart scenarios point a second process at the first one's scope caches.
// Configuration travels entirely through QUOTA_* environment variables.
func startQuotaWithDataDir(t *testing.T, upstreamURL, dataDir string) *quotaServer {
	t.Helper()

	if quotaBin == "" {
		t.Skip("quota binary not available")
	}

	s := &quotaServer{
		dataDir: dataDir,
		apiKey:  "e2e-test-api-key",
		logFile: filepath.Join(dataDir, "quota.log"),
	}
	port := freePort(t)
	s.address = net.JoinHostPort("127.0.0.1", strconv.Itoa(port))

	s.cmd = exec.Command(quotaBin)
	s.cmd.Env = append(os.Environ(),
		"QUOTA_PORT="+strconv.Itoa(port),
		"QUOTA_API_KEY="+s.apiKey,
		"QUOTA_STORES_ROOT="+filepath.Join(dataDir, "scopes"),
		"QUOTA_UPSTREAM_URL="+upstreamURL,
		"QUOTA_UPSTREAM_API_KEY="+upstreamAPIKey,
		"QUOTA_BOOTSTRAP_SCOPES="+e2eScope,
		"QUOTA_CONFIG="+filepath.Join(dataDir, "nonexistent.yaml"), // sidestep any quota.yaml on disk
		"QUOTA_NOTIFY_BACKEND=noop",
	)

	// O_APPEND keeps restart output in the same log.
	lf, err := os.OpenFile(s.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open server log: %v", err)
	}
	s.cmd.Stdout = lf
	s.cmd.Stderr = lf

	if err := s.cmd.Start(); err != nil {
		lf.Close()
		t.Fatalf("start quota: %v", err)
	}
	t.Cleanup(func() {
		s.stop()
		lf.Close()
	})

	if err := s.waitHealthy(10 * time.Second); err != nil {
		t.Fatalf("quota not healthy: %v", err)
	}
	return s
}

func (s *quotaServer) stop() {
	if s.cmd == nil || s.cmd.Process == nil {
		return
	}
	_ = s.cmd.Process.Signal(os.Interrupt)
	_ = s.cmd.Wait()
}

func (s *quotaServer) baseURL() string {
	return "http://" + s.address
}

func (s *quotaServer) waitHealthy(timeout time.Duration) error {
	url := s.baseURL() + "/health"
	deadline := time.After(timeout)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		resp, err := http.Get(url)
		if err == nil {
			healthy := resp.StatusCode == http.StatusOK
			resp.Body.Close()
			if healthy {
				return nil
			}
		}
		select {
		case <-deadline:
			return fmt.Errorf("no healthy response within %s", timeout)
		case <-tick.C:
		}
	}
}

func (s *quotaServer) readLog(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(s.logFile)
	if err != nil {
		t.Fatalf("read server log: %v", err)
	}
	return string(data)
}

// freePort reserves an ephemeral TCP port and releases it for the server.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}
