package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestFullWorkflow tests the complete end-to-end workflow
func TestFullWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not available")
	}

	tmpDir := t.TempDir()
	bin, err := buildBinaries(tmpDir)
	if err != nil {
		t.Fatalf("Failed to build binaries: %v", err)
	}

	addr := freeAddr(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	kettled := exec.CommandContext(ctx, filepath.Join(bin, "kettled"), "-addr", addr)
	kettled.Env = append(os.Environ(), "KETTLED_TOKEN=integration")
	if err := kettled.Start(); err != nil {
		t.Fatalf("Failed to start kettled: %v", err)
	}
	defer func() {
		if kettled.Process != nil {
			_ = kettled.Process.Kill()
			_ = kettled.Wait()
		}
	}()
	waitForKettle(t, "http://"+addr)

	env := append(os.Environ(),
		"XDG_CONFIG_HOME="+tmpDir,
		"TEATIME_KETTLE_TOKEN=integration",
	)

	t.Run("Init", func(t *testing.T) {
		out := runTeatime(t, bin, env, "init")
		if !strings.Contains(out, "wrote default config") {
			t.Fatalf("unexpected init output: %s", out)
		}
	})

	t.Run("Version", func(t *testing.T) {
		out := runTeatime(t, bin, env, "version")
		if !strings.HasPrefix(out, "teatime ") {
			t.Fatalf("unexpected version output: %s", out)
		}
	})

	t.Run("Brew_Remote", func(t *testing.T) {
		rep := brew(t, bin, env, "http://"+addr+"/delay/0.1")
		if rep.BoilPath != "remote" || rep.Status != "succeeded" {
			t.Fatalf("unexpected report: %+v", rep)
		}
	})

	t.Run("Brew_Fallback", func(t *testing.T) {
		rep := brew(t, bin, env, "http://"+addr+"/status/503")
		if rep.BoilPath != "fallback" || rep.Status != "succeeded" {
			t.Fatalf("unexpected report: %+v", rep)
		}
	})
}

type report struct {
	Status     string   `json:"status"`
	BoilPath   string   `json:"boil_path"`
	States     []string `json:"states"`
	DurationMS int64    `json:"duration_ms"`
}

func brew(t *testing.T, bin string, env []string, url string) report {
	t.Helper()
	out := runTeatime(t, bin, env, "brew", "--json",
		"--kettle-url", url,
		"--fallback-delay", "50ms",
		"--background-delay", "300ms",
	)
	var rep report
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("unmarshal report: %v\nOutput: %s", err, out)
	}
	if rep.States[len(rep.States)-1] != "SERVED" {
		t.Fatalf("run did not finish: %v", rep.States)
	}
	if rep.DurationMS < 300 {
		t.Fatalf("run finished before snacks were ready: %dms", rep.DurationMS)
	}
	return rep
}

func buildBinaries(dir string) (string, error) {
	bin := filepath.Join(dir, "bin")
	for _, name := range []string{"teatime", "kettled"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(bin, name), "./cmd/"+name)
		output, err := cmd.CombinedOutput()
		if err != nil {
			return "", fmt.Errorf("build %s failed: %v\nOutput: %s", name, err, output)
		}
	}
	return bin, nil
}

func runTeatime(t *testing.T, bin string, env []string, args ...string) string {
	t.Helper()
	cmd := exec.Command(filepath.Join(bin, "teatime"), args...)
	cmd.Env = env
	output, err := cmd.Output()
	if err != nil {
		t.Fatalf("Command %v failed: %v\nOutput: %s", args, err, output)
	}
	return string(output)
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().String()
}

func waitForKettle(t *testing.T, base string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(base + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("kettled did not come up at %s", base)
}
