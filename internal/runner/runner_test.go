package runner

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

type pathRunner struct {
	Exec
	found map[string]string
}

func (p *pathRunner) LookPath(name string) (string, error) {
	if path, ok := p.found[name]; ok {
		return path, nil
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

func TestFindProgram(t *testing.T) {
	tools := t.TempDir()
	local := filepath.Join(tools, "rife-ncnn-vulkan", ExecutableName("rife-ncnn-vulkan"))
	os.MkdirAll(filepath.Dir(local), 0755)
	os.WriteFile(local, []byte("bin"), 0755)

	r := &pathRunner{found: map[string]string{
		"rife-ncnn-vulkan": "/usr/bin/rife-ncnn-vulkan",
		"ffmpeg":           "/usr/bin/ffmpeg",
	}}

	tests := []struct {
		name     string
		toolsDir string
		programs []string
		expected string
		wantErr  bool
	}{
		{"tools dir wins over PATH", tools, []string{"rife-ncnn-vulkan"}, local, false},
		{"falls back to PATH", tools, []string{"ffmpeg"}, "/usr/bin/ffmpeg", false},
		{"no tools dir", "", []string{"rife-ncnn-vulkan"}, "/usr/bin/rife-ncnn-vulkan", false},
		{"first available alternative", tools, []string{"missing", "ffmpeg"}, "/usr/bin/ffmpeg", false},
		{"nothing found", tools, []string{"missing"}, "", true},
		{"no names", tools, nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindProgram(r, tt.toolsDir, tt.programs...)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestCommandError(t *testing.T) {
	inner := errors.New("exit status 1")
	err := &CommandError{Name: "/opt/tools/ffmpeg", Args: []string{"-i", "x"}, Err: inner, Stderr: "  bad input\n"}

	msg := err.Error()
	if !strings.HasPrefix(msg, "ffmpeg failed: exit status 1") {
		t.Errorf("Unexpected message %q", msg)
	}
	if !strings.Contains(msg, "Output: bad input") {
		t.Errorf("Expected stderr in message, got %q", msg)
	}
	if !errors.Is(err, inner) {
		t.Error("Expected CommandError to unwrap to the exit error")
	}

	quiet := &CommandError{Name: "git", Err: inner}
	if strings.Contains(quiet.Error(), "Output:") {
		t.Errorf("Expected no output section, got %q", quiet.Error())
	}
}

func TestTailBuffer(t *testing.T) {
	var tail tailBuffer
	tail.Write([]byte(strings.Repeat("a", stderrTailBytes)))
	tail.Write([]byte("end"))

	s := tail.String()
	if len(s) != stderrTailBytes {
		t.Errorf("Expected %d bytes kept, got %d", stderrTailBytes, len(s))
	}
	if !strings.HasSuffix(s, "end") {
		t.Error("Expected the newest output to be kept")
	}
}

func TestExecutableName(t *testing.T) {
	got := ExecutableName("ffmpeg")
	if runtime.GOOS == "windows" {
		if got != "ffmpeg.exe" {
			t.Errorf("Expected ffmpeg.exe, got %s", got)
		}
		if ExecutableName("ffmpeg.EXE") != "ffmpeg.EXE" {
			t.Error("Expected existing suffix to be kept")
		}
		return
	}
	if got != "ffmpeg" {
		t.Errorf("Expected ffmpeg, got %s", got)
	}
}
