package ffprobe

import (
	"context"
	"os/exec"
	"testing"
)

func TestInspectParsesDuration(t *testing.T) {
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		payload := `{"format":{"filename":"/remux/show.mkv","duration":"5390.48","format_name":"matroska"}}`
		return exec.CommandContext(ctx, "sh", "-c", "printf '%s' '"+payload+"'")
	}
	t.Cleanup(func() { commandContext = original })

	result, err := Inspect(context.Background(), "ffprobe", "/remux/show.mkv")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if got := result.DurationSeconds(); got != 5390.48 {
		t.Fatalf("DurationSeconds = %v", got)
	}
	if result.Format.FormatName != "matroska" {
		t.Fatalf("format name = %q", result.Format.FormatName)
	}
}

func TestInspectToolFailure(t *testing.T) {
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c", "echo unreadable >&2; exit 1")
	}
	t.Cleanup(func() { commandContext = original })

	if _, err := Inspect(context.Background(), "ffprobe", "/remux/show.mkv"); err == nil {
		t.Fatal("expected error from failing tool")
	}
}

func TestInspectEmptyPath(t *testing.T) {
	if _, err := Inspect(context.Background(), "ffprobe", "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestDurationSeconds(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{"10.5", 10.5},
		{"", 0},
		{"-3", 0},
		{"garbage", 0},
	}
	for _, tc := range cases {
		result := Result{Format: Format{Duration: tc.raw}}
		if got := result.DurationSeconds(); got != tc.want {
			t.Errorf("DurationSeconds(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}
