package extract

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// recordingRunner запоминает последний вызов и возвращает заданный ответ.
type recordingRunner struct {
	name     string
	args     []string
	deadline bool
	out      []byte
	err      error
	onRun    func(args []string)
}

func (r *recordingRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.name = name
	r.args = args
	_, r.deadline = ctx.Deadline()
	if r.onRun != nil {
		r.onRun(args)
	}
	return r.out, r.err
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0:00"},
		{5, "0:05"},
		{59.9, "0:59"},
		{60, "1:00"},
		{754, "12:34"},
		{3599, "59:59"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
		{36000, "10:00:00"},
		{-3, "0:00"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, хотели %q", tt.in, got, tt.want)
		}
	}
}

func TestParseInfo(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    *MediaInfo
		wantErr error
	}{
		{
			name: "ролик",
			data: `{"title":"Song","duration":125.4}`,
			want: &MediaInfo{Title: "Song", Duration: 125.4, DurationFormatted: "2:05"},
		},
		{
			name: "без названия и длительности",
			data: `{"duration":null}`,
			want: &MediaInfo{Title: UnknownTitle, Duration: 0, DurationFormatted: "0:00"},
		},
		{
			name:    "плейлист по entries",
			data:    `{"title":"List","entries":[{"title":"a"}]}`,
			wantErr: ErrPlaylist,
		},
		{
			name:    "плейлист по _type",
			data:    `{"_type":"playlist","title":"List"}`,
			wantErr: ErrPlaylist,
		},
		{
			name:    "некорректный JSON",
			data:    `not json`,
			wantErr: ErrExtractionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseInfo([]byte(tt.data))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ожидалась %v, получена %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("неожиданная ошибка: %v", err)
			}
			if *got != *tt.want {
				t.Errorf("получили %+v, хотели %+v", got, tt.want)
			}
		})
	}
}

func TestYtDlpInfo_Args(t *testing.T) {
	runner := &recordingRunner{out: []byte(`{"title":"Song","duration":60}`)}
	y := NewYtDlp("/usr/bin/yt-dlp", time.Minute, testLogger(), WithRunner(runner.Run))

	info, err := y.Info(context.Background(), "https://example.com/watch?v=1")
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Title != "Song" || info.DurationFormatted != "1:00" {
		t.Errorf("info: %+v", info)
	}

	if runner.name != "/usr/bin/yt-dlp" {
		t.Errorf("бинарник: %q", runner.name)
	}
	if !slices.Contains(runner.args, "--dump-single-json") {
		t.Errorf("аргументы: %v", runner.args)
	}
	n := len(runner.args)
	if n < 2 || runner.args[n-2] != "--" || runner.args[n-1] != "https://example.com/watch?v=1" {
		t.Errorf("ссылка должна передаваться после \"--\": %v", runner.args)
	}
	if !runner.deadline {
		t.Error("вызов должен быть ограничен по времени")
	}
}

func TestYtDlpInfo_RunnerError(t *testing.T) {
	runner := &recordingRunner{err: errors.New("exit status 1: Unsupported URL")}
	y := NewYtDlp("yt-dlp", 0, testLogger(), WithRunner(runner.Run))

	_, err := y.Info(context.Background(), "https://example.com")
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("ожидалась ErrExtractionFailed, получена %v", err)
	}
	if runner.deadline {
		t.Error("при нулевом таймауте дедлайн не задаётся")
	}
}

func TestYtDlpExtract(t *testing.T) {
	out := filepath.Join(t.TempDir(), "a.mp3")
	runner := &recordingRunner{onRun: func(args []string) {
		i := slices.Index(args, "-o")
		if i < 0 || i+1 >= len(args) {
			return
		}
		_ = os.WriteFile(args[i+1], []byte("mp3"), 0o640)
	}}
	y := NewYtDlp("yt-dlp", time.Minute, testLogger(), WithRunner(runner.Run))

	if err := y.Extract(context.Background(), "https://example.com/v", out); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for _, want := range []string{"-x", "mp3", "5", out} {
		if !slices.Contains(runner.args, want) {
			t.Errorf("аргумент %q отсутствует: %v", want, runner.args)
		}
	}
}

func TestYtDlpExtract_NoOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "a.mp3")
	y := NewYtDlp("yt-dlp", time.Minute, testLogger(), WithRunner((&recordingRunner{}).Run))

	err := y.Extract(context.Background(), "https://example.com/v", out)
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("ожидалась ErrExtractionFailed, получена %v", err)
	}
}

func TestYtDlpExtract_RunnerError(t *testing.T) {
	runner := &recordingRunner{err: errors.New("exit status 1")}
	y := NewYtDlp("yt-dlp", time.Minute, testLogger(), WithRunner(runner.Run))

	err := y.Extract(context.Background(), "https://example.com/v", filepath.Join(t.TempDir(), "a.mp3"))
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("ожидалась ErrExtractionFailed, получена %v", err)
	}
}
