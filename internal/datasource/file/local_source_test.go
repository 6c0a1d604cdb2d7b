package file

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestLocalOpen covers success, missing file, and pre-canceled context.
func TestLocalOpen(t *testing.T) {
	t.Parallel()

	writeFile := func(t *testing.T, content string) string {
		t.Helper()
		p := filepath.Join(t.TempDir(), "song.json")
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write test file: %v", err)
		}
		return p
	}

	cases := []struct {
		name            string
		prepare         func(t *testing.T) string
		canceled        bool
		wantErrIs       error
		wantErrContains string
		wantContent     string
	}{
		{
			name:        "success_reads_content",
			prepare:     func(t *testing.T) string { return writeFile(t, `{"num_songs": 1}`) },
			wantContent: `{"num_songs": 1}`,
		},
		{
			name: "missing_file_errors_with_wrapping",
			prepare: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "missing.json")
			},
			wantErrIs:       os.ErrNotExist,
			wantErrContains: "open ",
		},
		{
			name:      "pre_canceled_context_short_circuits",
			prepare:   func(t *testing.T) string { return writeFile(t, "ignored") },
			canceled:  true,
			wantErrIs: context.Canceled,
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			if c.canceled {
				var cancel context.CancelFunc
				ctx, cancel = context.WithCancel(ctx)
				cancel()
			}
			src := NewLocal(c.prepare(t))
			rc, err := src.Open(ctx)

			if c.wantErrIs != nil {
				if !errors.Is(err, c.wantErrIs) {
					t.Fatalf("errors.Is(%v, %v) = false", err, c.wantErrIs)
				}
				if c.wantErrContains != "" && !strings.Contains(err.Error(), c.wantErrContains) {
					t.Fatalf("error %q does not contain substring %q", err, c.wantErrContains)
				}
				if rc != nil {
					_ = rc.Close()
					t.Fatalf("got non-nil ReadCloser on error: %T", rc)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open() unexpected error: %v", err)
			}
			defer rc.Close()

			got, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("reading: %v", err)
			}
			if string(got) != c.wantContent {
				t.Fatalf("content mismatch: got %q, want %q", got, c.wantContent)
			}
		})
	}
}

func TestTreeList(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for _, rel := range []string{
		"song_data/A/B/C/TRABCEI128F424C983.json",
		"song_data/A/A/B/TRAABJV128F1460C49.JSON",
		"song_data/A/readme.txt",
		"log_data/2018/11/2018-11-01-events.json",
	} {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	objs, err := NewTree(filepath.Join(root, "song_data")).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var names []string
	for _, o := range objs {
		rel, _ := filepath.Rel(root, o.Name())
		names = append(names, filepath.ToSlash(rel))
	}
	want := []string{
		"song_data/A/A/B/TRAABJV128F1460C49.JSON",
		"song_data/A/B/C/TRABCEI128F424C983.json",
	}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("names = %v, want %v", names, want)
	}

	single := filepath.Join(root, "song_data/A/readme.txt")
	objs, err = NewTree(single).List(context.Background())
	if err != nil || len(objs) != 1 || objs[0].Name() != single {
		t.Fatalf("single file list = %v, %v", objs, err)
	}

	if _, err := NewTree(filepath.Join(root, "nope")).List(context.Background()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing root: want ErrNotExist, got %v", err)
	}
}

// BenchmarkLocalOpen_Success measures the steady-state cost of opening a small file.
func BenchmarkLocalOpen_Success(b *testing.B) {
	p := filepath.Join(b.TempDir(), "song.json")
	if err := os.WriteFile(p, []byte("{}"), 0o644); err != nil {
		b.Fatalf("write test file: %v", err)
	}

	src := NewLocal(p)
	ctx := context.Background()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		rc, err := src.Open(ctx)
		if err != nil {
			b.Fatal(err)
		}
		if err := rc.Close(); err != nil {
			b.Fatal(err)
		}
	}
}
