package cli

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/matzehuels/svg2img/pkg/encode"
	"github.com/matzehuels/svg2img/pkg/pipeline"
	"github.com/matzehuels/svg2img/pkg/sink"
)

const wideRect = `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="50" viewBox="0 0 100 50">` +
	`<rect x="0" y="0" width="100" height="50" fill="#ff0000"/></svg>`

func writeSVG(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func decodeFile(t *testing.T, path string) (image.Image, string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return img, format
}

func TestRenderCommandNextToInput(t *testing.T) {
	c, out := newTestCLI(t)
	input := writeSVG(t, t.TempDir(), "logo.svg", wideRect)

	if err := execute(t, c, "render", input); err != nil {
		t.Fatalf("render: %v", err)
	}

	want := strings.TrimSuffix(input, ".svg") + ".png"
	img, format := decodeFile(t, want)
	if format != "png" {
		t.Errorf("format = %q, want png", format)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("size = %dx%d, want 100x50", b.Dx(), b.Dy())
	}
	if !strings.Contains(out.String(), want) {
		t.Errorf("output %q should name %q", out.String(), want)
	}
}

func TestRenderCommandOutputInfersFormat(t *testing.T) {
	c, _ := newTestCLI(t)
	dir := t.TempDir()
	input := writeSVG(t, dir, "logo.svg", wideRect)
	output := filepath.Join(dir, "out", "logo.jpg")

	if err := execute(t, c, "render", input, "-o", output, "--size", "40x40"); err != nil {
		t.Fatalf("render: %v", err)
	}

	img, format := decodeFile(t, output)
	if format != "jpeg" {
		t.Errorf("format = %q, want jpeg", format)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 40 {
		t.Errorf("size = %dx%d, want 40x40", b.Dx(), b.Dy())
	}
}

func TestRenderCommandStdinToStdout(t *testing.T) {
	c, out := newTestCLI(t)
	c.Stdin = strings.NewReader(wideRect)

	if err := execute(t, c, "render", "-", "--stdout", "--size", "20x20", "--no-cache"); err != nil {
		t.Fatalf("render: %v", err)
	}

	img, format, err := image.Decode(bytes.NewReader(out.Bytes()))
	if err != nil {
		t.Fatalf("stdout is not an image: %v", err)
	}
	if format != "png" {
		t.Errorf("format = %q, want png", format)
	}
	if b := img.Bounds(); b.Dx() != 20 || b.Dy() != 20 {
		t.Errorf("size = %dx%d, want 20x20", b.Dx(), b.Dy())
	}
}

func TestRenderCommandMultipleInputs(t *testing.T) {
	c, _ := newTestCLI(t)
	dir := t.TempDir()
	good := writeSVG(t, dir, "good.svg", wideRect)
	bad := writeSVG(t, dir, "bad.svg", "<svg><rect")

	err := execute(t, c, "render", bad, good, "-f", "gif")
	if err == nil {
		t.Fatal("a malformed input should fail the command")
	}
	if !strings.Contains(err.Error(), "bad.svg") {
		t.Errorf("error %q should name the failing input", err)
	}

	if _, format := decodeFile(t, filepath.Join(dir, "good.gif")); format != "gif" {
		t.Errorf("format = %q, want gif", format)
	}
	if _, err := os.Stat(filepath.Join(dir, "bad.gif")); !os.IsNotExist(err) {
		t.Error("failed input must not leave an output file")
	}
}

func TestRenderCommandRejects(t *testing.T) {
	dir := t.TempDir()
	input := writeSVG(t, dir, "logo.svg", wideRect)

	tests := []struct {
		name string
		args []string
	}{
		{"output with several inputs", []string{"render", input, input, "-o", "x.png"}},
		{"stdout with several inputs", []string{"render", input, input, "--stdout"}},
		{"output and stdout", []string{"render", input, "-o", "x.png", "--stdout"}},
		{"unknown format", []string{"render", input, "-f", "bmp"}},
		{"bad size", []string{"render", input, "--size", "10by10"}},
		{"size and bounds", []string{"render", input, "--size", "10x10", "--max-width", "5"}},
		{"bad super sampling", []string{"render", input, "-s", "3"}},
		{"bad quality", []string{"render", input, "-q", "101"}},
		{"missing input", []string{"render", filepath.Join(dir, "missing.svg")}},
		{"no input", []string{"render"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCLI(t)
			if err := execute(t, c, tt.args...); err == nil {
				t.Errorf("%v: expected error", tt.args)
			}
		})
	}
}

func TestRenderKeyValues(t *testing.T) {
	var opts renderOpts
	cmd := &cobra.Command{Use: "render"}
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "")
	cmd.Flags().IntVar(&opts.width, "width", 0, "")
	cmd.Flags().IntVar(&opts.height, "height", 0, "")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "")

	if err := cmd.Flags().Parse([]string{"-f", "webp", "--width", "64", "--strict"}); err != nil {
		t.Fatal(err)
	}

	got := opts.keyValues(cmd)
	want := map[string]string{
		pipeline.KeyFormat: "webp",
		pipeline.KeyWidth:  "64",
		pipeline.KeyStrict: "true",
	}
	if len(got) != len(want) {
		t.Fatalf("keyValues() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("keyValues()[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestDestination(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  renderOpts
		want  sink.Destination
	}{
		{"stdout", "a.svg", renderOpts{stdout: true}, sink.Memory{}},
		{"explicit output", "a.svg", renderOpts{output: "b.png"}, sink.File{Path: "b.png"}},
		{"stdin", stdinArg, renderOpts{}, sink.Temp{}},
		{"next to input", "icons/a.svg", renderOpts{}, sink.File{Path: "icons/a.webp"}},
		{"input without extension", "icons/a", renderOpts{}, sink.File{Path: "icons/a.webp"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := destination(tt.input, encode.WEBP, &tt.opts)
			if got != tt.want {
				t.Errorf("destination(%q) = %#v, want %#v", tt.input, got, tt.want)
			}
		})
	}
}
