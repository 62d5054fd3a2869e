package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/voxkit/voxkit/codec"
	"github.com/voxkit/voxkit/codec/npycodec"
	"github.com/voxkit/voxkit/codec/raster"
	"github.com/voxkit/voxkit/task"
)

const (
	lenTrain = 6
	lenVal   = 4
)

func touch(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func strp(s string) *string { return &s }

// simpleConfig builds the three-layer fixture the resolution tests
// share: plain image and semseg layers plus a file-stacked multilabel
// layer, with train files matching the base pattern and a val override.
func simpleConfig(t *testing.T) *Config {
	t.Helper()
	root := t.TempDir()
	for i := 0; i < lenTrain; i++ {
		touch(t,
			filepath.Join(root, "images", fmt.Sprintf("train_%d.png", i)),
			filepath.Join(root, "labels", fmt.Sprintf("train_%d.png", i)),
		)
		for j := 0; j < 5; j++ {
			touch(t, filepath.Join(root, "mllabels", fmt.Sprintf("train_%d_000%d.png", i, j)))
		}
	}
	for i := 0; i < lenVal; i++ {
		touch(t,
			filepath.Join(root, "images", fmt.Sprintf("val_%d.png", i)),
			filepath.Join(root, "labels", fmt.Sprintf("val_%d.png", i)),
		)
		for j := 0; j < 5; j++ {
			touch(t, filepath.Join(root, "mllabels", fmt.Sprintf("val_%d_000%d.png", i, j)))
		}
	}

	return &Config{
		Name: "MyDs",
		Root: root,
		Layers: []LayerSpec{
			{
				Name: "Images", Type: codec.Image,
				Path: filepath.Join(root, "images"), FileType: ".png",
				Pattern: "train_*", Channels: 3,
			},
			{
				Name: "Labels", Type: codec.SemSeg,
				Path: filepath.Join(root, "labels"), FileType: ".png",
				Pattern: "train_*", Classes: 5,
			},
			{
				Name: "MLLabels", Type: codec.MultiLabel,
				Path: filepath.Join(root, "mllabels"), FileType: ".png",
				Pattern: "train_*", Classes: 5, FileStack: true,
			},
		},
		Split: &SplitConfig{
			Overrides: map[string]map[string]*LayerOverride{
				"train": {"Images": nil, "Labels": nil, "MLLabels": nil},
				"val": {
					"Images":   {Pattern: strp("val_*")},
					"Labels":   {Pattern: strp("val_*")},
					"MLLabels": {Pattern: strp("val_*")},
				},
			},
		},
	}
}

func locateCount(t *testing.T, c *Config, layer, split string, fold int) int {
	t.Helper()
	l, err := c.Layer(layer)
	if err != nil {
		t.Fatalf("Layer(%s): %v", layer, err)
	}
	files, err := l.Locator(split, fold)
	if err != nil {
		t.Fatalf("Locator(%s, %s, %d): %v", layer, split, fold, err)
	}
	return len(files)
}

func TestConfigLayers(t *testing.T) {
	c := simpleConfig(t)
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if c.Len() != 3 {
		t.Fatalf("Len = %d", c.Len())
	}
	want := []string{"Images", "Labels", "MLLabels"}
	if !slices.Equal(c.LayerNames(), want) {
		t.Fatalf("LayerNames = %v", c.LayerNames())
	}
	if _, err := c.Layer("Bogus"); !errors.Is(err, ErrUnknownLayer) {
		t.Fatalf("want ErrUnknownLayer, got %v", err)
	}

	for _, name := range want {
		// Empty split: base spec, all pattern matches.
		if n := locateCount(t, c, name, "", 0); n != lenTrain {
			t.Fatalf("%s base count = %d, want %d", name, n, lenTrain)
		}
		// Explicit-but-empty override keeps the base pattern.
		if n := locateCount(t, c, name, "train", 0); n != lenTrain {
			t.Fatalf("%s train count = %d, want %d", name, n, lenTrain)
		}
		// Override swaps the pattern.
		if n := locateCount(t, c, name, "val", 0); n != lenVal {
			t.Fatalf("%s val count = %d, want %d", name, n, lenVal)
		}
	}
}

func TestResolveDoesNotMutateBase(t *testing.T) {
	c := simpleConfig(t)
	l, err := c.Layer("Images")
	if err != nil {
		t.Fatal(err)
	}
	spec, err := l.Resolve("val", 0)
	if err != nil {
		t.Fatal(err)
	}
	if spec.Pattern != "val_*" {
		t.Fatalf("resolved pattern = %q", spec.Pattern)
	}
	if l.Spec().Pattern != "train_*" {
		t.Fatalf("base pattern mutated to %q", l.Spec().Pattern)
	}
}

func TestResolveNoExplicitSplit(t *testing.T) {
	c := simpleConfig(t)
	l, err := c.Layer("Images")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.Resolve("test", 0); !errors.Is(err, ErrNoExplicitSplit) {
		t.Fatalf("want ErrNoExplicitSplit, got %v", err)
	}
	if _, err := l.Locator("test", 0); !errors.Is(err, ErrNoExplicitSplit) {
		t.Fatalf("Locator: want ErrNoExplicitSplit, got %v", err)
	}
}

func TestSplitFileNarrowing(t *testing.T) {
	c := simpleConfig(t)
	c.Split.SetFolds(SplitFile{{
		"train": {"_0", "_2", "_4"},
		"val":   {"_0", "_2"},
	}})

	for _, name := range []string{"Images", "Labels", "MLLabels"} {
		if n := locateCount(t, c, name, "", 0); n != lenTrain {
			t.Fatalf("%s base count = %d, want %d", name, n, lenTrain)
		}
		if n := locateCount(t, c, name, "train", 0); n != lenTrain/2 {
			t.Fatalf("%s train count = %d, want %d", name, n, lenTrain/2)
		}
		if n := locateCount(t, c, name, "val", 0); n != lenVal/2 {
			t.Fatalf("%s val count = %d, want %d", name, n, lenVal/2)
		}
	}
}

func TestSplitFileWithoutOverride(t *testing.T) {
	c := simpleConfig(t)
	c.Split.Overrides = nil
	c.Split.SetFolds(SplitFile{{"train": {"_1"}}})

	// Assignment by the split file alone is explicit.
	l, err := c.Layer("Images")
	if err != nil {
		t.Fatal(err)
	}
	spec, err := l.Resolve("train", 0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !slices.Equal(spec.IncludeNames, []string{"_1"}) {
		t.Fatalf("IncludeNames = %v", spec.IncludeNames)
	}
	if _, err := l.Resolve("val", 0); !errors.Is(err, ErrNoExplicitSplit) {
		t.Fatalf("want ErrNoExplicitSplit, got %v", err)
	}
}

func TestFoldOutOfRange(t *testing.T) {
	c := simpleConfig(t)
	c.Split.SetFolds(SplitFile{
		{"train": {"_0", "_2", "_4"}},
		{"train": {"_1", "_3", "_5"}},
	})

	l, err := c.Layer("Images")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.Resolve("train", 2); !errors.Is(err, ErrFoldOutOfRange) {
		t.Fatalf("want ErrFoldOutOfRange, got %v", err)
	}
	if _, err := l.Resolve("train", -1); !errors.Is(err, ErrFoldOutOfRange) {
		t.Fatalf("want ErrFoldOutOfRange, got %v", err)
	}

	// Different folds select different files over the same root.
	even := locateCount(t, c, "Images", "train", 0)
	odd := locateCount(t, c, "Images", "train", 1)
	if even != 3 || odd != 3 {
		t.Fatalf("fold counts = %d, %d, want 3, 3", even, odd)
	}
}

func TestLoadSplitFileSingleMapping(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "splits.json")
	if err := os.WriteFile(path, []byte(`{"train": ["_0"], "val": ["_1"]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	folds, err := LoadSplitFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(folds) != 1 {
		t.Fatalf("folds = %d, want 1", len(folds))
	}
	if !slices.Equal(folds[0]["val"], []string{"_1"}) {
		t.Fatalf("fold[0][val] = %v", folds[0]["val"])
	}

	if err := os.WriteFile(path, []byte(`[{"train": ["_0"]}, {"train": ["_1"]}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	folds, err = LoadSplitFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(folds) != 2 {
		t.Fatalf("folds = %d, want 2", len(folds))
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	c := &Config{
		Name: "",
		Layers: []LayerSpec{
			{Name: "A", Type: codec.Image, Path: "/x", FileType: ".png"},         // channels missing
			{Name: "A", Type: codec.SemSeg, Path: "/y", FileType: ".png"},        // classes missing + dup name
			{Name: "B", Type: codec.SemSeg, Path: "", FileType: ".png", Classes: 1}, // path missing
		},
	}
	err := c.Validate()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("want ErrInvalidConfig, got %v", err)
	}
	for _, frag := range []string{"name", "channels", "classes", "duplicate", "path"} {
		if !strings.Contains(err.Error(), frag) {
			t.Fatalf("error %q missing %q", err.Error(), frag)
		}
	}
}

func TestLayerLoaderWriterSelection(t *testing.T) {
	r := codec.NewRegistry()
	if err := npycodec.Register(r); err != nil {
		t.Fatal(err)
	}
	if err := raster.Register(r); err != nil {
		t.Fatal(err)
	}

	c := simpleConfig(t)
	cases := []struct {
		layer      string
		loaderType string
	}{
		{"Images", "*task.ImageLoader"},
		{"Labels", "*task.SemSegLoader"},
		{"MLLabels", "*task.MultiLabelStackLoader"},
	}
	for _, tc := range cases {
		l, err := c.Layer(tc.layer)
		if err != nil {
			t.Fatal(err)
		}
		loader, err := l.Loader(task.WithRegistry(r))
		if err != nil {
			t.Fatalf("%s Loader: %v", tc.layer, err)
		}
		if got := fmt.Sprintf("%T", loader); got != tc.loaderType {
			t.Fatalf("%s loader type = %s, want %s", tc.layer, got, tc.loaderType)
		}
		if _, err := l.Writer(task.WithRegistry(r)); err != nil {
			t.Fatalf("%s Writer: %v", tc.layer, err)
		}
	}
}
