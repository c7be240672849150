package memesearch

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type space struct {
	dim   int
	model string
}

func (s space) Dimension() int    { return s.dim }
func (s space) ModelInfo() string { return s.model }

func testIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Build([]*schema.Document{
		doc("grumpy", 0.9, 0.1, 0),
		doc("doge", 0.1, 0.9, 0),
		doc("drake", 0, 0.2, 0.8),
	}, 3, "test-model")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return idx
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vector_store")
	orig := testIndex(t)

	if err := orig.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !Exists(dir) {
		t.Fatal("Expected Exists to report the saved index")
	}

	loaded, err := Load(dir, space{3, "test-model"}, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Len() != orig.Len() || loaded.ModelInfo() != "test-model" {
		t.Fatalf("Loaded index differs: len=%d model=%s", loaded.Len(), loaded.ModelInfo())
	}

	queries := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {0.3, 0.3, 0.3}}
	for _, q := range queries {
		a, _ := orig.Search(q, 3)
		b, _ := loaded.Search(q, 3)
		for i := range a {
			if a[i].Document.ID != b[i].Document.ID {
				t.Errorf("query %v: result %d differs: %s vs %s", q, i, a[i].Document.ID, b[i].Document.ID)
			}
			if math.Abs(float64(a[i].Distance-b[i].Distance)) > 1e-6 {
				t.Errorf("query %v: distance %d differs: %f vs %f", q, i, a[i].Distance, b[i].Distance)
			}
		}
	}

	d := loaded.Documents()[0]
	if d.Content != "Meme image: grumpy.png" || ImagePath(d) != "/memes/grumpy.png" || len(Embedding(d)) != 3 {
		t.Errorf("Document not restored: %+v", d)
	}
}

func TestSave_Overwrites(t *testing.T) {
	dir := t.TempDir()
	if err := testIndex(t).Save(dir); err != nil {
		t.Fatalf("first Save: %v", err)
	}

	smaller, _ := Build([]*schema.Document{doc("only", 1, 0, 0)}, 3, "test-model")
	if err := smaller.Save(dir); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	loaded, err := Load(dir, space{3, "test-model"}, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Len() != 1 {
		t.Errorf("Expected 1 document after overwrite, got %d", loaded.Len())
	}
}

func TestLoad_DimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	testIndex(t).Save(dir)

	_, err := Load(dir, space{512, "test-model"}, nil)
	if !errors.Is(err, ErrCorruptIndex) {
		t.Errorf("Expected ErrCorruptIndex, got %v", err)
	}
}

func TestLoad_GarbageIndexFile(t *testing.T) {
	dir := t.TempDir()
	testIndex(t).Save(dir)
	if err := os.WriteFile(filepath.Join(dir, indexFile), []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(dir, space{3, "test-model"}, nil)
	if !errors.Is(err, ErrCorruptIndex) {
		t.Errorf("Expected ErrCorruptIndex, got %v", err)
	}
}

func TestLoad_MissingDocstore(t *testing.T) {
	dir := t.TempDir()
	testIndex(t).Save(dir)
	os.Remove(filepath.Join(dir, docstoreFile))

	_, err := Load(dir, space{3, "test-model"}, nil)
	if !errors.Is(err, ErrCorruptIndex) {
		t.Errorf("Expected ErrCorruptIndex, got %v", err)
	}
}

func TestLoad_NotFound(t *testing.T) {
	dir := t.TempDir()
	if Exists(dir) {
		t.Fatal("Expected empty dir to have no index")
	}
	_, err := Load(dir, space{3, "test-model"}, nil)
	if err == nil || errors.Is(err, ErrCorruptIndex) {
		t.Errorf("Expected a not-found error, got %v", err)
	}
}

func TestLoad_ModelMismatchWarns(t *testing.T) {
	dir := t.TempDir()
	testIndex(t).Save(dir)

	logger, hook := test.NewNullLogger()
	if _, err := Load(dir, space{3, "other-model"}, logger); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(hook.Entries) != 1 || hook.LastEntry().Level != logrus.WarnLevel {
		t.Errorf("Expected one warning, got %v", hook.AllEntries())
	}
}

func TestSaveLoad_SpecialCharactersInPath(t *testing.T) {
	for _, name := range []string{"store#1", "what?store", "100% memes"} {
		t.Run(name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), name)
			if err := testIndex(t).Save(dir); err != nil {
				t.Fatalf("Save: %v", err)
			}
			loaded, err := Load(dir, space{3, "test-model"}, nil)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if loaded.Len() != 3 {
				t.Errorf("Expected 3 documents, got %d", loaded.Len())
			}
		})
	}
}

func TestSave_LeavesNoStagingDirs(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "vector_store")
	for i := 0; i < 2; i++ {
		if err := testIndex(t).Save(dir); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}

	entries, err := os.ReadDir(parent)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "vector_store" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Expected only vector_store in %s, got %v", parent, names)
	}

	files, _ := os.ReadDir(dir)
	if len(files) != 2 {
		t.Errorf("Expected index.gob and docstore.db, got %d entries", len(files))
	}
}
