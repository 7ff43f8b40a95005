package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
)

type parquetRow struct {
	ID          string    `parquet:"id"`
	Code        string    `parquet:"code"`
	Description string    `parquet:"description"`
	Embedding   []float32 `parquet:"embedding,list"`
}

func writeParquet(t *testing.T, rows []parquetRow) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.parquet")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	w := parquet.NewGenericWriter[parquetRow](f)
	if _, err := w.Write(rows); err != nil {
		t.Fatalf("write fixture rows: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close fixture: %v", err)
	}
	return path
}

func TestLoad_Parquet(t *testing.T) {
	path := writeParquet(t, []parquetRow{
		{ID: "1", Code: "0101", Description: "Live horses", Embedding: []float32{0.1, 0.2, 0.3}},
		{ID: "2", Code: "0102", Description: "Live bovine animals", Embedding: []float32{-0.5, 0.25, 1.0}},
	})

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", c.Len())
	}
	if c.Dim != 3 {
		t.Errorf("expected dimension 3, got %d", c.Dim)
	}
	if c.Records[0].ID != "1" || c.Records[0].Code != "0101" {
		t.Errorf("record 0 = %+v", c.Records[0])
	}
	if c.Vectors[1][0] != -0.5 || c.Vectors[1][2] != 1.0 {
		t.Errorf("vector 1 = %v", c.Vectors[1])
	}
}

func TestLoad_ParquetDimensionDrift(t *testing.T) {
	path := writeParquet(t, []parquetRow{
		{ID: "1", Code: "a", Description: "a", Embedding: []float32{0.1, 0.2}},
		{ID: "2", Code: "b", Description: "b", Embedding: []float32{0.1, 0.2, 0.3}},
	})

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for dimension drift")
	}
}

func TestLoad_ParquetEmpty(t *testing.T) {
	path := writeParquet(t, nil)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty corpus")
	}
}
