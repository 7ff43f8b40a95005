package corpus

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/tradekit/hscodex/internal/domain"
)

// parquetColumns holds the leaf-level column indices resolved by name.
// embedding is a list column; its leaf index matches every element value.
type parquetColumns struct {
	id, code, description, embedding int
}

// loadParquet reads a parquet corpus with columns id, code, description and
// an embedding float list column. Uses the generic row reader so the schema
// does not have to match a Go struct exactly.
func loadParquet(path string) (*Corpus, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat corpus: %w", err)
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: open parquet: %v", domain.ErrCorpus, err)
	}

	cols, err := resolveParquetColumns(pf)
	if err != nil {
		return nil, err
	}

	c := &Corpus{}
	for _, rg := range pf.RowGroups() {
		if err := readRowGroup(rg, cols, c); err != nil {
			return nil, err
		}
	}

	return validate(c)
}

func resolveParquetColumns(pf *parquet.File) (parquetColumns, error) {
	cols := parquetColumns{id: -1, code: -1, description: -1, embedding: -1}
	for i, path := range pf.Schema().Columns() {
		if len(path) == 0 {
			continue
		}
		switch path[0] {
		case "id":
			cols.id = i
		case "code":
			cols.code = i
		case "description":
			cols.description = i
		case "embedding":
			cols.embedding = i
		}
	}
	if cols.id < 0 || cols.code < 0 || cols.description < 0 || cols.embedding < 0 {
		return cols, fmt.Errorf("%w: parquet schema missing one of id/code/description/embedding",
			domain.ErrCorpus)
	}
	return cols, nil
}

func readRowGroup(rg parquet.RowGroup, cols parquetColumns, c *Corpus) error {
	rows := parquet.NewRowGroupReader(rg)
	buf := make([]parquet.Row, 256)

	for {
		n, readErr := rows.ReadRows(buf)
		for i := 0; i < n; i++ {
			rec, vec := rowToRecord(buf[i], cols)
			c.Records = append(c.Records, rec)
			c.Vectors = append(c.Vectors, vec)
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return fmt.Errorf("%w: read rows: %v", domain.ErrCorpus, readErr)
		}
	}
}

// rowToRecord extracts a record and its embedding from a generic parquet row.
// List column element values share the leaf column index, so the embedding
// components arrive in row order.
func rowToRecord(row parquet.Row, cols parquetColumns) (domain.Record, []float32) {
	var rec domain.Record
	var vec []float32

	for _, v := range row {
		switch v.Column() {
		case cols.id:
			rec.ID = v.String()
		case cols.code:
			rec.Code = v.String()
		case cols.description:
			rec.Description = v.String()
		case cols.embedding:
			if v.IsNull() {
				continue
			}
			switch v.Kind() {
			case parquet.Float:
				vec = append(vec, v.Float())
			case parquet.Double:
				vec = append(vec, float32(v.Double()))
			}
		}
	}
	return rec, vec
}
