package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tradekit/hscodex/internal/domain"
)

// csvColumns holds the resolved header positions of the required columns.
type csvColumns struct {
	id, code, description, embedding int
}

// loadCSV reads a CSV corpus with columns id, code, description, embedding.
// The embedding cell is a bracketed comma-separated float list, e.g.
// "[0.12, -0.3, 0.99]".
func loadCSV(path string) (*Corpus, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", domain.ErrCorpus, err)
	}
	cols, err := resolveCSVColumns(header)
	if err != nil {
		return nil, err
	}

	c := &Corpus{}
	for row := 0; ; row++ {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: row %d: %v", domain.ErrCorpus, row, err)
		}
		if len(rec) <= cols.embedding {
			return nil, fmt.Errorf("%w: row %d has %d fields", domain.ErrCorpus, row, len(rec))
		}
		vec, err := parseEmbedding(rec[cols.embedding])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", domain.ErrCorpus, row, err)
		}
		c.Records = append(c.Records, domain.Record{
			ID:          rec[cols.id],
			Code:        rec[cols.code],
			Description: rec[cols.description],
		})
		c.Vectors = append(c.Vectors, vec)
	}

	return validate(c)
}

func resolveCSVColumns(header []string) (csvColumns, error) {
	cols := csvColumns{id: -1, code: -1, description: -1, embedding: -1}
	for i, name := range header {
		switch strings.TrimSpace(strings.ToLower(name)) {
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
	for name, idx := range map[string]int{
		"id": cols.id, "code": cols.code,
		"description": cols.description, "embedding": cols.embedding,
	} {
		if idx < 0 {
			return cols, fmt.Errorf("%w: missing column %q", domain.ErrCorpus, name)
		}
	}
	return cols, nil
}

// parseEmbedding parses a bracketed float list into a vector.
func parseEmbedding(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty embedding")
	}
	parts := strings.Split(s, ",")
	vec := make([]float32, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("embedding component %d: %w", i, err)
		}
		vec[i] = float32(v)
	}
	return vec, nil
}
