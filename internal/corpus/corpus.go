// Package corpus loads the classification-code corpus: an immutable record
// table plus a dense embedding matrix, position-paired row for row.
package corpus

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tradekit/hscodex/internal/domain"
)

// Corpus is the loaded record table and vector matrix. Records[i] always
// corresponds to Vectors[i]; the pairing never changes after load.
type Corpus struct {
	Records []domain.Record
	Vectors [][]float32
	Dim     int
}

// Len returns the number of corpus rows.
func (c *Corpus) Len() int { return len(c.Records) }

// Load reads a corpus file, dispatching on the file extension.
// Supported formats: .csv (embedding column is a bracketed float list)
// and .parquet (embedding is a float list column).
func Load(path string) (*Corpus, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return loadCSV(path)
	case ".parquet":
		return loadParquet(path)
	default:
		return nil, fmt.Errorf("%w: unsupported corpus format %q", domain.ErrCorpus, ext)
	}
}

// validate enforces the corpus invariants shared by both readers:
// non-empty, and every vector matching the first row's dimension.
func validate(c *Corpus) (*Corpus, error) {
	if len(c.Records) == 0 {
		return nil, fmt.Errorf("%w: corpus is empty", domain.ErrCorpus)
	}
	c.Dim = len(c.Vectors[0])
	if c.Dim == 0 {
		return nil, fmt.Errorf("%w: row 0 has an empty embedding", domain.ErrCorpus)
	}
	for i, v := range c.Vectors {
		if len(v) != c.Dim {
			return nil, fmt.Errorf("%w: row %d has dimension %d, expected %d",
				domain.ErrCorpus, i, len(v), c.Dim)
		}
	}
	return c, nil
}
