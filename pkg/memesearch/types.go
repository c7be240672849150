package memesearch

import (
	"errors"

	"github.com/cloudwego/eino/schema"
)

// Metadata keys carried by every indexed document.
const (
	MetaImagePath = "image_path" // absolute or folder-relative path of the image
	MetaEmbedding = "embedding"  // []float32 vector of the image
)

var (
	// ErrCorruptIndex is returned by Load when the persisted index cannot be
	// decoded or was built with a different vector dimensionality.
	ErrCorruptIndex = errors.New("corrupt index")

	// ErrEmptyIndex signals that a search ran against an index with no
	// documents. It is a "no results" state, not a failure.
	ErrEmptyIndex = errors.New("index holds no documents")

	// ErrDimensionMismatch is returned when a vector has the wrong length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// NewDocument creates an indexable document for one image.
func NewDocument(id, content, imagePath string, embedding []float32) *schema.Document {
	return &schema.Document{
		ID:      id,
		Content: content,
		MetaData: map[string]any{
			MetaImagePath: imagePath,
			MetaEmbedding: embedding,
		},
	}
}

// ImagePath returns the image path stored in the document metadata.
func ImagePath(doc *schema.Document) string {
	if doc == nil {
		return ""
	}
	p, _ := doc.MetaData[MetaImagePath].(string)
	return p
}

// Embedding returns the vector stored in the document metadata, or nil.
func Embedding(doc *schema.Document) []float32 {
	if doc == nil {
		return nil
	}
	v, _ := doc.MetaData[MetaEmbedding].([]float32)
	return v
}

// Hit is a single nearest-neighbour result.
type Hit struct {
	Document *schema.Document
	Distance float32 // Euclidean distance, lower is closer
}

// persistedIndex is the gob-encoded half of a saved index. The documents
// themselves live in the SQLite document store next to it.
type persistedIndex struct {
	Version   int
	Dimension int
	ModelInfo string
	IDs       []string    // document IDs in insertion order
	Vectors   [][]float32 // Vectors[i] belongs to IDs[i]
}
