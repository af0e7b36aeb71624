package knowledge

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/support-ai-platform/pkg/logging"
)

const (
	MetadataSource    = "source"
	MetadataChunkHash = "chunk_hash"
)

var supportedExtensions = map[string]struct{}{
	".txt":  {},
	".md":   {},
	".json": {},
}

// Embedder converts text into vectors; batch calls must preserve input order.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Indexer chunks documents, embeds the chunks and writes them to a VectorStore.
type Indexer struct {
	store          VectorStore
	embedder       Embedder
	chunkSize      int
	overlap        int
	skipDuplicates bool
	logger         *logging.Logger
	tracer         trace.Tracer
}

type IndexerOption func(*Indexer)

// WithChunking overrides the default window size and overlap.
func WithChunking(size, overlap int) IndexerOption {
	return func(i *Indexer) {
		if size > 0 {
			i.chunkSize = size
		}
		if overlap >= 0 {
			i.overlap = overlap
		}
	}
}

// WithSkipDuplicates drops chunks whose content hash is already stored.
func WithSkipDuplicates() IndexerOption {
	return func(i *Indexer) { i.skipDuplicates = true }
}

func WithIndexerLogger(logger *logging.Logger) IndexerOption {
	return func(i *Indexer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

func NewIndexer(store VectorStore, embedder Embedder, opts ...IndexerOption) *Indexer {
	if store == nil {
		panic("knowledge: vector store required")
	}
	if embedder == nil {
		panic("knowledge: embedder required")
	}
	i := &Indexer{
		store:     store,
		embedder:  embedder,
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
		logger:    logging.Default(),
		tracer:    otel.Tracer("support.internal.knowledge.indexer"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// IndexDocument stores every chunk of content and returns how many were written.
// Chunks stored before a failure are kept.
func (i *Indexer) IndexDocument(ctx context.Context, content string, metadata map[string]any) (int, error) {
	ctx, span := i.tracer.Start(ctx, "knowledge.index_document")
	defer span.End()

	chunks := SplitIntoChunks(content, i.chunkSize, i.overlap)
	if len(chunks) == 0 {
		i.logger.Warn("no chunks generated from document", "source", metadata[MetadataSource])
		return 0, nil
	}

	hashes := make([]string, len(chunks))
	for n, chunk := range chunks {
		hashes[n] = ChunkHash(chunk)
	}
	if i.skipDuplicates {
		var err error
		chunks, hashes, err = i.dropStored(ctx, chunks, hashes)
		if err != nil {
			span.RecordError(err)
			return 0, err
		}
		if len(chunks) == 0 {
			return 0, nil
		}
	}
	span.SetAttributes(attribute.Int("knowledge.chunks", len(chunks)))

	embeddings, err := i.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("knowledge: embed chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("knowledge: got %d embeddings for %d chunks", len(embeddings), len(chunks))
	}

	indexed := 0
	for n, chunk := range chunks {
		chunkMeta := make(map[string]any, len(metadata)+1)
		for k, v := range metadata {
			chunkMeta[k] = v
		}
		chunkMeta[MetadataChunkHash] = hashes[n]
		if _, err := i.store.StoreChunk(ctx, Chunk{Content: chunk, Embedding: embeddings[n], Metadata: chunkMeta}); err != nil {
			span.RecordError(err)
			return indexed, fmt.Errorf("knowledge: store chunk %d: %w", n, err)
		}
		indexed++
	}
	i.logger.Info("indexed document", "source", metadata[MetadataSource], "chunks", indexed)
	return indexed, nil
}

func (i *Indexer) dropStored(ctx context.Context, chunks, hashes []string) ([]string, []string, error) {
	keptChunks := chunks[:0:0]
	keptHashes := hashes[:0:0]
	for n, hash := range hashes {
		exists, err := i.store.HasHash(ctx, hash)
		if err != nil {
			return nil, nil, fmt.Errorf("knowledge: duplicate check: %w", err)
		}
		if exists {
			continue
		}
		keptChunks = append(keptChunks, chunks[n])
		keptHashes = append(keptHashes, hash)
	}
	return keptChunks, keptHashes, nil
}

// IndexSummary reports a directory ingestion run.
type IndexSummary struct {
	TotalFiles   int      `json:"total_files"`
	IndexedFiles int      `json:"indexed_files"`
	TotalChunks  int      `json:"total_chunks"`
	Errors       []string `json:"errors"`
}

// IndexDirectory walks dir and indexes every supported file. Per-file
// failures are collected in the summary.
func (i *Indexer) IndexDirectory(ctx context.Context, dir string) (IndexSummary, error) {
	var summary IndexSummary
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if _, ok := supportedExtensions[ext]; !ok {
			return nil
		}
		summary.TotalFiles++

		content, err := readDocument(path, ext)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", d.Name(), err))
			return nil
		}
		if strings.TrimSpace(content) == "" {
			return nil
		}
		n, err := i.IndexDocument(ctx, content, map[string]any{
			MetadataSource: d.Name(),
			"path":         path,
			"type":         strings.TrimPrefix(ext, "."),
		})
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", d.Name(), err))
			return nil
		}
		summary.IndexedFiles++
		summary.TotalChunks += n
		return nil
	})
	if err != nil {
		return summary, fmt.Errorf("knowledge: index directory %s: %w", dir, err)
	}
	i.logger.Info("directory indexing complete",
		"dir", dir,
		"files", summary.TotalFiles,
		"indexed", summary.IndexedFiles,
		"chunks", summary.TotalChunks,
		"errors", len(summary.Errors),
	)
	return summary, nil
}

func readDocument(path, ext string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if ext != ".json" {
		return string(raw), nil
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return "", fmt.Errorf("invalid json: %w", err)
	}
	return pretty.String(), nil
}

// ChunkHash is the hex MD5 digest used to detect duplicate chunks.
func ChunkHash(chunk string) string {
	sum := md5.Sum([]byte(chunk))
	return hex.EncodeToString(sum[:])
}
