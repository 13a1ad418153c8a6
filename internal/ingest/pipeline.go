package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rblake2320/multi-agent-rag/internal/config"
	"github.com/rblake2320/multi-agent-rag/internal/embedding"
	"github.com/rblake2320/multi-agent-rag/internal/extract"
	"github.com/rblake2320/multi-agent-rag/internal/models"
	"github.com/rblake2320/multi-agent-rag/internal/registry"
	"go.uber.org/zap"
)

// Pipeline chunks, embeds, and upserts documents into a domain's storage,
// vector index, and keyword index. It is the only writer of domain state.
type Pipeline struct {
	registry  *registry.Registry
	embedder  embedding.Embedder
	chunker   *Chunker
	loaders   *extract.Registry
	batchSize int
	logger    *zap.Logger // optional; when set, logs debug events
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a logger for debug output (document ingested, file skipped, etc.).
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithLoaders replaces the default document loader registry used by IngestPath.
func WithLoaders(r *extract.Registry) Option {
	return func(p *Pipeline) { p.loaders = r }
}

// New creates an ingestion pipeline over the given domain registry.
func New(reg *registry.Registry, embedder embedding.Embedder, cfg *config.IngestConfig, opts ...Option) *Pipeline {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 32
	}
	p := &Pipeline{
		registry:  reg,
		embedder:  embedder,
		chunker:   NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		loaders:   extract.NewRegistry(),
		batchSize: batch,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest chunks, embeds, and upserts docs into the named domain. Re-ingesting
// a SourceID replaces its previous chunks. Empty documents are skipped and
// recorded in the report. An embedding failure aborts the remaining work and
// returns the partial report alongside the error; documents already upserted
// stay upserted.
func (p *Pipeline) Ingest(ctx context.Context, domain string, docs []models.Document) (*models.IngestReport, error) {
	if err := registry.ValidateName(domain); err != nil {
		return nil, err
	}
	d, err := p.registry.Get(domain)
	if err != nil {
		return nil, err
	}
	// One writer per domain; independent domains ingest concurrently.
	d.Lock()
	defer d.Unlock()

	report := &models.IngestReport{Domain: domain}
	for i := range docs {
		doc := &docs[i]
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("ingest into %q: %w", domain, err)
		}
		if doc.SourceID == "" {
			doc.SourceID = uuid.New().String()
		}
		doc.Domain = domain
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = time.Now().UTC()
		}
		if strings.TrimSpace(doc.Text) == "" {
			report.DocumentsSkipped++
			report.Skipped = append(report.Skipped, models.SkippedDocument{
				SourceID: doc.SourceID,
				Reason:   "empty text",
			})
			continue
		}
		chunks := p.chunker.Chunk(doc)
		if err := p.embedChunks(ctx, chunks); err != nil {
			return report, fmt.Errorf("embed document %q for domain %q: %w", doc.SourceID, domain, err)
		}
		if err := p.upsertDocument(ctx, d, doc, chunks); err != nil {
			return report, fmt.Errorf("upsert document %q into domain %q: %w", doc.SourceID, domain, err)
		}
		report.DocumentsProcessed++
		report.ChunksWritten += len(chunks)
		if p.logger != nil {
			p.logger.Debug("document ingested",
				zap.String("domain", domain),
				zap.String("source_id", doc.SourceID),
				zap.Int("chunks", len(chunks)))
		}
	}
	return report, nil
}

// embedChunks fills in chunk embeddings batch by batch. Batching never
// changes the vectors, only how many provider calls are made.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []*models.Chunk) error {
	for start := 0; start < len(chunks); start += p.batchSize {
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, end-start)
		for i, ch := range chunks[start:end] {
			texts[i] = ch.Text
		}
		embeddings, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		for i := range embeddings {
			chunks[start+i].Embedding = embeddings[i]
		}
	}
	return nil
}

// upsertDocument replaces the document's previous chunks across storage,
// vector index, and keyword index, then writes the new ones. Deterministic
// chunk IDs mean unchanged chunks are overwritten in place.
func (p *Pipeline) upsertDocument(ctx context.Context, d *registry.Domain, doc *models.Document, chunks []*models.Chunk) error {
	oldIDs, err := d.Store.ChunkIDsBySourceID(ctx, doc.SourceID)
	if err != nil {
		return fmt.Errorf("list previous chunks: %w", err)
	}
	newIDs := make(map[string]bool, len(chunks))
	for _, ch := range chunks {
		newIDs[ch.ID] = true
	}
	stale := make([]string, 0)
	for _, id := range oldIDs {
		if !newIDs[id] {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := d.Index.Remove(ctx, stale); err != nil {
			return fmt.Errorf("remove stale vectors: %w", err)
		}
		for _, id := range stale {
			if err := d.Keywords.Delete(ctx, id); err != nil {
				return fmt.Errorf("remove stale keyword entry: %w", err)
			}
		}
	}
	if err := d.Store.DeleteChunksBySourceID(ctx, doc.SourceID); err != nil {
		return fmt.Errorf("delete previous chunks: %w", err)
	}
	if err := d.Store.UpsertDocument(ctx, doc); err != nil {
		return fmt.Errorf("store document: %w", err)
	}
	if err := d.Store.BatchUpsertChunks(ctx, chunks); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}
	ids := make([]string, len(chunks))
	vectors := make([][]float32, len(chunks))
	for i, ch := range chunks {
		ids[i] = ch.ID
		vectors[i] = ch.Embedding
	}
	if err := d.Index.Upsert(ctx, ids, vectors); err != nil {
		return fmt.Errorf("index vectors: %w", err)
	}
	for _, ch := range chunks {
		if err := d.Keywords.Index(ctx, ch.ID, ch.Text); err != nil {
			return fmt.Errorf("index keywords: %w", err)
		}
	}
	return nil
}

// RemoveSource deletes a document and its chunks from the domain's storage,
// vector index, and keyword index. Removing an unknown SourceID is a no-op.
func (p *Pipeline) RemoveSource(ctx context.Context, domain, sourceID string) error {
	d, err := p.registry.Get(domain)
	if err != nil {
		return err
	}
	d.Lock()
	defer d.Unlock()
	ids, err := d.Store.ChunkIDsBySourceID(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("list chunks of %q: %w", sourceID, err)
	}
	if len(ids) > 0 {
		if err := d.Index.Remove(ctx, ids); err != nil {
			return fmt.Errorf("remove vectors of %q: %w", sourceID, err)
		}
		for _, id := range ids {
			if err := d.Keywords.Delete(ctx, id); err != nil {
				return fmt.Errorf("remove keyword entry of %q: %w", sourceID, err)
			}
		}
	}
	if err := d.Store.DeleteChunksBySourceID(ctx, sourceID); err != nil {
		return fmt.Errorf("delete chunks of %q: %w", sourceID, err)
	}
	if err := d.Store.DeleteDocument(ctx, sourceID); err != nil {
		return fmt.Errorf("delete document %q: %w", sourceID, err)
	}
	if p.logger != nil {
		p.logger.Debug("document removed",
			zap.String("domain", domain),
			zap.String("source_id", sourceID))
	}
	return nil
}

const metaKeySourcePath = "source_path"

// PathSourceID returns a stable document SourceID for the given absolute
// path. The same path always yields the same ID, so re-ingesting a file
// replaces its chunks instead of duplicating them.
func PathSourceID(absolutePath string) string {
	hash := sha256.Sum256([]byte(filepath.Clean(absolutePath)))
	return "file:" + hex.EncodeToString(hash[:])
}

// IngestPath ingests a file, or every supported file under a directory, into
// the named domain. Files whose extension has no registered loader are
// skipped and recorded in the report, as are files that fail extraction.
func (p *Pipeline) IngestPath(ctx context.Context, domain, path string) (*models.IngestReport, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", absPath, err)
	}

	var files []string
	if info.IsDir() {
		walkErr := filepath.WalkDir(absPath, func(fp string, entry os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() {
				return nil
			}
			// Resolve symlinks so only regular files are ingested.
			finfo, statErr := os.Stat(fp)
			if statErr != nil || !finfo.Mode().IsRegular() {
				return nil
			}
			files = append(files, fp)
			return nil
		})
		if walkErr != nil {
			return nil, fmt.Errorf("walk %s: %w", absPath, walkErr)
		}
	} else {
		files = []string{absPath}
	}

	docs := make([]models.Document, 0, len(files))
	var preSkipped []models.SkippedDocument
	for _, fp := range files {
		if !p.loaders.Supported(fp) {
			preSkipped = append(preSkipped, models.SkippedDocument{
				SourceID: PathSourceID(fp),
				Reason:   fmt.Sprintf("unsupported extension %q", filepath.Ext(fp)),
			})
			continue
		}
		text, err := p.loaders.Load(fp)
		if err != nil {
			preSkipped = append(preSkipped, models.SkippedDocument{
				SourceID: PathSourceID(fp),
				Reason:   fmt.Sprintf("extract: %v", err),
			})
			if p.logger != nil {
				p.logger.Warn("file extraction failed", zap.String("path", fp), zap.Error(err))
			}
			continue
		}
		docs = append(docs, models.Document{
			SourceID: PathSourceID(fp),
			Text:     text,
			Metadata: map[string]interface{}{metaKeySourcePath: fp},
		})
	}

	report, err := p.Ingest(ctx, domain, docs)
	if report == nil {
		return nil, err
	}
	report.DocumentsSkipped += len(preSkipped)
	report.Skipped = append(report.Skipped, preSkipped...)
	return report, err
}
