// Package archive keeps a full-text index of persisted document text.
package archive

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hyperjump/taxdesk/internal/models"
	"github.com/hyperjump/taxdesk/pkg/utils"
)

const titleBoost = 2.0

// Hit is one search result.
type Hit struct {
	DocumentID  int64    `json:"document_id"`
	Title       string   `json:"title"`
	WorkOrderID int64    `json:"work_order_id,omitempty"`
	Score       float64  `json:"score"`
	Fragments   []string `json:"fragments,omitempty"`
}

// SearchOptions narrows a search.
type SearchOptions struct {
	Limit       int
	Fuzzy       bool
	Fuzziness   int
	WorkOrderID int64 // 0 = any
}

// Archive wraps a bleve index of documents.
type Archive struct {
	index  bleve.Index
	logger *zap.Logger
}

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	doc.AddFieldMappingsAt("title", text)
	doc.AddFieldMappingsAt("content", text)

	kw := bleve.NewKeywordFieldMapping()
	doc.AddFieldMappingsAt("document_type", kw)

	num := bleve.NewNumericFieldMapping()
	doc.AddFieldMappingsAt("work_order_id", num)

	im.AddDocumentMapping("document", doc)
	im.DefaultType = "document"
	im.DefaultMapping = doc
	return im
}

// Open creates or reopens an on-disk index at path.
func Open(path string, logger *zap.Logger) (*Archive, error) {
	logger = utils.OrNop(logger)
	if _, err := os.Stat(path); err == nil {
		index, err := bleve.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "failed to open archive index")
		}
		return &Archive{index: index, logger: logger}, nil
	}
	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, eris.Wrap(err, "failed to create archive index")
	}
	return &Archive{index: index, logger: logger}, nil
}

// NewMemOnly returns an index that lives in memory.
func NewMemOnly(logger *zap.Logger) (*Archive, error) {
	index, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, eris.Wrap(err, "failed to create archive index")
	}
	return &Archive{index: index, logger: utils.OrNop(logger)}, nil
}

// Index adds or replaces the entry for doc.
func (a *Archive) Index(ctx context.Context, doc *models.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.index.Index(docKey(doc.ID), docFields(doc)); err != nil {
		return eris.Wrapf(err, "index document %d", doc.ID)
	}
	return nil
}

// IndexAll indexes docs in one batch.
func (a *Archive) IndexAll(ctx context.Context, docs []*models.Document) error {
	batch := a.index.NewBatch()
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := batch.Index(docKey(doc.ID), docFields(doc)); err != nil {
			return eris.Wrapf(err, "index document %d", doc.ID)
		}
	}
	if err := a.index.Batch(batch); err != nil {
		return eris.Wrap(err, "archive batch")
	}
	a.logger.Debug("archived documents", zap.Int("count", len(docs)))
	return nil
}

// Search runs a query over title and content. Title matches weigh double.
func (a *Archive) Search(ctx context.Context, query string, opts SearchOptions) ([]Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Fuzziness <= 0 {
		opts.Fuzziness = 1
	}

	var q blevequery.Query = bleve.NewDisjunctionQuery(
		fieldQuery(query, "title", titleBoost, opts),
		fieldQuery(query, "content", 1, opts),
	)

	if opts.WorkOrderID != 0 {
		id := float64(opts.WorkOrderID)
		inclusive := true
		nq := bleve.NewNumericRangeInclusiveQuery(&id, &id, &inclusive, &inclusive)
		nq.SetField("work_order_id")
		q = bleve.NewConjunctionQuery(q, nq)
	}

	req := bleve.NewSearchRequestOptions(q, opts.Limit, 0, false)
	req.Fields = []string{"title", "work_order_id"}
	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField("content")

	res, err := a.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "archive search failed")
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			a.logger.Warn("skipping archive hit with foreign id", zap.String("id", h.ID))
			continue
		}
		hit := Hit{DocumentID: id, Score: h.Score, Fragments: h.Fragments["content"]}
		if t, ok := h.Fields["title"].(string); ok {
			hit.Title = t
		}
		if w, ok := h.Fields["work_order_id"].(float64); ok {
			hit.WorkOrderID = int64(w)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// fieldQuery builds a match query, or a disjunction of fuzzy term queries when opts.Fuzzy is set.
func fieldQuery(query, field string, boost float64, opts SearchOptions) blevequery.Query {
	if !opts.Fuzzy {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(field)
		mq.SetBoost(boost)
		return mq
	}
	terms := strings.Fields(strings.ToLower(query))
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(opts.Fuzziness)
		fq.SetField(field)
		fq.SetBoost(boost)
		queries = append(queries, fq)
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// Delete removes a document from the index.
func (a *Archive) Delete(ctx context.Context, id int64) error {
	return a.index.Delete(docKey(id))
}

// Count returns the number of indexed documents.
func (a *Archive) Count() (uint64, error) {
	return a.index.DocCount()
}

// Close closes the index.
func (a *Archive) Close() error {
	return a.index.Close()
}

func docFields(doc *models.Document) map[string]any {
	fields := map[string]any{
		"title":         doc.Title,
		"content":       doc.Content,
		"document_type": doc.DocumentType,
	}
	if doc.WorkOrderID != nil {
		fields["work_order_id"] = float64(*doc.WorkOrderID)
	}
	return fields
}

func docKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
