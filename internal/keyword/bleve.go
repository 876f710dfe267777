package keyword

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/reportqa/internal/models"
)

const (
	fieldName    = "name"
	fieldContent = "content"
)

// BleveIndex implements ReportIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path.
// If you change the index mapping in code, remove the index directory to force a re-index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()
	// Standard analyzer: lowercase + tokenize, no stemming, so report vocabulary matches verbatim.
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	doc.AddFieldMappingsAt(fieldName, text)
	doc.AddFieldMappingsAt(fieldContent, text)
	doc.AddFieldMappingsAt("id", bleve.NewKeywordFieldMapping())
	im.DefaultMapping = doc
	return im
}

// Index adds or replaces the catalog entry for report.
func (b *BleveIndex) Index(ctx context.Context, report *models.Report, text string) error {
	return b.index.Index(report.ID, map[string]interface{}{
		"id":         report.ID,
		fieldName:    searchableName(report.Name),
		fieldContent: text,
	})
}

// searchableName turns separators into spaces so "q3_risk-review.pdf" matches "risk review".
func searchableName(name string) string {
	return strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(name)
}

// Search returns up to limit reports matching query. With a name boost above 1,
// name and content are queried separately and their scores added.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Result, error) {
	if limit <= 0 {
		limit = 10
	}
	nameBoost, fuzziness := 1.0, 0
	if opts != nil {
		if opts.NameBoost > 0 {
			nameBoost = opts.NameBoost
		}
		fuzziness = opts.Fuzziness
	}

	if nameBoost <= 1.0 {
		hits, err := b.run(b.buildQuery(query, "", fuzziness), limit)
		if err != nil {
			return nil, err
		}
		out := make([]*Result, 0, len(hits))
		for id, score := range hits {
			out = append(out, &Result{ReportID: id, Score: score})
		}
		return sortResults(out, limit), nil
	}

	reqSize := limit * 2
	if reqSize < 50 {
		reqSize = 50
	}
	nameHits, err := b.run(b.buildQuery(query, fieldName, fuzziness), reqSize)
	if err != nil {
		return nil, err
	}
	contentHits, err := b.run(b.buildQuery(query, fieldContent, fuzziness), reqSize)
	if err != nil {
		return nil, err
	}
	scores := make(map[string]float64, len(nameHits)+len(contentHits))
	for id, s := range nameHits {
		scores[id] += s * nameBoost
	}
	for id, s := range contentHits {
		scores[id] += s
	}
	out := make([]*Result, 0, len(scores))
	for id, s := range scores {
		out = append(out, &Result{ReportID: id, Score: s})
	}
	return sortResults(out, limit), nil
}

func (b *BleveIndex) run(q blevequery.Query, size int) (map[string]float64, error) {
	req := bleve.NewSearchRequest(q)
	req.Size = size
	res, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	hits := make(map[string]float64, len(res.Hits))
	for _, h := range res.Hits {
		hits[h.ID] = h.Score
	}
	return hits, nil
}

func sortResults(out []*Result, limit int) []*Result {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ReportID < out[j].ReportID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// buildQuery returns a match query, or a disjunction of fuzzy term queries when
// fuzziness > 0. An empty field searches all fields.
func (b *BleveIndex) buildQuery(query, field string, fuzziness int) blevequery.Query {
	terms := strings.Fields(strings.ToLower(query))
	if fuzziness <= 0 || len(terms) == 0 {
		mq := bleve.NewMatchQuery(query)
		if field != "" {
			mq.SetField(field)
		}
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		if field != "" {
			fq.SetField(field)
		}
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// Delete removes a report from the catalog.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// DocCount returns the number of cataloged reports.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
