package fulltext

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Document field names.
const (
	FieldContent  = "content"
	FieldPath     = "path"
	FieldEntryID  = "entry_id"
	FieldPage     = "page"
	FieldModified = "modified"
)

// Analyzer names registered in the index mapping.
const (
	AnalyzerPageText = "page_text"
	AnalyzerPath     = "path_keyword"
)

// buildMapping returns the mapping for page documents. Page text is split
// on unicode word boundaries and lower-cased, and stored so hits can show
// it; the path is kept as a single lower-cased term so wildcard queries can
// match any part of it.
func buildMapping() (mapping.IndexMapping, error) {
	m := bleve.NewIndexMapping()

	err := m.AddCustomAnalyzer(AnalyzerPageText, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, err
	}
	err = m.AddCustomAnalyzer(AnalyzerPath, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     single.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, err
	}

	content := bleve.NewTextFieldMapping()
	content.Analyzer = AnalyzerPageText
	content.Store = true
	content.IncludeInAll = false

	path := bleve.NewTextFieldMapping()
	path.Analyzer = AnalyzerPath
	path.Store = true
	path.IncludeInAll = false

	entryID := bleve.NewTextFieldMapping()
	entryID.Analyzer = keyword.Name
	entryID.Store = true
	entryID.IncludeInAll = false

	page := bleve.NewNumericFieldMapping()
	page.Store = true
	page.IncludeInAll = false

	modified := bleve.NewDateTimeFieldMapping()
	modified.IncludeInAll = false

	doc := bleve.NewDocumentMapping()
	doc.Dynamic = false
	doc.AddFieldMappingsAt(FieldContent, content)
	doc.AddFieldMappingsAt(FieldPath, path)
	doc.AddFieldMappingsAt(FieldEntryID, entryID)
	doc.AddFieldMappingsAt(FieldPage, page)
	doc.AddFieldMappingsAt(FieldModified, modified)

	m.DefaultMapping = doc
	m.DefaultAnalyzer = AnalyzerPageText
	m.DefaultField = FieldContent
	m.IndexDynamic = false
	m.StoreDynamic = false
	return m, nil
}
