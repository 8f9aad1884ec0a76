// Package archive indexes individual detection matches into OpenSearch so
// analysts can search the lines behind an alert.
package archive

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchutil"
	"github.com/telhawk-systems/socdetect/common/logging"
	"github.com/telhawk-systems/socdetect/internal/config"
	"github.com/telhawk-systems/socdetect/internal/detection"
	"github.com/telhawk-systems/socdetect/internal/metrics"
)

// MatchDocument is one matching line as stored in the search index.
type MatchDocument struct {
	Timestamp   time.Time `json:"@timestamp"`
	FileName    string    `json:"file_name"`
	RuleID      string    `json:"rule_id"`
	RuleName    string    `json:"rule_name"`
	Category    string    `json:"category,omitempty"`
	MITREAttack []string  `json:"mitre_attack,omitempty"`
	Severity    string    `json:"severity"`
	RiskScore   int       `json:"risk_score"`
	LineNumber  int       `json:"line_number"`
	RawLine     string    `json:"raw_line"`
	LogTime     string    `json:"log_timestamp"`
	IPs         []string  `json:"ips,omitempty"`
	DataSize    *int64    `json:"data_size,omitempty"`
}

// IndexResult reports how many documents the bulk request stored.
type IndexResult struct {
	Indexed int      `json:"indexed"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// OpenSearchIndexer bulk-indexes detection matches.
type OpenSearchIndexer struct {
	client *opensearch.Client
	prefix string
	logger *logging.Logger
	now    func() time.Time
}

// NewOpenSearchIndexer connects to OpenSearch and verifies the cluster answers.
func NewOpenSearchIndexer(cfg config.OpenSearchConfig, logger *logging.Logger) (*OpenSearchIndexer, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.Insecure,
			},
		},
	}

	osCfg := opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: httpClient.Transport,
	}

	client, err := opensearch.NewClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	info, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to ping opensearch: %w", err)
	}
	defer info.Body.Close()

	if info.IsError() {
		return nil, fmt.Errorf("opensearch returned error: %s", info.Status())
	}

	return &OpenSearchIndexer{
		client: client,
		prefix: cfg.Index,
		logger: logger.WithComponent("archive"),
		now:    time.Now,
	}, nil
}

// IndexName returns the daily index documents indexed at t are written to.
func (x *OpenSearchIndexer) IndexName(t time.Time) string {
	return fmt.Sprintf("%s-%s", x.prefix, t.UTC().Format("2006.01.02"))
}

// IndexDetections stores one document per match of every detection in result.
// Per-document failures are counted, not returned.
func (x *OpenSearchIndexer) IndexDetections(ctx context.Context, result *detection.ParsedLogResult) (*IndexResult, error) {
	now := x.now()
	docs := BuildDocuments(result, now)
	resp := &IndexResult{}
	if len(docs) == 0 {
		return resp, nil
	}

	bi, err := opensearchutil.NewBulkIndexer(opensearchutil.BulkIndexerConfig{
		Client:     x.client,
		Index:      x.IndexName(now),
		NumWorkers: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bulk indexer: %w", err)
	}

	var mu sync.Mutex
	addError := func(msg string) {
		mu.Lock()
		defer mu.Unlock()
		resp.Errors = append(resp.Errors, msg)
	}

	for _, doc := range docs {
		data, err := json.Marshal(doc)
		if err != nil {
			resp.Failed++
			addError(fmt.Sprintf("failed to marshal document: %v", err))
			continue
		}

		err = bi.Add(ctx, opensearchutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: DocumentID(doc),
			Body:       bytes.NewReader(data),
			OnFailure: func(ctx context.Context, item opensearchutil.BulkIndexerItem, res opensearchutil.BulkIndexerResponseItem, err error) {
				if err != nil {
					addError(err.Error())
				} else {
					addError(fmt.Sprintf("%s: %s", res.Error.Type, res.Error.Reason))
				}
			},
		})
		if err != nil {
			resp.Failed++
			addError(fmt.Sprintf("failed to add to bulk indexer: %v", err))
		}
	}

	if err := bi.Close(ctx); err != nil {
		return nil, fmt.Errorf("failed to flush bulk indexer: %w", err)
	}

	stats := bi.Stats()
	resp.Indexed = int(stats.NumIndexed) + int(stats.NumCreated)
	resp.Failed += int(stats.NumFailed)

	metrics.ArchivedDocumentsTotal.WithLabelValues("indexed").Add(float64(resp.Indexed))
	metrics.ArchivedDocumentsTotal.WithLabelValues("failed").Add(float64(resp.Failed))

	if resp.Failed > 0 {
		x.logger.WarnContext(ctx, "some detection matches were not archived",
			logging.FileName(result.FileName),
			"failed", resp.Failed,
			"indexed", resp.Indexed,
		)
	}
	return resp, nil
}

// BuildDocuments flattens a parse result into one document per matching line.
func BuildDocuments(result *detection.ParsedLogResult, indexedAt time.Time) []MatchDocument {
	var docs []MatchDocument
	for i := range result.Detections {
		d := &result.Detections[i]
		for _, m := range d.Matches {
			docs = append(docs, MatchDocument{
				Timestamp:   indexedAt.UTC(),
				FileName:    result.FileName,
				RuleID:      d.Rule.ID,
				RuleName:    d.Rule.Name,
				Category:    d.Rule.Category,
				MITREAttack: d.Rule.MITREAttack,
				Severity:    string(d.Severity),
				RiskScore:   d.RiskScore,
				LineNumber:  m.LineNumber,
				RawLine:     m.RawLine,
				LogTime:     m.Timestamp,
				IPs:         m.ExtractedData.IPs,
				DataSize:    m.ExtractedData.DataSize,
			})
		}
	}
	return docs
}

// DocumentID is stable for a file, rule and line so re-analyzing a file
// overwrites its earlier documents.
func DocumentID(doc MatchDocument) string {
	return fmt.Sprintf("%s:%s:%d", doc.FileName, doc.RuleID, doc.LineNumber)
}
