package sources

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type oaiResponse struct {
	XMLName xml.Name `xml:"OAI-PMH"`
	Error   *struct {
		Code    string `xml:"code,attr"`
		Message string `xml:",chardata"`
	} `xml:"error"`
	ListRecords struct {
		Records         []oaiRecord `xml:"record"`
		ResumptionToken string      `xml:"resumptionToken"`
	} `xml:"ListRecords"`
}

type oaiRecord struct {
	Header struct {
		Status     string `xml:"status,attr"`
		Identifier string `xml:"identifier"`
	} `xml:"header"`
	DC struct {
		Title      []string `xml:"title"`
		Creator    []string `xml:"creator"`
		Date       []string `xml:"date"`
		Type       []string `xml:"type"`
		Identifier []string `xml:"identifier"`
	} `xml:"metadata>dc"`
}

// OAIError is an error element returned by a repository.
type OAIError struct {
	Code    string
	Message string
}

func (e *OAIError) Error() string {
	return fmt.Sprintf("oai-pmh %s: %s", e.Code, strings.TrimSpace(e.Message))
}

// HarvestedRecord is one oai_dc record mapped to metadata.
type HarvestedRecord struct {
	OAIIdentifier string
	Metadata      Metadata
}

// Harvester lists oai_dc records from an OAI-PMH repository.
type Harvester struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// NewHarvester builds a harvester for the repository endpoint baseURL.
func NewHarvester(baseURL string, timeout time.Duration, opts ...FetchOption) (*Harvester, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("oai base url required")
	}
	f := NewFetcher(timeout, opts...)
	return &Harvester{baseURL: baseURL, httpClient: f.httpClient, userAgent: f.userAgent}, nil
}

// Harvest yields the live records of set (all sets when empty), following
// resumption tokens until the list is exhausted. Deleted records are
// skipped. A repository reporting noRecordsMatch yields nothing.
func (h *Harvester) Harvest(ctx context.Context, set string) iter.Seq2[HarvestedRecord, error] {
	return func(yield func(HarvestedRecord, error) bool) {
		params := url.Values{}
		params.Set("verb", "ListRecords")
		params.Set("metadataPrefix", "oai_dc")
		if set != "" {
			params.Set("set", set)
		}
		for {
			page, err := h.listRecords(ctx, params)
			if err != nil {
				var oaiErr *OAIError
				if errors.As(err, &oaiErr) && oaiErr.Code == "noRecordsMatch" {
					return
				}
				yield(HarvestedRecord{}, err)
				return
			}
			for _, rec := range page.ListRecords.Records {
				if rec.Header.Status == "deleted" {
					continue
				}
				if !yield(harvested(rec), nil) {
					return
				}
			}
			token := strings.TrimSpace(page.ListRecords.ResumptionToken)
			if token == "" {
				return
			}
			params = url.Values{}
			params.Set("verb", "ListRecords")
			params.Set("resumptionToken", token)
		}
	}
}

func (h *Harvester) listRecords(ctx context.Context, params url.Values) (*oaiResponse, error) {
	endpoint, err := url.Parse(h.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse oai url: %w", err)
	}
	endpoint.RawQuery = params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}
	start := time.Now()
	resp, err := h.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("oai-pmh returned %d (latency=%v)", resp.StatusCode, latency)
	}
	var page oaiResponse
	if err := xml.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode oai-pmh response: %w", err)
	}
	if page.Error != nil {
		return nil, &OAIError{Code: page.Error.Code, Message: page.Error.Message}
	}
	return &page, nil
}

func harvested(rec oaiRecord) HarvestedRecord {
	m := Metadata{
		Creator: first(rec.DC.Creator),
		Title:   first(rec.DC.Title),
		Date:    first(rec.DC.Date),
		Type:    first(rec.DC.Type),
	}
	for _, id := range rec.DC.Identifier {
		if id = strings.TrimSpace(id); IsURL(id) {
			m.Target = id
			break
		}
	}
	return HarvestedRecord{OAIIdentifier: strings.TrimSpace(rec.Header.Identifier), Metadata: m}
}

func first(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
