// Package catalog searches the Microsoft Purview data map for assets relevant
// to a query.
//
// Each hit is normalized into a models.CatalogAsset. Two routing hints are
// derived from the raw record:
//
//  1. Connected agent: parsed from free-text descriptions of the form
//     "... agent: genie ...". The first captured word is kept as written.
//  2. Contact: the first contact id on the asset, resolved through a
//     static directory. Unknown ids resolve to nil.
//
// Non-2xx responses fail fast with a *StatusError; there is no retry.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/agentoven/purview-router/internal/auth"
	"github.com/agentoven/purview-router/pkg/contracts"
	"github.com/agentoven/purview-router/pkg/models"
	"github.com/rs/zerolog/log"
)

const (
	searchPath       = "/datamap/api/search/query"
	searchAPIVersion = "2023-09-01"

	// ResultLimit caps the number of assets returned per search.
	ResultLimit = 10

	noDescription = "No description"
)

// EntityTypes are the asset types a search is restricted to.
var EntityTypes = []string{"azure_storage_account", "fabric_lakehouse", "databricks_schema"}

var agentHintPattern = regexp.MustCompile(`(?i)agent:\s*(\w+)`)

// ParseAgentHint extracts the connected-agent name embedded in a
// description, or nil when there is none.
func ParseAgentHint(description string) *string {
	if description == "" {
		return nil
	}
	m := agentHintPattern.FindStringSubmatch(description)
	if m == nil {
		return nil
	}
	name := m[1]
	return &name
}

// StatusError is returned when the catalog answers with a non-success status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog: status %d: %s", e.StatusCode, e.Body)
}

// Service implements contracts.CatalogSearcher against the Purview data map.
type Service struct {
	endpoint string
	tokens   contracts.TokenProvider
	contacts Directory
	client   *http.Client
}

// NewService creates a catalog adapter. A nil directory falls back to
// DefaultContacts.
func NewService(endpoint string, tokens contracts.TokenProvider, contacts Directory) *Service {
	if contacts == nil {
		contacts = DefaultContacts()
	}
	return &Service{
		endpoint: strings.TrimRight(endpoint, "/"),
		tokens:   tokens,
		contacts: contacts,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type searchRequest struct {
	Limit    int          `json:"limit"`
	Keywords string       `json:"keywords"`
	Filter   searchFilter `json:"filter"`
}

type searchFilter struct {
	Or []entityTypeFilter `json:"or"`
}

type entityTypeFilter struct {
	EntityType string `json:"entityType"`
}

type searchResponse struct {
	Value []searchHit `json:"value"`
}

type searchHit struct {
	ID              string         `json:"id"`
	DisplayText     string         `json:"displayText"`
	UserDescription *string        `json:"userDescription"`
	Contact         []assetContact `json:"contact"`
}

type assetContact struct {
	ID          string `json:"id"`
	Info        string `json:"info,omitempty"`
	ContactType string `json:"contactType,omitempty"`
}

// Search runs one keyword search and normalizes the hits.
func (s *Service) Search(ctx context.Context, query string) (*models.CatalogSearchResult, error) {
	token, err := s.tokens.GetToken(ctx, auth.PurviewScope)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	filters := make([]entityTypeFilter, len(EntityTypes))
	for i, et := range EntityTypes {
		filters[i] = entityTypeFilter{EntityType: et}
	}
	body, _ := json.Marshal(searchRequest{
		Limit:    ResultLimit,
		Keywords: query,
		Filter:   searchFilter{Or: filters},
	})

	url := fmt.Sprintf("%s%s?api-version=%s", s.endpoint, searchPath, searchAPIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("catalog: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("catalog: decode response: %w", err)
	}

	results := make([]models.CatalogAsset, 0, len(sr.Value))
	for _, hit := range sr.Value {
		results = append(results, s.normalize(hit))
	}

	log.Debug().
		Str("query", query).
		Int("assets_found", len(results)).
		Msg("Catalog search complete")

	return &models.CatalogSearchResult{
		Status:      models.StatusSuccess,
		AssetsFound: len(results),
		Results:     results,
	}, nil
}

func (s *Service) normalize(hit searchHit) models.CatalogAsset {
	description := noDescription
	if hit.UserDescription != nil {
		description = *hit.UserDescription
	}

	var contact *string
	if len(hit.Contact) > 0 && hit.Contact[0].ID != "" {
		contact = s.contacts.Resolve(hit.Contact[0].ID)
	}

	return models.CatalogAsset{
		Name:           hit.DisplayText,
		Description:    description,
		AssetID:        hit.ID,
		ConnectedAgent: ParseAgentHint(description),
		Contact:        contact,
	}
}
