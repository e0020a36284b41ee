// Package genie drives Databricks Genie conversations for structured-data
// questions.
//
// One Ask is a start → poll → fetch protocol:
//
//	POST start-conversation → poll message status every PollInterval
//	(at most MaxPolls times) → on COMPLETED, read attachments →
//	optionally GET the tabular query result for a preview.
//
// Missing configuration and unsuccessful terminal states are reported as an
// error-status models.GenieResult so the caller can pass them to the LLM as
// ordinary tool output. Only transport faults and non-2xx answers on the
// start/status calls are returned as Go errors.
package genie

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/agentoven/purview-router/internal/config"
	"github.com/agentoven/purview-router/internal/telemetry"
	"github.com/agentoven/purview-router/pkg/models"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultPollInterval is the delay before each status poll.
	DefaultPollInterval = 500 * time.Millisecond
	// DefaultMaxPolls bounds the status polling loop (~30s at the default interval).
	DefaultMaxPolls = 60
	// PreviewRows is the number of result rows rendered into the response.
	PreviewRows = 10

	noResponse = "No response generated"
)

// Message states reported by the status endpoint.
const (
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
)

func terminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// StatusError is returned when a start or status call answers non-2xx.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("genie: %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client implements contracts.GenieService.
type Client struct {
	baseURL string
	spaceID string
	token   string
	client  *http.Client

	// PollInterval and MaxPolls control the status polling loop.
	PollInterval time.Duration
	MaxPolls     int
}

// NewClient creates a Genie client. An instance without a scheme is
// addressed over https.
func NewClient(cfg config.GenieConfig) *Client {
	base := strings.TrimRight(cfg.Instance, "/")
	if base != "" && !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return &Client{
		baseURL:      base,
		spaceID:      cfg.SpaceID,
		token:        cfg.AuthToken,
		client:       &http.Client{Timeout: 60 * time.Second},
		PollInterval: DefaultPollInterval,
		MaxPolls:     DefaultMaxPolls,
	}
}

// Configured reports whether instance, space and token are all set.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.spaceID != "" && c.token != ""
}

// ── Wire types ──────────────────────────────────────────────

type startResponse struct {
	Conversation struct {
		ID string `json:"id"`
	} `json:"conversation"`
	Message struct {
		ID string `json:"id"`
	} `json:"message"`
}

type messageStatus struct {
	Status      string       `json:"status"`
	Attachments []attachment `json:"attachments"`
}

type attachment struct {
	AttachmentID string          `json:"attachment_id"`
	Text         *textAttachment `json:"text"`
	Query        *queryInfo      `json:"query"`
}

type textAttachment struct {
	Content string `json:"content"`
}

type queryInfo struct {
	Query               string `json:"query"`
	Description         string `json:"description"`
	QueryResultMetadata *struct {
		RowCount *int `json:"row_count"`
	} `json:"query_result_metadata"`
}

type queryResultResponse struct {
	StatementResponse *struct {
		Result   *resultData `json:"result"`
		Manifest *struct {
			Schema *resultSchema `json:"schema"`
		} `json:"manifest"`
	} `json:"statement_response"`
	Result *resultData `json:"result"`
}

type resultData struct {
	DataArray []json.RawMessage `json:"data_array"`
	Schema    *resultSchema     `json:"schema"`
}

type resultSchema struct {
	Columns []struct {
		Name *string `json:"name"`
	} `json:"columns"`
}

// ── Ask ─────────────────────────────────────────────────────

// Ask sends query to the Genie space and waits for the answer.
func (c *Client) Ask(ctx context.Context, query string) (*models.GenieResult, error) {
	if !c.Configured() {
		telemetry.GenieRequests.WithLabelValues("unconfigured").Inc()
		return &models.GenieResult{Status: models.StatusError, Message: "Missing Genie configuration"}, nil
	}

	var start startResponse
	if err := c.do(ctx, "start conversation", http.MethodPost, c.spacePath("/start-conversation"),
		map[string]string{"content": query}, &start); err != nil {
		return nil, err
	}
	convID, msgID := start.Conversation.ID, start.Message.ID

	log.Debug().
		Str("conversation_id", convID).
		Str("message_id", msgID).
		Msg("Genie conversation started")

	msgPath := c.spacePath(fmt.Sprintf("/conversations/%s/messages/%s", convID, msgID))

	var status messageStatus
	polls := 0
	for i := 0; i < c.MaxPolls; i++ {
		if err := sleep(ctx, c.PollInterval); err != nil {
			return nil, err
		}
		status = messageStatus{}
		if err := c.do(ctx, "get message status", http.MethodGet, msgPath, nil, &status); err != nil {
			return nil, err
		}
		polls++
		if terminal(status.Status) {
			break
		}
	}
	telemetry.PollIterations.WithLabelValues("genie").Observe(float64(polls))

	if status.Status != StatusCompleted {
		log.Warn().
			Str("conversation_id", convID).
			Str("status", status.Status).
			Int("polls", polls).
			Msg("Genie query did not complete")
		telemetry.GenieRequests.WithLabelValues("failed").Inc()
		return &models.GenieResult{
			Status:  models.StatusError,
			Message: "Genie query failed with status: " + status.Status,
		}, nil
	}

	res := &models.GenieResult{
		Status:         models.StatusSuccess,
		ConversationID: convID,
		MessageID:      msgID,
	}
	response, attachmentID, description := c.readAttachments(status.Attachments, res)

	if attachmentID != "" && res.SQL() != "" {
		response += c.preview(ctx, msgPath, attachmentID, res.RowCount)
	}
	res.Response = response

	telemetry.GenieRequests.WithLabelValues("success").Inc()
	log.Info().
		Str("conversation_id", convID).
		Bool("generated_query", res.SQL() != "").
		Bool("has_description", description != "").
		Msg("Genie query completed")

	return res, nil
}

// readAttachments folds the attachment list into the response text. The last
// non-empty text attachment wins; the last query attachment supplies the
// generated SQL, its description, row count and attachment id.
func (c *Client) readAttachments(atts []attachment, res *models.GenieResult) (response, attachmentID, description string) {
	response = noResponse
	hasText := false

	for _, a := range atts {
		if a.Text != nil && a.Text.Content != "" {
			response = a.Text.Content
			hasText = true
		}
		if a.Query != nil {
			sql := a.Query.Query
			res.GeneratedQuery = &sql
			description = a.Query.Description
			res.RowCount = nil
			if a.Query.QueryResultMetadata != nil {
				res.RowCount = a.Query.QueryResultMetadata.RowCount
			}
			attachmentID = a.AttachmentID
		}
	}

	if sql := res.SQL(); sql != "" && !hasText {
		if description != "" {
			response = fmt.Sprintf("%s\n\nGenerated SQL:\n%s", description, sql)
		} else {
			response = "Generated SQL query:\n" + sql
		}
		if res.RowCount != nil {
			response += fmt.Sprintf("\n\nTotal rows: %d", *res.RowCount)
		}
	}
	return response, attachmentID, description
}

// preview fetches the query result and renders up to PreviewRows rows as a
// pipe-delimited table. Any failure yields an empty preview.
func (c *Client) preview(ctx context.Context, msgPath, attachmentID string, rowCount *int) string {
	req, err := c.newRequest(ctx, http.MethodGet, msgPath+"/query-result/"+attachmentID, nil)
	if err != nil {
		return ""
	}
	resp, err := c.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("attachment_id", attachmentID).Msg("Genie query result fetch failed")
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Str("attachment_id", attachmentID).Msg("Genie query result unavailable")
		return ""
	}

	var qr queryResultResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		log.Warn().Err(err).Msg("Genie query result decode failed")
		return ""
	}

	var result *resultData
	var manifestSchema *resultSchema
	if qr.StatementResponse != nil {
		result = qr.StatementResponse.Result
		if qr.StatementResponse.Manifest != nil {
			manifestSchema = qr.StatementResponse.Manifest.Schema
		}
	}
	if result == nil {
		result = qr.Result
	}
	if result == nil || result.DataArray == nil {
		return ""
	}

	schema := result.Schema
	if schema == nil {
		schema = manifestSchema
	}
	return renderTable(schema, result.DataArray, rowCount)
}

// renderTable formats rows as the preview block appended to a response.
func renderTable(schema *resultSchema, rows []json.RawMessage, rowCount *int) string {
	var b strings.Builder
	b.WriteString("\n\nFirst 10 rows:")

	if schema != nil && len(schema.Columns) > 0 {
		names := make([]string, len(schema.Columns))
		for i, col := range schema.Columns {
			if col.Name != nil {
				names[i] = *col.Name
			} else {
				names[i] = "col_" + strconv.Itoa(i)
			}
		}
		header := strings.Join(names, " | ")
		b.WriteString("\n" + header + "\n" + strings.Repeat("-", len(header)))
	}

	if len(rows) > PreviewRows {
		rows = rows[:PreviewRows]
	}
	for _, raw := range rows {
		var cells []interface{}
		if err := json.Unmarshal(raw, &cells); err != nil {
			continue
		}
		vals := make([]string, len(cells))
		for i, v := range cells {
			vals[i] = formatCell(v)
		}
		b.WriteString("\n" + strings.Join(vals, " | "))
	}

	if rowCount != nil && *rowCount > PreviewRows {
		fmt.Fprintf(&b, "\n\n... showing %d of %d total rows", PreviewRows, *rowCount)
	}
	return b.String()
}

func formatCell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "True"
		}
		return "False"
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}

// ── HTTP helpers ────────────────────────────────────────────

func (c *Client) spacePath(suffix string) string {
	return fmt.Sprintf("%s/api/2.0/genie/spaces/%s%s", c.baseURL, c.spaceID, suffix)
}

func (c *Client) newRequest(ctx context.Context, method, url string, body interface{}) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("genie: encode request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return nil, fmt.Errorf("genie: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(ctx context.Context, op, method, url string, body, out interface{}) error {
	req, err := c.newRequest(ctx, method, url, body)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("genie: %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("genie: %s: decode response: %w", op, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
