package genie

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentoven/purview-router/internal/config"
	"github.com/agentoven/purview-router/pkg/models"
)

const (
	spaceID = "space-1"
	convID  = "conv-1"
	msgID   = "msg-1"
)

// fakeGenie serves start-conversation, a scripted sequence of status
// payloads and an optional query result.
type fakeGenie struct {
	statuses    []string // raw JSON bodies returned per status poll
	resultCode  int
	resultBody  string
	statusCalls int32
	resultCalls int32
}

func (f *fakeGenie) handler(t *testing.T) http.Handler {
	msgPath := fmt.Sprintf("/api/2.0/genie/spaces/%s/conversations/%s/messages/%s", spaceID, convID, msgID)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer genie-token", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/2.0/genie/spaces/"+spaceID+"/start-conversation":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.NotEmpty(t, body["content"])
			fmt.Fprintf(w, `{"conversation":{"id":%q},"message":{"id":%q}}`, convID, msgID)
		case r.Method == http.MethodGet && r.URL.Path == msgPath:
			n := int(atomic.AddInt32(&f.statusCalls, 1)) - 1
			if n >= len(f.statuses) {
				n = len(f.statuses) - 1
			}
			w.Write([]byte(f.statuses[n]))
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, msgPath+"/query-result/"):
			atomic.AddInt32(&f.resultCalls, 1)
			code := f.resultCode
			if code == 0 {
				code = http.StatusNotFound
			}
			w.WriteHeader(code)
			w.Write([]byte(f.resultBody))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newTestClient(t *testing.T, f *fakeGenie) *Client {
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	c := NewClient(config.GenieConfig{Instance: srv.URL, SpaceID: spaceID, AuthToken: "genie-token"})
	c.PollInterval = 0
	return c
}

func TestNewClient_AddsScheme(t *testing.T) {
	c := NewClient(config.GenieConfig{Instance: "adb-123.azuredatabricks.net/", SpaceID: "s", AuthToken: "t"})
	assert.Equal(t, "https://adb-123.azuredatabricks.net", c.baseURL)
	assert.True(t, c.Configured())
	assert.Equal(t, DefaultPollInterval, c.PollInterval)
	assert.Equal(t, DefaultMaxPolls, c.MaxPolls)
}

func TestAsk_MissingConfiguration(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c := NewClient(config.GenieConfig{Instance: srv.URL, SpaceID: spaceID})
	require.False(t, c.Configured())

	res, err := c.Ask(context.Background(), "total sales")
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, res.Status)
	assert.Equal(t, "Missing Genie configuration", res.Message)
	assert.Zero(t, atomic.LoadInt32(&hits), "no network call without configuration")
}

func TestAsk_QueryWithoutText(t *testing.T) {
	f := &fakeGenie{statuses: []string{
		`{"status":"COMPLETED","attachments":[{"attachment_id":"att-1","query":{"query":"SELECT 1","query_result_metadata":{"row_count":2}}}]}`,
	}}
	c := newTestClient(t, f)

	res, err := c.Ask(context.Background(), "how many")
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, convID, res.ConversationID)
	assert.Equal(t, msgID, res.MessageID)
	require.NotNil(t, res.GeneratedQuery)
	assert.Equal(t, "SELECT 1", *res.GeneratedQuery)
	require.NotNil(t, res.RowCount)
	assert.Equal(t, 2, *res.RowCount)
	assert.Equal(t, "Generated SQL query:\nSELECT 1\n\nTotal rows: 2", res.Response)
	assert.EqualValues(t, 1, f.resultCalls, "result fetch attempted once")
}

func TestAsk_DescriptionAndPreview(t *testing.T) {
	f := &fakeGenie{
		statuses: []string{
			`{"status":"EXECUTING_QUERY"}`,
			`{"status":"COMPLETED","attachments":[{"attachment_id":"att-1","query":{"query":"SELECT region, total FROM sales","description":"Sales by region","query_result_metadata":{"row_count":2}}}]}`,
		},
		resultCode: http.StatusOK,
		resultBody: `{"statement_response":{
			"manifest":{"schema":{"columns":[{"name":"region"},{"name":"total"}]}},
			"result":{"data_array":[["EMEA", 10.5],["APAC", null]]}}}`,
	}
	c := newTestClient(t, f)

	res, err := c.Ask(context.Background(), "sales by region")
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.statusCalls)

	want := "Sales by region\n\nGenerated SQL:\nSELECT region, total FROM sales\n\nTotal rows: 2" +
		"\n\nFirst 10 rows:\nregion | total\n--------------\nEMEA | 10.5\nAPAC | NULL"
	assert.Equal(t, want, res.Response)
	assert.NotContains(t, res.Response, "showing")
}

func TestAsk_TextAttachmentWins(t *testing.T) {
	f := &fakeGenie{statuses: []string{
		`{"status":"COMPLETED","attachments":[{"text":{"content":"first"}},{"text":{"content":""}},{"text":{"content":"The answer is 42."}}]}`,
	}}
	c := newTestClient(t, f)

	res, err := c.Ask(context.Background(), "meaning")
	require.NoError(t, err)
	assert.Equal(t, "The answer is 42.", res.Response)
	assert.Nil(t, res.GeneratedQuery)
	assert.Zero(t, f.resultCalls)
}

func TestAsk_NoAttachments(t *testing.T) {
	f := &fakeGenie{statuses: []string{`{"status":"COMPLETED"}`}}
	c := newTestClient(t, f)

	res, err := c.Ask(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "No response generated", res.Response)
}

func TestAsk_FailedStatus(t *testing.T) {
	f := &fakeGenie{statuses: []string{`{"status":"FAILED"}`}}
	c := newTestClient(t, f)

	res, err := c.Ask(context.Background(), "broken")
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, res.Status)
	assert.Equal(t, "Genie query failed with status: FAILED", res.Message)
	assert.EqualValues(t, 1, f.statusCalls)
}

func TestAsk_PollExhaustion(t *testing.T) {
	f := &fakeGenie{statuses: []string{`{"status":"EXECUTING_QUERY"}`}}
	c := newTestClient(t, f)
	c.MaxPolls = 3

	res, err := c.Ask(context.Background(), "slow")
	require.NoError(t, err)
	assert.Equal(t, "Genie query failed with status: EXECUTING_QUERY", res.Message)
	assert.EqualValues(t, 3, f.statusCalls)
}

func TestAsk_PreviewTruncated(t *testing.T) {
	var rows []string
	for i := 0; i < 12; i++ {
		rows = append(rows, fmt.Sprintf(`[%d, true]`, i))
	}
	f := &fakeGenie{
		statuses: []string{
			`{"status":"COMPLETED","attachments":[{"attachment_id":"att-9","query":{"query":"SELECT n, ok FROM t","query_result_metadata":{"row_count":25}}}]}`,
		},
		resultCode: http.StatusOK,
		resultBody: `{"result":{"schema":{"columns":[{"name":"n"},{}]},"data_array":[` + strings.Join(rows, ",") + `]}}`,
	}
	c := newTestClient(t, f)

	res, err := c.Ask(context.Background(), "rows")
	require.NoError(t, err)
	assert.Contains(t, res.Response, "n | col_1")
	assert.Contains(t, res.Response, "\n9 | True")
	assert.NotContains(t, res.Response, "\n10 | True")
	assert.True(t, strings.HasSuffix(res.Response, "\n\n... showing 10 of 25 total rows"))
}

func TestAsk_ResultFetchNon200Ignored(t *testing.T) {
	f := &fakeGenie{
		statuses: []string{
			`{"status":"COMPLETED","attachments":[{"attachment_id":"att-1","query":{"query":"SELECT 1"}}]}`,
		},
		resultCode: http.StatusInternalServerError,
		resultBody: `{"error":"boom"}`,
	}
	c := newTestClient(t, f)

	res, err := c.Ask(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "Generated SQL query:\nSELECT 1", res.Response)
}

func TestAsk_StartStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(config.GenieConfig{Instance: srv.URL, SpaceID: spaceID, AuthToken: "t"})
	_, err := c.Ask(context.Background(), "q")
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Equal(t, "start conversation", se.Op)
}

func TestAsk_ContextCancelled(t *testing.T) {
	f := &fakeGenie{statuses: []string{`{"status":"EXECUTING_QUERY"}`}}
	c := newTestClient(t, f)
	c.PollInterval = DefaultPollInterval

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Ask(ctx, "q")
	assert.ErrorIs(t, err, context.Canceled)
}
