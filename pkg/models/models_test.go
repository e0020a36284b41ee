package models_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentoven/purview-router/pkg/models"
)

func TestGenieResult_SuccessKeepsAllKeys(t *testing.T) {
	out := models.EncodeToolOutput(&models.GenieResult{
		Status:         models.StatusSuccess,
		Response:       "The answer is 42.",
		ConversationID: "conv-1",
		MessageID:      "msg-1",
	})

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, map[string]interface{}{
		"status":          "success",
		"response":        "The answer is 42.",
		"conversation_id": "conv-1",
		"message_id":      "msg-1",
		"generated_query": nil,
		"row_count":       nil,
	}, got)
}

func TestGenieResult_SuccessWithQuery(t *testing.T) {
	sql, rows := "SELECT 1", 2
	out := models.EncodeToolOutput(models.GenieResult{
		Status:         models.StatusSuccess,
		Response:       "Generated SQL query:\nSELECT 1",
		GeneratedQuery: &sql,
		RowCount:       &rows,
	})
	assert.Contains(t, out, `"generated_query":"SELECT 1"`)
	assert.Contains(t, out, `"row_count":2`)
}

func TestGenieResult_ErrorShape(t *testing.T) {
	out := models.EncodeToolOutput(&models.GenieResult{
		Status:  models.StatusError,
		Message: "Missing Genie configuration",
	})
	assert.JSONEq(t, `{"status":"error","message":"Missing Genie configuration"}`, out)
}
