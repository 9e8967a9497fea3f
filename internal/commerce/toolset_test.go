package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecs(t *testing.T) {
	specs := Specs()

	require.Len(t, specs, 3)
	names := []string{specs[0].Name, specs[1].Name, specs[2].Name}
	assert.Equal(t, []string{ToolBrowseSite, ToolExtractProduct, ToolAnalyseCommerce}, names)
	for _, spec := range specs {
		assert.True(t, spec.AlwaysVisible, spec.Name)
		require.NotNil(t, spec.InputSchema, spec.Name)
		assert.Equal(t, "object", spec.InputSchema.Type, spec.Name)
	}
	assert.Equal(t, []any{AnalysisComparison, AnalysisAudit}, specs[2].InputSchema.Properties["type"].Enum)
	assert.True(t, IsTool(ToolExtractProduct))
	assert.False(t, IsTool("web_search"))
}

func TestExecute_UnknownTool(t *testing.T) {
	tools := newTestTools(nil, nil)

	_, err := tools.Execute(context.Background(), "checkout", nil)

	var unknown ErrUnknownTool
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "unknown commerce tool: checkout", err.Error())
}

func TestExecute_BadInput(t *testing.T) {
	tools := newTestTools(nil, nil)

	_, err := tools.Execute(context.Background(), ToolBrowseSite, json.RawMessage(`{"url": 12}`))

	assert.ErrorContains(t, err, "decode browse_site input")
}

func TestExecute_EncodesFailureResult(t *testing.T) {
	tools := newTestTools(nil, &mockGenerator{})

	out, err := tools.Execute(context.Background(), ToolAnalyseCommerce, json.RawMessage(`{"type":"comparison","products":[]}`))

	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"At least 2 products are required for a comparison."}`, string(out))
}

func TestExecuteParallel_OneSessionPerCall(t *testing.T) {
	browser := &fakeBrowser{newSession: func() *fakeSession { return &fakeSession{title: "Shop"} }}
	tools := newTestTools(browser, nil)

	results := tools.ExecuteParallel(context.Background(), []Call{
		{ID: "c1", Name: ToolBrowseSite, Input: json.RawMessage(`{"url":"https://a.test","objective":"o"}`)},
		{ID: "c2", Name: ToolBrowseSite, Input: json.RawMessage(`{"url":"https://b.test","objective":"o"}`)},
		{ID: "c3", Name: "nope"},
	})

	require.Len(t, results, 3)
	assert.Equal(t, "c1", results[0].ID)
	assert.Equal(t, "c2", results[1].ID)
	assert.Contains(t, string(results[0].Output), `"url":"https://a.test"`)
	assert.Contains(t, string(results[1].Output), `"url":"https://b.test"`)
	assert.Error(t, results[2].Err)

	require.Len(t, browser.sessions, 2)
	for _, s := range browser.sessions {
		assert.Len(t, s.navigated, 1)
		assert.EqualValues(t, 1, s.closeCalls.Load())
	}
}
