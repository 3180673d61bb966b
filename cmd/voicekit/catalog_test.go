package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listIDs(t *testing.T, opts listOptions) []string {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, listCatalog(context.Background(), &out, testCatalog(), opts))

	var records []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &records))
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestListCatalog_Kinds(t *testing.T) {
	assert.Equal(t, []string{"cat-travel", "cat-daily"}, listIDs(t, listOptions{kind: kindCategories}))
	assert.Equal(t, []string{"top-cafe"}, listIDs(t, listOptions{kind: kindTopics, category: "cat-daily"}))
	assert.Len(t, listIDs(t, listOptions{kind: kindTopics}), 2)
	assert.Equal(t, []string{"sub-order", "sub-pay", "sub-gate"}, listIDs(t, listOptions{kind: kindSubtopics}))
}

func TestListCatalog_Filter(t *testing.T) {
	ids := listIDs(t, listOptions{kind: kindSubtopics, filter: "[?Topic == 'top-cafe']"})
	assert.Equal(t, []string{"sub-order", "sub-pay"}, ids)
}

func TestListCatalog_Query(t *testing.T) {
	var out bytes.Buffer
	err := listCatalog(context.Background(), &out, testCatalog(), listOptions{kind: kindCategories, query: "[].Name"})
	require.NoError(t, err)

	var names []string
	require.NoError(t, json.Unmarshal(out.Bytes(), &names))
	assert.Equal(t, []string{"Travel", "Daily life"}, names)
}

func TestListCatalog_Errors(t *testing.T) {
	var out bytes.Buffer
	ctx := context.Background()
	assert.Error(t, listCatalog(ctx, &out, testCatalog(), listOptions{kind: "widgets"}))
	assert.Error(t, listCatalog(ctx, &out, testCatalog(), listOptions{kind: kindCategories, query: "[?"}))
}
