package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderKVPrintsSortedFieldTable(t *testing.T) {
	limit := 3
	v := struct {
		Title string   `json:"title"`
		ID    string   `json:"id"`
		Max   *int     `json:"max_submissions"`
		Ends  *string  `json:"end_at"`
		Open  bool     `json:"open"`
		Tags  []string `json:"tags"`
	}{Title: "Ship a demo", ID: "q1", Max: &limit, Open: true, Tags: []string{"web", "ai"}}

	var buf bytes.Buffer
	require.NoError(t, renderKV(&buf, v))
	out := buf.String()

	assert.NotContains(t, out, "{\n")
	assert.Contains(t, out, "FIELD")
	var rows []string
	for _, line := range strings.Split(out, "\n") {
		cells := strings.Split(line, "│")
		if len(cells) != 4 {
			continue
		}
		rows = append(rows, strings.TrimSpace(cells[1])+"="+strings.TrimSpace(cells[2]))
	}
	assert.Equal(t, []string{
		"FIELD=VALUE",
		"end_at=-",
		"id=q1",
		"max_submissions=3",
		"open=true",
		"tags=[\"web\",\"ai\"]",
		"title=Ship a demo",
	}, rows)
}

func TestRenderKVFallsBackToJSONForLists(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderKV(&buf, []string{"a", "b"}))
	assert.JSONEq(t, `["a","b"]`, buf.String())
}
