// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSpec(t *testing.T) {
	spec, err := generateSpec()
	require.NoError(t, err)

	var doc struct {
		OpenAPI string                    `json:"openapi"`
		Info    struct{ Title string }    `json:"info"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(spec, &doc))
	assert.Contains(t, doc.OpenAPI, "3.1")
	assert.Equal(t, "Switchyard", doc.Info.Title)

	for path, method := range map[string]string{
		"/health":                    "get",
		"/api/v1/turns":              "post",
		"/api/v1/gates":              "get",
		"/api/v1/gates/{id}":         "get",
		"/api/v1/gates/{id}/resolve": "post",
		"/api/v1/tools":              "get",
		"/api/v1/tools/execute":      "post",
		"/api/v1/runs":               "get",
		"/api/v1/runs/{id}/trace":    "get",
		"/api/v1/audit":              "get",
		"/api/v1/providers":          "get",
	} {
		require.Contains(t, doc.Paths, path)
		assert.Contains(t, doc.Paths[path], method, path)
	}
}
