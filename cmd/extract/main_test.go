package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const savedPage = `<html><body>
<div id="instrument-historie">
  <table class="kurs-table">
    <thead><tr><th>Datum</th><th>Schluss [EUR]</th></tr></thead>
    <tbody>
      <tr><td>04.03.2024</td><td>1.240,10</td></tr>
      <tr><td>01.03.2024</td><td>1.234,50</td></tr>
      <tr><td>--</td><td>1,00</td></tr>
    </tbody>
  </table>
</div>
</body></html>`

func TestRun_SavedPage(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(savedPage), 0o600))
	var stdout, stderr bytes.Buffer

	// Act
	err := run(context.Background(), []string{"-html", path}, &stdout, &stderr)

	// Assert
	require.NoError(t, err, stderr.String())
	var out output
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	require.Len(t, out.Rows, 3)
	require.Equal(t, []point{
		{Date: "2024-03-04", Native: "1240.1", Display: "1.240,10"},
		{Date: "2024-03-01", Native: "1234.5", Display: "1.234,50"},
	}, out.Points)
	require.Len(t, out.Errors, 1)
}

func TestRun_MissingSavedPage(t *testing.T) {
	err := run(context.Background(), []string{"-html", filepath.Join(t.TempDir(), "none.html")}, &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
}
