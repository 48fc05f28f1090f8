package catalog_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/photosync/catalog"
	apperrors "github.com/Skryldev/photosync/errors"
)

// A catalog as written by the previous publishing script.
const legacyCatalog = `---
- description: A foggy morning
  location: Point Reyes
  original_url: ''
  original_name: IMG_0001.jpg
  date: 2021-07-04 15:30:00.000000000 -07:00
  tags: coast
  name: Fog
  sha256_hash: 1111111111111111111111111111111111111111111111111111111111111111
  camera: X100V
  edited: 2021-01-01
  rating: 007
- description: ''
  location: ''
  original_url: ''
  original_name: scan.png
  date:
  tags: ''
  name: ''
  sha256_hash: 2222222222222222222222222222222222222222222222222222222222222222
- description: ''
  location: Lisbon
  original_url: ''
  original_name: tram.jpg
  date: 2019-03-02 08:15:00.000000000 Z
  tags: ''
  name: ''
  sha256_hash: 3333333333333333333333333333333333333333333333333333333333333333
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photos.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Empty(t *testing.T) {
	for name, content := range map[string]string{
		"blank":      "  \n\n",
		"null":       "null\n",
		"empty list": "[]\n",
		"doc marker": "---\n",
	} {
		t.Run(name, func(t *testing.T) {
			c, err := catalog.Load(writeFile(t, content))
			require.NoError(t, err)
			assert.Equal(t, 0, c.Len())
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	c, err := catalog.Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestLoad_Malformed(t *testing.T) {
	for name, content := range map[string]string{
		"not yaml":   "- [unclosed\n",
		"mapping":    "description: not a list\n",
		"bad date":   "- sha256_hash: abc\n  date: yesterday-ish\n",
		"bad nested": "- sha256_hash: [1, 2]\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := catalog.Load(writeFile(t, content))
			require.Error(t, err)
			assert.True(t, apperrors.IsCategory(err, apperrors.CategoryCatalogFormat), err.Error())
		})
	}
}

func TestLoad_ReadError(t *testing.T) {
	// A directory exists but cannot be read as a file.
	_, err := catalog.Load(t.TempDir())
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryIO))
}

func TestRoundTrip_Legacy(t *testing.T) {
	path := writeFile(t, legacyCatalog)
	c, err := catalog.Load(path)
	require.NoError(t, err)
	require.Equal(t, 3, c.Len())

	first, ok := c.FindByHash(strings.Repeat("1", 64))
	require.True(t, ok)
	assert.Equal(t, "A foggy morning", first.Description)
	assert.Equal(t, "Point Reyes", first.Location)
	assert.Equal(t, "IMG_0001.jpg", first.OriginalName)
	assert.Equal(t, "X100V", first.Extra["camera"].Value)
	require.NotNil(t, first.Date)
	assert.True(t, first.Date.Time().Equal(time.Date(2021, 7, 4, 22, 30, 0, 0, time.UTC)))

	second, ok := c.FindByHash(strings.Repeat("2", 64))
	require.True(t, ok)
	assert.Nil(t, second.Date)

	utc, ok := c.FindByHash(strings.Repeat("3", 64))
	require.True(t, ok)
	require.NotNil(t, utc.Date)
	assert.True(t, utc.Date.Time().Equal(time.Date(2019, 3, 2, 8, 15, 0, 0, time.UTC)))

	require.NoError(t, c.Save(path))
	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(saved)
	assert.Contains(t, out, "date: 2021-07-04 15:30:00.000000000 -07:00\n")
	assert.Contains(t, out, "date: 2019-03-02 08:15:00.000000000 Z\n")
	assert.Contains(t, out, "camera: X100V\n")
	assert.Contains(t, out, "edited: 2021-01-01\n")
	assert.Contains(t, out, "rating: 007\n")
	assert.Less(t, strings.Index(out, "IMG_0001.jpg"), strings.Index(out, "scan.png"), "order preserved")

	// A second load/save is a fixed point.
	again, err := catalog.Load(path)
	require.NoError(t, err)
	before := c.Records()
	after := again.Records()
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ContentHash, after[i].ContentHash)
		assert.Equal(t, before[i].Description, after[i].Description)
		require.Len(t, after[i].Extra, len(before[i].Extra))
		for k, v := range before[i].Extra {
			assert.Equal(t, v.Value, after[i].Extra[k].Value, "record %d key %s", i, k)
		}
		assert.True(t, before[i].Date.Equal(after[i].Date), "record %d date", i)
	}
	require.NoError(t, again.Save(path))
	resaved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, out, string(resaved))
}

func TestAppend(t *testing.T) {
	c := catalog.New()
	require.NoError(t, c.Append(catalog.Record{ContentHash: "a", OriginalName: "a.jpg"}))
	require.NoError(t, c.Append(catalog.Record{ContentHash: "b", OriginalName: "b.jpg",
		Date: catalog.NewTimestamp(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))}))

	err := c.Append(catalog.Record{ContentHash: "a", OriginalName: "again.jpg"})
	assert.True(t, errors.Is(err, apperrors.ErrDuplicateHash))
	assert.Error(t, c.Append(catalog.Record{}))

	recs := c.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "a.jpg", recs[0].OriginalName)
	assert.Equal(t, "b.jpg", recs[1].OriginalName)
	assert.Equal(t, "2024-03-01T09:00:00Z", recs[1].Date.String())

	got, ok := c.FindByHash("a")
	require.True(t, ok)
	assert.Equal(t, "a.jpg", got.OriginalName)
	_, ok = c.FindByHash("zzz")
	assert.False(t, ok)
}

func TestSave_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photos.yml")
	require.NoError(t, catalog.New().Save(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestSave_FailureKeepsState(t *testing.T) {
	c := catalog.New()
	require.NoError(t, c.Append(catalog.Record{ContentHash: "a"}))

	bad := filepath.Join(t.TempDir(), "missing-dir", "photos.yml")
	err := c.Save(bad)
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryIO))
	assert.Equal(t, 1, c.Len())

	good := filepath.Join(t.TempDir(), "photos.yml")
	require.NoError(t, c.Save(good))
	reloaded, err := catalog.Load(good)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Len())

	entries, err := os.ReadDir(filepath.Dir(good))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2021-07-04 15:30:00.000000000 -07:00", time.Date(2021, 7, 4, 22, 30, 0, 0, time.UTC)},
		{"2021-07-04 15:30:00.000000000 Z", time.Date(2021, 7, 4, 15, 30, 0, 0, time.UTC)},
		{"2021-07-04 15:30:00.5Z", time.Date(2021, 7, 4, 15, 30, 0, 500000000, time.UTC)},
		{"2021-07-04 15:30:00Z", time.Date(2021, 7, 4, 15, 30, 0, 0, time.UTC)},
		{"2021-07-04T15:30:00Z", time.Date(2021, 7, 4, 15, 30, 0, 0, time.UTC)},
		{"2021-07-04 15:30:00", time.Date(2021, 7, 4, 15, 30, 0, 0, time.UTC)},
		{"2021-07-04", time.Date(2021, 7, 4, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		ts, err := catalog.ParseTimestamp(tc.in)
		require.NoError(t, err, tc.in)
		assert.True(t, ts.Time().Equal(tc.want), "%s parsed as %v", tc.in, ts.Time())
		assert.Equal(t, tc.in, ts.String())
	}
	_, err := catalog.ParseTimestamp("last tuesday")
	assert.Error(t, err)
}
