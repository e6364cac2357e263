package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coredb/stats"
	"coredb/storage"
)

type fakeFile struct{}

func (fakeFile) ReadPage(pid storage.PageID) (storage.Page, error) { return nil, nil }
func (fakeFile) WritePage(p storage.Page) error                    { return nil }

func TestAddAndResolveRoundTrip(t *testing.T) {
	c := New()
	c.Add("people", "id", fakeFile{}, 1)

	f, ok := c.Resolve(1)
	require.True(t, ok)
	assert.IsType(t, fakeFile{}, f)

	e, err := c.ByName("people")
	require.NoError(t, err)
	assert.Equal(t, 1, e.ID)
	assert.Equal(t, "id", e.PrimaryKey)
}

func TestAddReplacesByID(t *testing.T) {
	c := New()
	c.Add("people", "id", fakeFile{}, 1)
	c.Add("people", "name", fakeFile{}, 1)

	e, err := c.ByID(1)
	require.NoError(t, err)
	assert.Equal(t, "name", e.PrimaryKey)
	assert.Len(t, c.IDs(), 1)
}

func TestAddReplacesByName(t *testing.T) {
	c := New()
	c.Add("people", "id", fakeFile{}, 1)
	c.Add("people", "id", fakeFile{}, 2)

	_, err := c.ByID(1)
	assert.Error(t, err)

	e, err := c.ByName("people")
	require.NoError(t, err)
	assert.Equal(t, 2, e.ID)
}

func TestByIDUnknownReturnsError(t *testing.T) {
	c := New()
	_, err := c.ByID(42)
	assert.Error(t, err)
}

func TestStatsCacheInvalidatedOnReAdd(t *testing.T) {
	c := New()
	c.Add("people", "id", fakeFile{}, 1)
	c.RefreshStats("people", &stats.TableStats{})

	_, ok := c.CachedStats("people")
	require.True(t, ok)

	c.Add("people", "id", fakeFile{}, 1)
	_, ok = c.CachedStats("people")
	assert.False(t, ok)
}
