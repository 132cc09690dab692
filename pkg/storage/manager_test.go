package storage

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxarchive/pkg/models"
)

func dated(id, ts string) models.ItemRecord {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		panic(err)
	}
	return models.ItemRecord{ID: id, CreatedAt: &t}
}

func TestPathsFor(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root, DefaultLayout())
	require.NoError(t, err)

	img, txt := m.PathsFor(dated("abc123", "2024-03-01T10:00:00Z"))
	assert.Equal(t, filepath.Join(root, "2024-03-01", "abc123.jpg"), img)
	assert.Equal(t, filepath.Join(root, "2024-03-01", "abc123.txt"), txt)

	img, txt = m.PathsFor(models.ItemRecord{ID: "undated"})
	assert.Equal(t, filepath.Join(root, "undated.jpg"), img)
	assert.Equal(t, filepath.Join(root, "undated.txt"), txt)
}

func TestSaveArtifactsDated(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root, DefaultLayout())
	require.NoError(t, err)

	item := dated("abc123", "2024-03-01T10:00:00Z")
	require.NoError(t, m.SaveArtifacts(item, []byte{0xff, 0xd8, 0xff}, "a red fox"))

	img, err := os.ReadFile(filepath.Join(root, "2024-03-01", "abc123.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, img)

	txt, err := os.ReadFile(filepath.Join(root, "2024-03-01", "abc123.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a red fox", string(txt))
	assert.True(t, m.Exists(item))
	assert.Equal(t, 1, m.SavedCount())
}

func TestSaveArtifactsWithoutPrompt(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root, DefaultLayout())
	require.NoError(t, err)

	item := models.ItemRecord{ID: "noprompt"}
	require.NoError(t, m.SaveArtifacts(item, []byte("img"), ""))

	_, err = os.Stat(filepath.Join(root, "noprompt.jpg"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "noprompt.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestSaveArtifactsConcurrentSameDay(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root, Layout{ImageExt: ".png", TextExt: "md"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			item := dated(string(rune('a'+i)), "2024-05-05T00:00:01Z")
			assert.NoError(t, m.SaveArtifacts(item, []byte{byte(i)}, "p"))
		}(i)
	}
	wg.Wait()

	entries, err := os.ReadDir(filepath.Join(root, "2024-05-05"))
	require.NoError(t, err)
	assert.Len(t, entries, 40)
	assert.Equal(t, 20, m.SavedCount())
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "a_b_c", SafeName("a/b\\c"))
	assert.Equal(t, "_..", SafeName(".."))
	assert.Equal(t, "CAMaJDQ1", SafeName("CAMaJDQ1"))
}

func TestWriteFileAtomicReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.json")
	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0644))
	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNewManagerRejectsEmptyRoot(t *testing.T) {
	_, err := NewManager("", DefaultLayout())
	assert.Error(t, err)
}
