package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubObjectStorage_UploadAndGet(t *testing.T) {
	s := NewStubObjectStorage()
	data := []byte("a,b")

	require.NoError(t, s.Upload(context.Background(), "exports/a.csv", data, "text/csv"))
	data[0] = 'z'

	obj, ok := s.Get("exports/a.csv")
	require.True(t, ok)
	assert.Equal(t, "a,b", string(obj.Data), "stored data must be a copy")
	assert.Equal(t, "text/csv", obj.ContentType)
	assert.Equal(t, 1, s.Len())

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestStubObjectStorage_EmptyKey(t *testing.T) {
	s := NewStubObjectStorage()
	assert.Error(t, s.Upload(context.Background(), "", nil, "text/csv"))
	_, _, err := s.GenerateDownloadURL(context.Background(), "")
	assert.Error(t, err)
}

func TestStubObjectStorage_GenerateDownloadURL(t *testing.T) {
	s := NewStubObjectStorage()
	link, expiresAt, err := s.GenerateDownloadURL(context.Background(), "exports/a b.csv")
	require.NoError(t, err)
	assert.Contains(t, link, "https://storage.example.com/download/exports%2Fa%20b.csv")
	assert.False(t, expiresAt.IsZero())
}
