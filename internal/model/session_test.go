package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession() *Session {
	return NewSession("run-1", "test-domain", "http://api", nil, "/tmp/out", 2)
}

func TestSessionRequiresDomainBeforeUse(t *testing.T) {
	s := newTestSession()

	_, err := s.RequireDomain()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingInput))

	s.DomainID = "abc123"
	id, err := s.RequireDomain()
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)
}

func TestSessionGridAndHalfExtents(t *testing.T) {
	s := newTestSession()

	_, _, err := s.HalfExtents()
	require.ErrorIs(t, err, ErrMissingInput)

	s.SetGrid(150, 100)
	hw, hh, err := s.HalfExtents()
	require.NoError(t, err)
	// 2 m cells: half extents equal the cell counts
	assert.Equal(t, 150.0, hw)
	assert.Equal(t, 100.0, hh)
}

func TestSessionSignedURL(t *testing.T) {
	s := newTestSession()

	_, err := s.SignedURL(StageExportTreeInventory)
	require.ErrorIs(t, err, ErrMissingInput)

	s.RecordCompletion(StageExportTreeInventory, CompletedJob{})
	_, err = s.SignedURL(StageExportTreeInventory)
	require.ErrorIs(t, err, ErrMissingInput)

	s.RecordCompletion(StageExportTreeInventory, CompletedJob{SignedURL: "https://files/treelist.csv"})
	u, err := s.SignedURL(StageExportTreeInventory)
	require.NoError(t, err)
	assert.Equal(t, "https://files/treelist.csv", u)
}

func TestSessionArtifactsCopy(t *testing.T) {
	s := newTestSession()
	s.SetArtifact(ArtifactImagery, "/tmp/out/naip.png")

	all := s.Artifacts()
	all[ArtifactImagery] = "changed"

	p, err := s.Artifact(ArtifactImagery)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out/naip.png", p)

	_, err = s.Artifact(ArtifactElevationGrid)
	require.ErrorIs(t, err, ErrMissingInput)
}

func TestSessionBounds(t *testing.T) {
	s := newTestSession()
	_, err := s.RequireBounds()
	require.ErrorIs(t, err, ErrMissingInput)

	s.CRS = "5070"
	s.Bounds = &Bounds{MinX: 1, MinY: 2, MaxX: 3, MaxY: 4}
	b, err := s.RequireBounds()
	require.NoError(t, err)
	assert.Equal(t, 3.0, b.MaxX)
}
