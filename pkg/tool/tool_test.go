package tool

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestIsCanonicalUUID(t *testing.T) {
	require.True(t, IsCanonicalUUID(GenerateUUIDV7()))
	require.True(t, IsCanonicalUUID("123e4567-e89b-12d3-a456-426614174000"))
	require.False(t, IsCanonicalUUID("123e4567e89b12d3a456426614174000"))
	require.False(t, IsCanonicalUUID("{123e4567-e89b-12d3-a456-426614174000}"))
	require.False(t, IsCanonicalUUID("urn:uuid:123e4567-e89b-12d3-a456-426614174000"))
	require.False(t, IsCanonicalUUID("not-a-uuid-at-all-but-36-characters!"))
	require.False(t, IsCanonicalUUID(""))
}

func TestMillisToTime(t *testing.T) {
	require.Nil(t, MillisToTime(nil))
	require.Nil(t, MillisToTime(lo.ToPtr(int64(0))))
	got := MillisToTime(lo.ToPtr(int64(1700000000000)))
	require.NotNil(t, got)
	require.Equal(t, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC), *got)
}

func TestNilIfEmpty(t *testing.T) {
	require.Nil(t, NilIfEmpty(""))
	require.Equal(t, "x", *NilIfEmpty("x"))
}
