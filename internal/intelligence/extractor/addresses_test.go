package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentenancy/caseintel/pkg/types/docs"
)

func TestExtractAddresses_FullForm(t *testing.T) {
	ex := newTestExtractor(t)

	addrs := ofKind(ex.ExtractEntities("Premises: 123 Main Street, Minneapolis, MN 55401"), docs.KindAddress)
	require.Len(t, addrs, 1)
	assert.Equal(t, "123 Main Street, Minneapolis, MN 55401", addrs[0].Value)
	assert.Equal(t, "Address", addrs[0].ContextLabel)
}

func TestExtractAddresses_WithUnit(t *testing.T) {
	ex := newTestExtractor(t)

	addrs := ofKind(ex.ExtractEntities("mailed to 456 Oak Avenue Apt 2B, St. Paul, MN 55104"), docs.KindAddress)
	require.Len(t, addrs, 1)
	assert.Equal(t, "456 Oak Avenue, Apt 2B, St. Paul, MN 55104", addrs[0].Value)
}

func TestExtractAddresses_DefaultStateAssumed(t *testing.T) {
	ex := newTestExtractor(t)

	addrs := ofKind(ex.ExtractEntities("the unit at 789 Elm Street, Minneapolis 55412"), docs.KindAddress)
	require.Len(t, addrs, 1)
	assert.Equal(t, "789 Elm Street, Minneapolis, MN 55412", addrs[0].Value)
	assert.Equal(t, "Address (state assumed)", addrs[0].ContextLabel)
}

func TestExtractAddresses_UnknownCityEndsAddress(t *testing.T) {
	ex := newTestExtractor(t)

	addrs := ofKind(ex.ExtractEntities("located at 321 Birch Road, Springfield, MN 55999"), docs.KindAddress)
	require.Len(t, addrs, 1)
	assert.Equal(t, "321 Birch Road, MN", addrs[0].Value)
	assert.Equal(t, "Address (state assumed)", addrs[0].ContextLabel)
}

func TestExtractAddresses_MinnesotaSpelledOut(t *testing.T) {
	ex := newTestExtractor(t)

	addrs := ofKind(ex.ExtractEntities("at 987 Cedar Lane, Bloomington, Minnesota 55420"), docs.KindAddress)
	require.Len(t, addrs, 1)
	assert.Equal(t, "987 Cedar Lane, Bloomington, MN 55420", addrs[0].Value)
	assert.Equal(t, "Address", addrs[0].ContextLabel)
}

func TestExtractAddresses_CompassDirection(t *testing.T) {
	ex := newTestExtractor(t)

	addrs := ofKind(ex.ExtractEntities("at 1400 5th Avenue S, Minneapolis, MN 55403"), docs.KindAddress)
	require.Len(t, addrs, 1)
	assert.Equal(t, "1400 5th Avenue S, Minneapolis, MN 55403", addrs[0].Value)
}

func TestExtractAddresses_DayCountIsNotAStreet(t *testing.T) {
	ex := newTestExtractor(t)

	entities := ex.ExtractEntities("you have 14 days to vacate and 30 days to appeal")
	assert.Empty(t, ofKind(entities, docs.KindAddress))
}
