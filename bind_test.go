package loom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type tagFilter struct {
	Tags []string `query:"tag"`
}

func TestBindValuesSlice(t *testing.T) {
	var v tagFilter
	err := bindValues(&v, map[string][]string{"tag": {"a", "b", "c"}}, "query")
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, v.Tags)
}

type nested struct {
	Inner struct {
		City string `query:"city"`
	}
}

func TestBindValuesRecursesUntaggedStructField(t *testing.T) {
	var v nested
	err := bindValues(&v, map[string][]string{"city": {"Lagos"}}, "query")
	assert.NoError(t, err)
	assert.Equal(t, "Lagos", v.Inner.City)
}

func TestBindValuesMissingKeyLeavesZeroValue(t *testing.T) {
	var v userQuery
	err := bindValues(&v, map[string][]string{}, "query")
	assert.NoError(t, err)
	assert.Equal(t, userQuery{}, v)
}

func TestBindValuesRejectsNonStruct(t *testing.T) {
	var v int
	err := bindValues(&v, map[string][]string{}, "query")
	assert.Error(t, err)
}

func TestBindSingleValuesWrapsIntoMultiMap(t *testing.T) {
	var v idParams
	err := bindSingleValues(&v, map[string]string{"id": "99"}, "path")
	assert.NoError(t, err)
	assert.Equal(t, "99", v.ID)
}

func TestSetWithProperTypeInvalidIntErrors(t *testing.T) {
	var v struct {
		N int `query:"n"`
	}
	err := bindValues(&v, map[string][]string{"n": {"not-a-number"}}, "query")
	assert.Error(t, err)
	k, _ := KindOf(err)
	assert.Equal(t, KindParseError, k)
}

func TestSetWithProperTypeBool(t *testing.T) {
	var v struct {
		Active bool `query:"active"`
	}
	err := bindValues(&v, map[string][]string{"active": {"true"}}, "query")
	assert.NoError(t, err)
	assert.True(t, v.Active)
}
