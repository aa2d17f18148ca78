package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset(t *testing.T) *Dataset {
	t.Helper()
	ds, err := NewDataset(
		[]string{"purpose", "age", "class"},
		[][]string{
			{"radio/tv", "30", "good"},
			{"education", "45", "bad"},
			{"new car", "22", "good"},
			{"radio/tv", "51", "bad"},
		})
	require.NoError(t, err)
	return ds
}

func TestNewDataset_RaggedRow(t *testing.T) {
	_, err := NewDataset([]string{"a", "b"}, [][]string{{"1", "2"}, {"3"}})
	assert.Error(t, err)
}

func TestDataset_Column(t *testing.T) {
	ds := sampleDataset(t)

	ages, err := ds.Column("age")
	require.NoError(t, err)
	assert.Equal(t, []string{"30", "45", "22", "51"}, ages)

	ages[0] = "99"
	assert.Equal(t, "30", ds.Rows[0][1])

	_, err = ds.Column("duration")
	assert.ErrorIs(t, err, ErrColumnNotFound)
}

func TestDataset_SelectDifferenceDrop(t *testing.T) {
	ds := sampleDataset(t)

	names := ds.Difference("class")
	assert.Equal(t, []string{"age", "purpose"}, names)

	X, err := ds.Select(names...)
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "purpose"}, X.Columns)
	assert.Equal(t, []string{"30", "radio/tv"}, X.Rows[0])

	_, err = ds.Select("missing")
	assert.ErrorIs(t, err, ErrColumnNotFound)

	dropped := ds.Drop("purpose")
	assert.Equal(t, []string{"age", "class"}, dropped.Columns)
	assert.Equal(t, 4, dropped.Len())
}

func TestDataset_WithColumn(t *testing.T) {
	ds := sampleDataset(t)

	require.NoError(t, ds.WithColumn("predictions", []string{"good", "good", "bad", "bad"}))
	assert.Equal(t, "predictions", ds.Columns[3])
	assert.Equal(t, "bad", ds.Rows[3][3])

	require.NoError(t, ds.WithColumn("predictions", []string{"bad", "bad", "bad", "bad"}))
	assert.Len(t, ds.Columns, 4)
	assert.Equal(t, "bad", ds.Rows[0][3])

	assert.Error(t, ds.WithColumn("short", []string{"x"}))
}

func TestDataset_Shuffle(t *testing.T) {
	ds := sampleDataset(t)

	a := ds.Shuffle(100)
	b := ds.Shuffle(100)
	assert.Equal(t, a.Rows, b.Rows)
	assert.ElementsMatch(t, ds.Rows, a.Rows)
	assert.Equal(t, "30", ds.Rows[0][1], "shuffle must not reorder the source")
}

func TestDataset_Clone(t *testing.T) {
	ds := sampleDataset(t)
	clone := ds.Clone()
	clone.Rows[0][0] = "business"
	clone.Columns[0] = "reason"

	assert.Equal(t, "radio/tv", ds.Rows[0][0])
	assert.Equal(t, "purpose", ds.Columns[0])
}

func TestSchema(t *testing.T) {
	s := NewSchema([]string{"Age", "purpose", "class"}, "class", []string{"age"})

	assert.Equal(t, []string{"Age"}, s.Names(KindNumeric))
	assert.Equal(t, []string{"purpose"}, s.Names(KindCategorical))
	assert.Equal(t, KindTarget, s.GetColumnByName(" CLASS ").Kind)
	assert.Nil(t, s.GetColumnByName("duration"))
}
