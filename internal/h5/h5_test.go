package h5

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMem(t *testing.T) {
	m := NewMem()
	require.NoError(t, m.WriteDataset("/checkpoints/00001/Field/vel", []int{2, 3}, []float64{1, 2, 3, 4, 5, 6}))
	require.NoError(t, m.WriteDataset("checkpoints/00002/parameters/time", []int{1}, []float64{4.5}))
	m.SetAttr("checkpoints/00001/Field/vel", "degree", []float64{1, 2})

	ds, err := m.Dataset("checkpoints/00001/Field/vel")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, ds.Dims)
	row, err := ds.Row(1)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 5, 6}, row)
	_, err = ds.Row(2)
	assert.Error(t, err)

	ds.Data[0] = 100
	again, _ := m.Dataset("/checkpoints/00001/Field/vel")
	assert.Equal(t, 1.0, again.Data[0])

	deg, err := m.Attr("/checkpoints/00001/Field/vel", "degree")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, deg)
	_, err = m.Attr("checkpoints/00001/Field/vel", "other")
	assert.ErrorIs(t, err, ErrNotFound)

	kids, err := m.Children("checkpoints")
	require.NoError(t, err)
	assert.Equal(t, []string{"00001", "00002"}, kids)
	kids, err = m.Children("/")
	require.NoError(t, err)
	assert.Equal(t, []string{"checkpoints"}, kids)
	_, err = m.Children("nothing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.Dataset("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, m.WriteDataset("bad", []int{4}, []float64{1}))
	assert.NoError(t, m.Close())
}

func TestSqueeze(t *testing.T) {
	ds := &Dataset{Dims: []int{1, 4, 1}, Data: []float64{1, 2, 3, 4}}
	assert.Equal(t, []int{4}, ds.Squeeze().Dims)

	scalar := &Dataset{Dims: []int{1, 1}, Data: []float64{7}}
	assert.Equal(t, []int{1}, scalar.Squeeze().Dims)
}
