package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/propval/estimo/pkg/errors"
)

const sample = `Area,Rooms,Price,Floor
50,2,100000,1
75,3,,2
90, 4,180000,3
60,NaN,120000,0
120,5,250000,5
`

func TestLoadCSV(t *testing.T) {
	ds, err := LoadCSV(strings.NewReader(sample), "Price")
	require.NoError(t, err)

	assert.Equal(t, []string{"Area", "Rooms", "Floor"}, ds.Features)
	assert.Equal(t, "Price", ds.Target)
	assert.Equal(t, 3, ds.Rows())
	assert.Equal(t, 2, ds.Dropped)

	assert.Equal(t, []float64{100000, 180000, 250000}, mat.Col(nil, 0, ds.Y))
	assert.Equal(t, []float64{90, 4, 3}, mat.Row(nil, 1, ds.X))
	assert.Equal(t, 2, ds.FeatureIndex("Floor"))
	assert.Equal(t, -1, ds.FeatureIndex("Price"))
}

func TestLoadCSV_Errors(t *testing.T) {
	_, err := LoadCSV(strings.NewReader(sample), "Cost")
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))

	_, err = LoadCSV(strings.NewReader(""), "Price")
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	_, err = LoadCSV(strings.NewReader("Area,Price\n,1\n"), "Price")
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	_, err = LoadCSV(strings.NewReader("Area,Price\nbig,1\n"), "Price")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	_, err = LoadCSV(strings.NewReader("Price\n1\n"), "Price")
	assert.Error(t, err)
}

func TestShuffle(t *testing.T) {
	ds, err := LoadCSV(strings.NewReader(sample), "Price")
	require.NoError(t, err)

	a := ds.Shuffle(7)
	b := ds.Shuffle(7)
	assert.True(t, mat.Equal(a.X, b.X))
	assert.True(t, mat.Equal(a.Y, b.Y))

	// rows move together with their targets
	for i := 0; i < a.Rows(); i++ {
		area := a.X.At(i, 0)
		for j := 0; j < ds.Rows(); j++ {
			if ds.X.At(j, 0) == area {
				assert.Equal(t, ds.Y.At(j, 0), a.Y.At(i, 0))
			}
		}
	}
	assert.ElementsMatch(t, mat.Col(nil, 0, ds.Y), mat.Col(nil, 0, a.Y))
	assert.Equal(t, []float64{100000, 180000, 250000}, mat.Col(nil, 0, ds.Y), "receiver unchanged")
}
