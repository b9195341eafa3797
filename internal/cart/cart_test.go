package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddMergesQuantities(t *testing.T) {
	c := New()
	c.Add(7, 2)
	c.Add(8, 1)
	c.Add(7, 3)

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 5, c.Quantity(7))
	assert.Equal(t, 1, c.Quantity(8))
}

func TestSetZeroRemovesLine(t *testing.T) {
	c := New()
	c.Add(7, 2)
	c.Add(8, 1)

	assert.True(t, c.Set(7, 0))
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 0, c.Quantity(7))

	assert.False(t, c.Set(99, 3), "setting an absent product should report false")
}

func TestItemsPreserveInsertionOrder(t *testing.T) {
	c := New()
	c.Add(3, 1)
	c.Add(1, 1)
	c.Add(2, 1)

	items := c.Items()
	require.Len(t, items, 3)
	assert.Equal(t, int64(3), items[0].ProductID)
	assert.Equal(t, int64(1), items[1].ProductID)
	assert.Equal(t, int64(2), items[2].ProductID)
}

func TestMergeSumsQuantities(t *testing.T) {
	session := New()
	session.Add(7, 1)

	saved := New()
	saved.Add(7, 2)
	saved.Add(8, 1)

	session.Merge(saved)
	assert.Equal(t, 3, session.Quantity(7))
	assert.Equal(t, 1, session.Quantity(8))
}

func TestMarshalRoundTrip(t *testing.T) {
	c := New()
	c.Add(7, 2)
	c.Add(8, 1)

	data, err := c.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1,"items":[{"product_id":7,"quantity":2},{"product_id":8,"quantity":1}]}`, data)

	parsed, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, c.Items(), parsed.Items())
}

func TestUnmarshalEmptyPayload(t *testing.T) {
	c, err := Unmarshal("")
	require.NoError(t, err)
	assert.True(t, c.Empty())
}

func TestUnmarshalRejectsUnknownVersion(t *testing.T) {
	_, err := Unmarshal(`{"v":2,"items":[]}`)
	assert.Error(t, err)
}

func TestUnmarshalDropsNonPositiveQuantities(t *testing.T) {
	c, err := Unmarshal(`{"v":1,"items":[{"product_id":7,"quantity":0},{"product_id":8,"quantity":-2},{"product_id":9,"quantity":1}]}`)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 1, c.Quantity(9))
}
