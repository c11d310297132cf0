package commerce

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFavorite(productID string) FavoriteItem {
	return FavoriteItem{
		ProductID: productID,
		Title:     "Product " + productID,
		Price:     decimal.NewFromInt(49),
		Rating:    4.5,
	}
}

func TestFavorites_Add_SetSemantics(t *testing.T) {
	favorites := NewFavorites()

	added, err := favorites.Add(testFavorite("P1"))
	require.NoError(t, err)
	assert.True(t, added)

	// Re-adding the same product does not change membership
	added, err = favorites.Add(testFavorite("P1"))
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, favorites.Len())
}

func TestFavorites_Add_RefreshesSummary(t *testing.T) {
	favorites := NewFavorites()
	_, err := favorites.Add(testFavorite("P1"))
	require.NoError(t, err)

	updated := testFavorite("P1")
	updated.Price = decimal.NewFromInt(39)
	_, err = favorites.Add(updated)
	require.NoError(t, err)

	item, ok := favorites.Item("P1")
	require.True(t, ok)
	assert.True(t, item.Price.Equal(decimal.NewFromInt(39)))
}

func TestFavorites_Add_Invalid(t *testing.T) {
	favorites := NewFavorites()
	_, err := favorites.Add(FavoriteItem{})
	assert.ErrorIs(t, err, ErrInvalidProductID)
}

func TestFavorites_Remove(t *testing.T) {
	favorites := NewFavorites()
	_, err := favorites.Add(testFavorite("P1"))
	require.NoError(t, err)

	assert.True(t, favorites.Remove("P1"))
	assert.False(t, favorites.Contains("P1"))

	// Removing a product that was never favorited is a no-op
	assert.False(t, favorites.Remove("P9"))
	assert.Equal(t, 0, favorites.Len())
}

func TestFavorites_ProductIDs_Order(t *testing.T) {
	favorites := NewFavorites()
	for _, id := range []string{"P2", "P1", "P3"} {
		_, err := favorites.Add(testFavorite(id))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"P2", "P1", "P3"}, favorites.ProductIDs())
}

func TestEncodeDecodeFavorites(t *testing.T) {
	favorites := NewFavorites()
	_, err := favorites.Add(testFavorite("P1"))
	require.NoError(t, err)

	raw, err := EncodeFavorites(favorites.Snapshot())
	require.NoError(t, err)

	restored := RestoreFavorites(DecodeFavorites(raw))
	assert.True(t, restored.Contains("P1"))
	assert.Equal(t, 1, restored.Len())
}

func TestDecodeFavorites_Corrupt(t *testing.T) {
	assert.Nil(t, DecodeFavorites("oops"))
}
