package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("Full Catalog", func(t *testing.T) {
		path := writeCatalog(t, `
products:
  - id: P1001
    name: Wireless Mouse
    category: electronics
    base_price: 15.99
    current_price: 17.99
    cost_price: 10.00
    stock_level: 120
  - id: P2001
    name: Retired Widget
    base_price: 9.99
    cost_price: 5.00
    active: false
`)
		products, err := Load(path)
		require.NoError(t, err)
		require.Len(t, products, 2)

		assert.Equal(t, "P1001", products[0].ID)
		assert.Equal(t, "electronics", products[0].Category)
		assert.InDelta(t, 17.99, products[0].CurrentPrice, 1e-9)
		assert.True(t, products[0].IsActive)

		// omitted fields fall back
		assert.Equal(t, "default", products[1].Category)
		assert.InDelta(t, 9.99, products[1].CurrentPrice, 1e-9)
		assert.False(t, products[1].IsActive)
	})

	t.Run("Missing File Is Empty Catalog", func(t *testing.T) {
		products, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Nil(t, products)
	})

	t.Run("Duplicate IDs Rejected", func(t *testing.T) {
		path := writeCatalog(t, `
products:
  - id: P1001
    name: One
    base_price: 1.00
    cost_price: 0.50
  - id: P1001
    name: Two
    base_price: 2.00
    cost_price: 1.00
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicates")
	})

	t.Run("Invalid Entries Rejected", func(t *testing.T) {
		cases := map[string]string{
			"missing id": `
products:
  - name: No ID
    base_price: 1.00
    cost_price: 0.50
`,
			"missing name": `
products:
  - id: P1
    base_price: 1.00
    cost_price: 0.50
`,
			"zero base price": `
products:
  - id: P1
    name: Freebie
    base_price: 0
    cost_price: 0.50
`,
			"negative stock": `
products:
  - id: P1
    name: Ghost Stock
    base_price: 1.00
    cost_price: 0.50
    stock_level: -5
`,
		}
		for name, content := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := Load(writeCatalog(t, content))
				assert.Error(t, err)
			})
		}
	})

	t.Run("Malformed YAML", func(t *testing.T) {
		_, err := Load(writeCatalog(t, "products: [whoops"))
		assert.Error(t, err)
	})
}
