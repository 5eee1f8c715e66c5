package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/docsync/syncjob"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadTypeFile(t *testing.T) {
	files := map[string]string{
		"types.yaml": `
types:
  - name: order-to-invoice
    source_document_type: Order
    target_document_type: Invoice
    controller: fieldmap
    max_retries: 3
    backoff: exponential
    delete_enabled: false
  - name: customer-to-contact
    source_document_type: Customer
    controller: fieldmap
`,
		"types.toml": `
[[types]]
name = "order-to-invoice"
source_document_type = "Order"
target_document_type = "Invoice"
controller = "fieldmap"
max_retries = 3
backoff = "exponential"
delete_enabled = false

[[types]]
name = "customer-to-contact"
source_document_type = "Customer"
controller = "fieldmap"
`,
		"types.json": `{"types": [
  {"name": "order-to-invoice", "source_document_type": "Order", "target_document_type": "Invoice",
   "controller": "fieldmap", "max_retries": 3, "backoff": "exponential", "delete_enabled": false},
  {"name": "customer-to-contact", "source_document_type": "Customer", "controller": "fieldmap"}
]}`,
	}

	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			types, err := loadTypeFile(writeFile(t, name, content))
			require.NoError(t, err)
			require.Len(t, types, 2)

			first := types[0]
			assert.Equal(t, "order-to-invoice", first.Name)
			assert.Equal(t, "Invoice", first.TargetType)
			assert.Equal(t, 3, first.MaxRetries)
			assert.Equal(t, syncjob.BackoffExponential, first.Backoff)
			assert.False(t, first.DeleteEnabled)
			assert.True(t, first.InsertEnabled, "omitted flags keep their defaults")

			second := types[1]
			assert.Equal(t, syncjob.DefaultQueue, second.Queue)
			assert.True(t, second.DeleteEnabled)
			assert.Equal(t, syncjob.DefaultTimeout, second.Timeout())
		})
	}
}

func TestLoadTypeFile_Errors(t *testing.T) {
	_, err := loadTypeFile(writeFile(t, "types.ini", "x"))
	assert.Error(t, err)

	_, err = loadTypeFile(writeFile(t, "types.json", `{"types": [{"nme": "typo"}]}`))
	assert.Error(t, err)

	_, err = loadTypeFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
