package remote

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractSections(t *testing.T) {
	data := json.RawMessage(`{"schedule":{"date":"2026-09-01"},"client":{"name":"John Doe"},"inventory":[]}`)
	assert.Equal(t, []string{"client", "inventory", "schedule"}, ExtractSections(data))
}

func TestExtractSectionsNonObject(t *testing.T) {
	assert.Nil(t, ExtractSections(json.RawMessage(`[1,2,3]`)))
	assert.Nil(t, ExtractSections(json.RawMessage(`{}`)))
	assert.Nil(t, ExtractSections(json.RawMessage(`not json`)))
}
