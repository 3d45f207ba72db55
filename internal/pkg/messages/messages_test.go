package messages

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobMessage(t *testing.T) {
	assert.Equal(t, "id1", NewJobMessage("id1").ID)
	assert.Equal(t, "", NewJobMessage("id1").Status)
}

func TestNewStatusMessage_JSON(t *testing.T) {
	b, err := json.Marshal(NewStatusMessage("id1", "complete"))
	require.Nil(t, err)
	var m JobMessage
	require.Nil(t, json.Unmarshal(b, &m))
	assert.Equal(t, "id1", m.ID)
	assert.Equal(t, "complete", m.Status)
}
