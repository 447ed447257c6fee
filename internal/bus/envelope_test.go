package bus

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope_CorrelationIDHasPrefix(t *testing.T) {
	env := NewEnvelope("commerce-core", "rpc-", "reply.q", time.Now())
	assert.Equal(t, "application/json", env.ContentType)
	assert.Contains(t, env.CorrelationID, "rpc-")
	assert.Greater(t, len(env.CorrelationID), len("rpc-"))
}

func TestReply_PreservesCorrelationID(t *testing.T) {
	req := NewEnvelope("caller", "rpc-", "reply.q", time.Now())
	reply := req.Reply("callee", time.Now())
	assert.Equal(t, req.CorrelationID, reply.CorrelationID)
	assert.Empty(t, reply.ReplyTo)
}

func TestUpdateStoreProductsBody_UnmarshalsTuple(t *testing.T) {
	raw := []byte(`[
		[1, "x"],
		{"s_id": 51, "rm_all": false, "currency": "USD", "deleting": {"items": [1,2], "pkgs": [], "item_type": "item", "pkg_type": "pkg"}, "updating": [], "creating": []},
		{"ttl": 30}
	]`)
	var body UpdateStoreProductsBody
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, uint32(51), body.Kwargs.SID)
	assert.False(t, body.Kwargs.RmAll)
	assert.Equal(t, []uint64{1, 2}, body.Kwargs.Deleting.Items)
	assert.Equal(t, float64(30), body.Options["ttl"])
}

func TestUpdateStoreProductsBody_RejectsNonTuple(t *testing.T) {
	var body UpdateStoreProductsBody
	err := json.Unmarshal([]byte(`{"not": "a tuple"}`), &body)
	assert.Error(t, err)
}
