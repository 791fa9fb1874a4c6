package proto_test

import (
	"encoding/json"
	"testing"

	"github.com/faceproof/faceproof/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimTypeJSON(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		b, err := json.Marshal(proto.ClaimType_Enrol)
		require.NoError(t, err)
		assert.Equal(t, `"enrol"`, string(b))

		var ct proto.ClaimType
		require.NoError(t, json.Unmarshal([]byte(`"verify"`), &ct))
		assert.Equal(t, proto.ClaimType_Verify, ct)
	})

	t.Run("unknown value", func(t *testing.T) {
		var ct proto.ClaimType
		require.Error(t, json.Unmarshal([]byte(`"register"`), &ct))
	})
}

func TestAssuranceTypeJSON(t *testing.T) {
	b, err := json.Marshal(proto.AssuranceType_Liveness)
	require.NoError(t, err)
	assert.Equal(t, `"liveness"`, string(b))

	var at proto.AssuranceType
	require.NoError(t, json.Unmarshal([]byte(`"genuine_presence"`), &at))
	assert.Equal(t, proto.AssuranceType_GenuinePresence, at)
}

func TestTokenRequestDefaults(t *testing.T) {
	// An absent assuranceType leaves the zero value, which is genuine
	// presence.
	var req proto.TokenRequest
	require.NoError(t, json.Unmarshal([]byte(`{"userId":"u1","claimType":"enrol"}`), &req))
	assert.Equal(t, proto.AssuranceType_GenuinePresence, req.AssuranceType)
	require.NoError(t, req.Validate())
}

func TestTokenRequestValidate(t *testing.T) {
	valid := proto.TokenRequest{UserID: "u1", ClaimType: proto.ClaimType_Verify}
	require.NoError(t, valid.Validate())

	missingUser := valid
	missingUser.UserID = ""
	require.Error(t, missingUser.Validate())

	badClaim := valid
	badClaim.ClaimType = proto.ClaimType(42)
	require.Error(t, badClaim.Validate())

	badAssurance := valid
	badAssurance.AssuranceType = proto.AssuranceType(42)
	require.Error(t, badAssurance.Validate())
}

func TestValidateRequestValidate(t *testing.T) {
	valid := proto.ValidateRequest{UserID: "u1", Token: "tok-1", ClaimType: proto.ClaimType_Enrol}
	require.NoError(t, valid.Validate())

	missingToken := valid
	missingToken.Token = ""
	require.Error(t, missingToken.Validate())
}

func TestTokenGrantValidate(t *testing.T) {
	grant := proto.TokenGrant{Token: "tok-1", Region: "eu-1"}
	require.NoError(t, grant.Validate())

	require.Error(t, (&proto.TokenGrant{Region: "eu-1"}).Validate())
	require.Error(t, (&proto.TokenGrant{Token: "tok-1"}).Validate())
}
