package bitrix

import (
	"testing"

	"backend/internal/model"

	"github.com/stretchr/testify/require"
)

func TestStageForStatus(t *testing.T) {
	cases := []struct {
		status model.ApplicationStatus
		stage  string
		mapped bool
	}{
		{model.ApplicationStatusNew, "NEW", true},
		{model.ApplicationStatusAssignedToOTK, "PREPARATION", true},
		{model.ApplicationStatusInProgress, "1", true},
		{model.ApplicationStatusAccepted, "SUCCESS", true},
		{model.ApplicationStatusRejected, "FAILED", true},
		{model.ApplicationStatusDefect, "2", true},
		// Intermediate resolution states have no CRM stage.
		{model.ApplicationStatusInResolution, "", false},
		{model.ApplicationStatusKRPending, "", false},
		{model.ApplicationStatusMixed, "", false},
	}

	for _, tc := range cases {
		stage, ok := StageForStatus(tc.status)
		require.Equal(t, tc.mapped, ok, "status %s", tc.status)
		require.Equal(t, tc.stage, stage, "status %s", tc.status)
	}
}

func TestNewClientRejectsBadFieldMap(t *testing.T) {
	_, err := NewClient(Config{WebhookURL: "https://x.bitrix24.ru/rest/1/abc", FieldMapJSON: "{not json"})
	require.Error(t, err)
}

func TestClientDisabledWithoutWebhook(t *testing.T) {
	c, err := NewClient(Config{})
	require.NoError(t, err)
	require.False(t, c.Enabled())
}

func TestMapFieldsDropsUnmappedNames(t *testing.T) {
	c, err := NewClient(Config{
		WebhookURL:   "https://x.bitrix24.ru/rest/1/abc",
		FieldMapJSON: `{"application_number":"ufCrm5Number","dedupe_key":"ufCrm5TmaId"}`,
	})
	require.NoError(t, err)

	remote := c.MapFields(map[string]interface{}{
		"application_number": "APP-20260831-00001",
		"internal_note":      "never leaves the building",
	})
	require.Equal(t, map[string]interface{}{"ufCrm5Number": "APP-20260831-00001"}, remote)
	require.Equal(t, "ufCrm5TmaId", c.dedupeField)
}
