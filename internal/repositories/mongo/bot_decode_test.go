package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/nexusbot/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

func TestBotDecodesEmbeddedConfigDocuments(t *testing.T) {
	raw, err := bson.Marshal(bson.M{
		"id":   "b1",
		"name": "Ana",
		"lead_config": bson.M{
			"enabled":       true,
			"emailRequired": true,
		},
		"scheduling_config": bson.M{
			"enabled":         true,
			"durationMinutes": 45.0, // shell inserts numbers as doubles
			"timezone":        "UTC",
			"availability": bson.A{
				bson.M{"day": "monday", "enabled": true, "start": "09:00", "end": "17:00"},
			},
		},
	})
	require.NoError(t, err)

	var bot models.Bot
	require.NoError(t, bson.Unmarshal(raw, &bot))

	p := bot.Normalize(models.ProfileDefaults{})
	assert.True(t, p.Lead.Enabled)
	assert.Equal(t, []string{models.LeadFieldEmail}, p.Lead.Fields())
	assert.True(t, p.Scheduling.Enabled)
	assert.Equal(t, 45, p.Scheduling.DurationMinutes)
	monday, ok := p.Scheduling.Day("monday")
	require.True(t, ok)
	assert.True(t, monday.Enabled)
}

func TestBotDecodesStringConfigAndMissingConfig(t *testing.T) {
	raw, err := bson.Marshal(bson.M{
		"id":          "b1",
		"name":        "Ana",
		"lead_config": `{"enabled": true, "phoneRequired": true}`,
	})
	require.NoError(t, err)

	var bot models.Bot
	require.NoError(t, bson.Unmarshal(raw, &bot))

	p := bot.Normalize(models.ProfileDefaults{})
	assert.Equal(t, []string{models.LeadFieldPhone}, p.Lead.Fields())
	assert.False(t, p.Scheduling.Enabled)
}

func TestBotEncodesConfigAsEmbeddedDocument(t *testing.T) {
	raw, err := bson.Marshal(models.Bot{
		ID:         "b1",
		Name:       "Ana",
		LeadConfig: models.ConfigJSON(`{"enabled": true}`),
	})
	require.NoError(t, err)

	lead := bson.Raw(raw).Lookup("lead_config")
	assert.Equal(t, bson.TypeEmbeddedDocument, lead.Type)
	assert.Equal(t, true, lead.Document().Lookup("enabled").Boolean())

	_, err = bson.Raw(raw).LookupErr("scheduling_config")
	assert.Error(t, err, "empty config is omitted")
}
