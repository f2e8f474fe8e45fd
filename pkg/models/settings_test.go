package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSettings_Int(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		want     int64
		wantOK   bool
	}{
		{name: "json float", settings: Settings{"campaign_id": float64(12)}, want: 12, wantOK: true},
		{name: "int", settings: Settings{"campaign_id": 7}, want: 7, wantOK: true},
		{name: "int64", settings: Settings{"campaign_id": int64(9)}, want: 9, wantOK: true},
		{name: "json number", settings: Settings{"campaign_id": json.Number("33")}, want: 33, wantOK: true},
		{name: "numeric string", settings: Settings{"campaign_id": " 5 "}, want: 5, wantOK: true},
		{name: "fractional float", settings: Settings{"campaign_id": 1.5}, wantOK: false},
		{name: "word", settings: Settings{"campaign_id": "five"}, wantOK: false},
		{name: "missing", settings: Settings{}, wantOK: false},
		{name: "nil value", settings: Settings{"campaign_id": nil}, wantOK: false},
		{name: "nil settings", settings: nil, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.settings.Int("campaign_id")

			assert.Equal(t, tt.wantOK, ok)

			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestAutomation_MatchesTrigger(t *testing.T) {
	automation := &Automation{
		ID:              1,
		Status:          AutomationStatusActive,
		TriggerType:     TriggerContactAddedToList,
		TriggerSettings: Settings{"list_id": "4"},
	}

	assert.True(t, automation.MatchesTrigger(TriggerContactAddedToList, 4))
	assert.False(t, automation.MatchesTrigger(TriggerContactAddedToList, 5))
	assert.False(t, automation.MatchesTrigger(TriggerType("contact_removed"), 4))

	automation.TriggerSettings = Settings{}
	assert.False(t, automation.MatchesTrigger(TriggerContactAddedToList, 4))
}

func TestStepNode_CampaignID(t *testing.T) {
	step := &StepNode{Settings: Settings{"campaign_id": float64(3)}}

	id, ok := step.CampaignID()
	assert.True(t, ok)
	assert.Equal(t, int64(3), id)

	step.Settings["campaign_id"] = float64(0)
	_, ok = step.CampaignID()
	assert.False(t, ok)
}

func TestDelayUnit(t *testing.T) {
	tests := map[string]time.Duration{
		"minute":  time.Minute,
		"minutes": time.Minute,
		" HOURS ": time.Hour,
		"Day":     24 * time.Hour,
	}

	for raw, want := range tests {
		_, size, ok := DelayUnit(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, size, raw)
	}

	for _, raw := range []string{"", "week", "fortnight", "hourss"} {
		_, _, ok := DelayUnit(raw)
		assert.False(t, ok, raw)
	}
}
