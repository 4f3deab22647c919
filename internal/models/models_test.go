package models_test

import (
	"encoding/json"
	"github.com/myrjola/sagaboard/internal/models"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "rfc3339",
			input: `"2024-05-01T10:11:12.5Z"`,
			want:  time.Date(2024, 5, 1, 10, 11, 12, 500_000_000, time.UTC),
		},
		{
			name:  "rfc3339 with offset is normalized to utc",
			input: `"2024-05-01T12:11:12+02:00"`,
			want:  time.Date(2024, 5, 1, 10, 11, 12, 0, time.UTC),
		},
		{
			name:  "legacy naive with microseconds",
			input: `"2024-05-01T10:11:12.123456"`,
			want:  time.Date(2024, 5, 1, 10, 11, 12, 123_456_000, time.UTC),
		},
		{
			name:  "legacy naive",
			input: `"2024-05-01T10:11:12"`,
			want:  time.Date(2024, 5, 1, 10, 11, 12, 0, time.UTC),
		},
		{
			name:  "null",
			input: `null`,
			want:  time.Time{},
		},
		{
			name:    "garbage",
			input:   `"yesterday"`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts models.Timestamp
			err := json.Unmarshal([]byte(tt.input), &ts)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.True(t, tt.want.Equal(ts.Time), "got %s", ts.Time)
		})
	}
}

func TestTimestamp_RoundTrip(t *testing.T) {
	now := models.Now()
	data, err := json.Marshal(now)
	require.NoError(t, err)

	var decoded models.Timestamp
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.True(t, now.Equal(decoded.Time))
}

func TestValidate(t *testing.T) {
	require.NoError(t, models.Validate(models.NewCharacter{
		Name:        "Arin",
		Role:        "Rogue",
		Description: "stealthy half-elf",
	}))
	require.ErrorIs(t, models.Validate(models.NewCharacter{Name: "Arin"}), models.ErrInvalidInput)
	require.ErrorIs(t, models.Validate(models.NewCampaign{}), models.ErrInvalidInput)
	require.ErrorIs(t, models.Validate(models.NewScene{Title: "Ambush", Prompt: "trap"}), models.ErrInvalidInput)
}

func TestCampaign_ScenePosition(t *testing.T) {
	c := models.Campaign{SceneIDs: []string{"a", "b"}, CharacterIDs: []string{"x"}}
	require.Equal(t, 1, c.ScenePosition("b"))
	require.Equal(t, -1, c.ScenePosition("z"))
	require.True(t, c.HasScene("a"))
	require.True(t, c.HasCharacter("x"))
	require.False(t, c.HasCharacter("y"))
}
