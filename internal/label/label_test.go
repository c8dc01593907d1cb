package label

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLabel(t *testing.T) {
	tests := []struct {
		in      string
		want    Label
		wantErr bool
	}{
		{"risk", Risk, false},
		{"  Protective ", Protective, false},
		{"CARRIER", Carrier, false},
		{"bogus", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLabel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidLabel))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseConfidence(t *testing.T) {
	c, err := ParseConfidence("High")
	require.NoError(t, err)
	assert.Equal(t, High, c)

	c, err = ParseConfidence("")
	require.NoError(t, err)
	assert.Empty(t, c)

	_, err = ParseConfidence("certain")
	assert.ErrorIs(t, err, ErrInvalidConfidence)
}

func TestGenotypeLabelValidate(t *testing.T) {
	freq := 12.5
	bad := 140.0

	assert.NoError(t, GenotypeLabel{RSID: "rs1", Label: Risk, Confidence: High, Frequency: &freq}.Validate())
	assert.NoError(t, GenotypeLabel{RSID: "rs1", Label: Normal}.Validate())
	assert.Error(t, GenotypeLabel{Label: Normal}.Validate())
	assert.ErrorIs(t, GenotypeLabel{RSID: "rs1", Label: "weird"}.Validate(), ErrInvalidLabel)
	assert.ErrorIs(t, GenotypeLabel{RSID: "rs1", Label: Rare, Confidence: "sure"}.Validate(), ErrInvalidConfidence)
	assert.Error(t, GenotypeLabel{RSID: "rs1", Label: Rare, Frequency: &bad}.Validate())
}
