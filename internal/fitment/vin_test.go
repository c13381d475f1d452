package fitment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeVIN(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "1hgcm82633a004352", want: "1HGCM82633A004352"},
		{in: " 1HG-CM826 33A004352 ", want: "1HGCM82633A004352"},
		{in: "NZE161-3012345", want: "NZE1613012345"},
		{in: "ABC123456", wantErr: true},
		{in: "1HGCM82633A0043521", wantErr: true},
		{in: "1HGCM8263*A004352", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeVIN(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidVIN)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
