package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type submitRequest struct {
	Text   string `validate:"required,max=10"`
	Action string `validate:"oneof=expand sources"`
}

func TestValidateStruct(t *testing.T) {
	assert.NoError(t, ValidateStruct(submitRequest{Text: "hi", Action: "expand"}))

	err := ValidateStruct(submitRequest{Action: "delete"})
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "text is required")
		assert.Contains(t, err.Error(), "action must be one of: expand sources")
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
	}{
		{raw: "https://www.ipcc.ch/report/ar6/syr/", wantErr: false},
		{raw: "http://example.org", wantErr: false},
		{raw: "", wantErr: true},
		{raw: "not a url", wantErr: true},
		{raw: "/relative/path", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			err := ValidateURL(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
