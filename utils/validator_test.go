package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type contributionForm struct {
	StepType string `validate:"required,oneof=finance material"`
	Amount   int    `validate:"required,min=1,max=1000000"`
	Note     string `validate:"nameok,max=20"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name string
		in   contributionForm
		err  string
	}{
		{"ok", contributionForm{StepType: "finance", Amount: 10}, ""},
		{"missing step", contributionForm{Amount: 10}, "StepType is required"},
		{"bad step", contributionForm{StepType: "contributers", Amount: 10}, "StepType must be one of [finance material]"},
		{"zero amount", contributionForm{StepType: "material"}, "Amount is required"},
		{"negative amount", contributionForm{StepType: "material", Amount: -5}, "Amount must be at least 1"},
		{"huge amount", contributionForm{StepType: "material", Amount: 2000000}, "Amount must be at most 1000000"},
		{"bad note", contributionForm{StepType: "finance", Amount: 1, Note: "<script>"}, "Note contains invalid characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.in)
			if tt.err == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.err)
		})
	}

	assert.Error(t, ValidateStruct(42))
}
