package validator

import (
	"testing"
)

type overrideForm struct {
	Combo string `json:"combo" validate:"required,keycombo"`
	Name  string `json:"name" validate:"omitempty,personname"`
}

func TestCustomTags(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		form    overrideForm
		wantErr string
	}{
		{name: "modifier combo", form: overrideForm{Combo: "ctrl+5"}},
		{name: "digit pair", form: overrideForm{Combo: "1+2", Name: "Siti Nur-Aini"}},
		{name: "same digits", form: overrideForm{Combo: "3+3"}, wantErr: "combo"},
		{name: "letter key", form: overrideForm{Combo: "ctrl+x"}, wantErr: "combo"},
		{name: "name with digits", form: overrideForm{Combo: "alt+7", Name: "R2D2"}, wantErr: "name"},
		{name: "apostrophe name", form: overrideForm{Combo: "alt+7", Name: "D'Angelo J."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.form)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error on %s", tt.wantErr)
			}
			fields := TranslateErrors(err)
			msg, ok := fields[tt.wantErr]
			if !ok || msg == "" {
				t.Fatalf("fields = %v, want message for %s", fields, tt.wantErr)
			}
		})
	}
}
