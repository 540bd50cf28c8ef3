package push

import (
	"errors"
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		wantErr   bool
		wantTitle string
		wantBody  string
		wantTag   string
		check     func(t *testing.T, p Payload)
	}{
		{
			name:      "empty data uses defaults",
			data:      "",
			wantTitle: "Offline Runtime",
			wantBody:  "You have a new update.",
			wantTag:   "default",
		},
		{
			name:      "fields override defaults",
			data:      `{"title":"Build done","tag":"builds","requireInteraction":true}`,
			wantTitle: "Build done",
			wantBody:  "You have a new update.",
			wantTag:   "builds",
			check: func(t *testing.T, p Payload) {
				if !p.RequireInteraction {
					t.Error("RequireInteraction should be true")
				}
				if p.Icon != "/icons/icon-192x192.png" {
					t.Errorf("Icon = %q, want default", p.Icon)
				}
			},
		},
		{
			name:      "actions and data",
			data:      `{"actions":[{"action":"view-project","title":"Open"}],"data":{"projectId":"42"}}`,
			wantTitle: "Offline Runtime",
			wantBody:  "You have a new update.",
			wantTag:   "default",
			check: func(t *testing.T, p Payload) {
				if len(p.Actions) != 1 || p.Actions[0].Action != ActionViewProject {
					t.Errorf("Actions = %+v", p.Actions)
				}
				if p.Data["projectId"] != "42" {
					t.Errorf("Data = %+v", p.Data)
				}
			},
		},
		{
			name:      "malformed json",
			data:      `{"title":`,
			wantErr:   true,
			wantTitle: "Offline Runtime",
			wantBody:  "You have a new update.",
			wantTag:   "default",
		},
		{
			name:      "not an object",
			data:      `"just text"`,
			wantErr:   true,
			wantTitle: "Offline Runtime",
			wantBody:  "You have a new update.",
			wantTag:   "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var parseErr *ParseError
				if !errors.As(err, &parseErr) {
					t.Errorf("error %T is not *ParseError", err)
				}
			}
			if p.Title != tt.wantTitle || p.Body != tt.wantBody || p.Tag != tt.wantTag {
				t.Errorf("Parse() = %q/%q/%q, want %q/%q/%q", p.Title, p.Body, p.Tag, tt.wantTitle, tt.wantBody, tt.wantTag)
			}
			if tt.check != nil {
				tt.check(t, p)
			}
		})
	}
}

func TestParse_MalformedKeepsDefaultActions(t *testing.T) {
	p, _ := Parse([]byte(`{"actions": 7}`))
	if !reflect.DeepEqual(p, DefaultPayload()) {
		t.Errorf("Parse() = %+v, want defaults", p)
	}
}
