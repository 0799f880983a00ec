package seed

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	data := []byte(`
known_places:
  - id: ` + idA + `
    name: Liberty Bell
    lat: 39.949610
    lon: -75.150282
  - id: ` + idB + `
    name: Null Island
    lat: 0
    lon: 0
`)
	places, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(places) != 2 {
		t.Fatalf("len = %d, want 2", len(places))
	}
	if places[0].Name != "Liberty Bell" || places[0].Location.Latitude != 39.949610 {
		t.Errorf("places[0] = %+v", places[0])
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name, body, want string
	}{
		{"bad yaml", "known_places: [", "parse"},
		{"missing id", "known_places:\n  - {name: A, lat: 1, lon: 1}\n", "known_places[0]"},
		{"non uuid id", "known_places:\n  - {id: abc, name: A, lat: 1, lon: 1}\n", "known_places[0]"},
		{"missing name", "known_places:\n  - {id: " + idA + ", lat: 1, lon: 1}\n", "known_places[0]"},
		{"bad longitude", "known_places:\n  - {id: " + idA + ", name: A, lat: 1, lon: 200}\n", "invalid coordinate"},
		{"duplicate", "known_places:\n  - {id: " + idA + ", name: A, lat: 1, lon: 1}\n  - {id: " + idA + ", name: B, lat: 2, lon: 2}\n", "duplicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestParse_Empty(t *testing.T) {
	places, err := Parse([]byte(""))
	if err != nil {
		t.Fatal(err)
	}
	if len(places) != 0 {
		t.Errorf("len = %d", len(places))
	}
}
