package controllers

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
)

func TestReportAreaInputAcceptsZeroCoordinates(t *testing.T) {
	// Latitude 0 and longitude 0 are valid coordinates; pointer fields keep
	// the validator from treating the numeric zero as a missing value.
	body := []byte(`{"latitude":0,"longitude":0,"description":"litter at the equator","photosBefore":["before.jpg"]}`)

	var input reportAreaInput
	if err := binding.JSON.BindBody(body, &input); err != nil {
		t.Fatalf("zero coordinates must bind: %v", err)
	}
	if input.Latitude == nil || *input.Latitude != 0 {
		t.Errorf("expected latitude 0, got %v", input.Latitude)
	}
	if input.Longitude == nil || *input.Longitude != 0 {
		t.Errorf("expected longitude 0, got %v", input.Longitude)
	}
}

func TestReportAreaInputRequiresCoordinates(t *testing.T) {
	body := []byte(`{"description":"no location given","photosBefore":["before.jpg"]}`)

	var input reportAreaInput
	if err := binding.JSON.BindBody(body, &input); err == nil {
		t.Fatal("missing coordinates must fail binding")
	}
}

func TestReportAreaInputRequiresPhotos(t *testing.T) {
	body := []byte(`{"latitude":52.52,"longitude":13.405,"description":"no photo","photosBefore":[]}`)

	var input reportAreaInput
	if err := binding.JSON.BindBody(body, &input); err == nil {
		t.Fatal("an empty photo list must fail binding")
	}
}
