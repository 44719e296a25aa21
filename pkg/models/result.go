package models

import "time"

// Point3D is a position in the caller's spatial frame. Detections produced
// from 2-D analysis carry the bounding-rect origin with Z = 0.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Detection is a single recognized object.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Location   Point3D `json:"location"`
}

// Tag is a whole-image descriptor without a location.
type Tag struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// DetectionResult is the outcome of one analysis. Built once on a successful
// remote call and never mutated afterwards.
type DetectionResult struct {
	Detections []Detection `json:"detections"`
	Tags       []Tag       `json:"tags,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}
