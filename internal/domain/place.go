package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// StringArray stores a string slice as a JSON text column.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Latitude  float64 `gorm:"column:latitude;not null" json:"latitude"`
	Longitude float64 `gorm:"column:longitude;not null" json:"longitude"`
}

// PlaceMetadata holds address components returned by geocoding.
type PlaceMetadata struct {
	Neighborhood string `json:"neighborhood,omitempty"`
	City         string `json:"city,omitempty"`
	Country      string `json:"country,omitempty"`
	PlaceType    string `json:"place_type,omitempty"`
}

// Place is a geocoded or extracted location attached to a screenshot.
// ClusterID is nil until the clustering stage assigns the place to a cluster.
type Place struct {
	ID                 string        `gorm:"type:text;primaryKey" json:"id"`
	Name               string        `gorm:"type:text;not null" json:"name"`
	Address            string        `gorm:"type:text" json:"address,omitempty"`
	Coordinates        Coordinates   `gorm:"embedded" json:"coordinates"`
	Category           string        `gorm:"type:text" json:"category,omitempty"`
	SourceScreenshotID string        `gorm:"type:text;not null;index:idx_places_screenshot" json:"source_screenshot_id"`
	ClusterID          *string       `gorm:"type:text;index:idx_places_cluster" json:"cluster_id,omitempty"`
	Metadata           PlaceMetadata `gorm:"type:text;serializer:json" json:"metadata"`
	CreatedAt          time.Time     `gorm:"index:idx_places_created" json:"created_at"`
}

// TableName returns the database table name for Place.
func (Place) TableName() string {
	return "places"
}

// PlaceCluster groups two or more places that lie within the clustering threshold.
type PlaceCluster struct {
	ID        string      `gorm:"type:text;primaryKey" json:"id"`
	Name      string      `gorm:"type:text;not null" json:"name"`
	Centroid  Coordinates `gorm:"embedded;embeddedPrefix:centroid_" json:"centroid"`
	PlaceIDs  StringArray `gorm:"type:text" json:"place_ids"`
	Color     string      `gorm:"type:text" json:"color"`
	CreatedAt time.Time   `gorm:"index:idx_place_clusters_created" json:"created_at"`
}

// TableName returns the database table name for PlaceCluster.
func (PlaceCluster) TableName() string {
	return "place_clusters"
}

// MapRegion is a map viewport sized to fit a set of places. It is never persisted.
type MapRegion struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	LatitudeDelta  float64 `json:"latitude_delta"`
	LongitudeDelta float64 `json:"longitude_delta"`
}
