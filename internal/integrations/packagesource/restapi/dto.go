package restapi

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/BearBump/DelayWatch/internal/integrations/packagesource"
	"github.com/BearBump/DelayWatch/internal/models"
)

type packageDTO struct {
	TrackingNumber  string     `json:"tracking_number"`
	Description     string     `json:"description"`
	Priority        string     `json:"priority"`
	OriginCity      string     `json:"origin_city"`
	DestinationCity string     `json:"destination_city"`
	RecipientName   string     `json:"recipient_name"`
	SenderName      string     `json:"sender_name"`
	Events          []eventDTO `json:"events"`
}

type eventDTO struct {
	ID              flexID   `json:"id"`
	EventType       string   `json:"event_type"`
	Location        string   `json:"location"`
	PointName       string   `json:"point_name"`
	Timestamp       string   `json:"timestamp"`
	Operator        string   `json:"operator"`
	Notes           string   `json:"notes"`
	FlightNumber    string   `json:"flight_number"`
	Airline         string   `json:"airline"`
	NextDestination string   `json:"next_destination"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
}

// Бэкенд отдаёт либо массив, либо {"packages": [...]}.
func decodePackages(body []byte) ([]packageDTO, error) {
	body = bytes.TrimSpace(body)
	var out []packageDTO
	if len(body) > 0 && body[0] == '{' {
		var wrapped struct {
			Packages []packageDTO `json:"packages"`
		}
		if err := decodeJSON(body, &wrapped); err != nil {
			return nil, err
		}
		return wrapped.Packages, nil
	}
	if err := decodeJSON(body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeJSON(body []byte, v any) error {
	return json.Unmarshal(body, v)
}

// flexID accepts both numeric (serial) and string ids.
type flexID string

func (id *flexID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = flexID(s)
		return nil
	}
	if string(b) == "null" {
		*id = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = flexID(n.String())
	return nil
}

func (d packageDTO) toModel(loc *time.Location) models.Package {
	p := models.Package{
		TrackingNumber:  d.TrackingNumber,
		Description:     d.Description,
		Priority:        d.Priority,
		OriginCity:      d.OriginCity,
		DestinationCity: d.DestinationCity,
		RecipientName:   d.RecipientName,
		SenderName:      d.SenderName,
		Events:          make([]models.TrackingEvent, 0, len(d.Events)),
	}
	for _, e := range d.Events {
		ev := models.TrackingEvent{
			ID:              string(e.ID),
			EventType:       models.EventType(e.EventType),
			Location:        e.Location,
			PointName:       e.PointName,
			Timestamp:       packagesource.ParseTimestamp(e.Timestamp, loc),
			Operator:        e.Operator,
			Notes:           e.Notes,
			FlightNumber:    e.FlightNumber,
			Airline:         e.Airline,
			NextDestination: e.NextDestination,
		}
		if e.Latitude != nil && e.Longitude != nil {
			ev.Coordinates = &models.Coordinates{Latitude: *e.Latitude, Longitude: *e.Longitude}
		}
		p.Events = append(p.Events, ev)
	}
	return p
}
