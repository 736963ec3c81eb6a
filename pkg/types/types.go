package types

import (
	"time"
)

// SourceType identifies the upstream log producer of a raw record.
type SourceType string

const (
	SourceIdentitySignIn SourceType = "identity_signin"
	SourceCloudAudit     SourceType = "cloud_audit"
	SourceAPIAccess      SourceType = "api_access"
)

// SourceTypes lists every registered source.
var SourceTypes = []SourceType{
	SourceIdentitySignIn,
	SourceCloudAudit,
	SourceAPIAccess,
}

// ValidSource reports whether s names a registered source type.
func ValidSource(s string) bool {
	for _, st := range SourceTypes {
		if string(st) == s {
			return true
		}
	}
	return false
}

// EntityType is the kind of principal behind an event.
type EntityType string

const (
	EntityUser    EntityType = "user"
	EntityService EntityType = "service"
	EntityDevice  EntityType = "device"
	EntityUnknown EntityType = "unknown"
)

// EventType is the high-level event category.
type EventType string

const (
	EventAuthentication    EventType = "authentication"
	EventAuthorization     EventType = "authorization"
	EventAPICall           EventType = "api_call"
	EventCloudAPI          EventType = "cloud_api"
	EventDataAccess        EventType = "data_access"
	EventNetworkConnection EventType = "network_connection"
	EventAdminAction       EventType = "admin_action"
)

// PipelineVersion is stamped on every unified event.
const PipelineVersion = "1.0.0"

// LocationContext is the geographic context of an event.
type LocationContext struct {
	City        string  `json:"city,omitempty"`
	Country     string  `json:"country,omitempty"`
	CountryCode string  `json:"country_code,omitempty"`
	Latitude    float64 `json:"latitude,omitempty"`
	Longitude   float64 `json:"longitude,omitempty"`
}

// DeviceFingerprint describes the client device, as far as it can be told.
type DeviceFingerprint struct {
	DeviceID string `json:"device_id,omitempty"`
	OS       string `json:"os,omitempty"`
	Browser  string `json:"browser,omitempty"`
	IsMobile bool   `json:"is_mobile"`
	IsBot    bool   `json:"is_bot"`
}

// ResourceContext describes the resource an event acted on.
type ResourceContext struct {
	Type             string `json:"type"`
	ID               string `json:"id,omitempty"`
	Name             string `json:"name,omitempty"`
	Method           string `json:"method,omitempty"`
	Endpoint         string `json:"endpoint,omitempty"`
	Service          string `json:"service,omitempty"`
	SensitivityLevel int    `json:"sensitivity_level,omitempty"`
}

// EntityMetadata carries directory attributes of the acting entity.
type EntityMetadata struct {
	Department   string `json:"department,omitempty"`
	Role         string `json:"role,omitempty"`
	JobTitle     string `json:"job_title,omitempty"`
	OwnerTeam    string `json:"owner_team,omitempty"`
	Environment  string `json:"environment,omitempty"`
	IsAdmin      bool   `json:"is_admin"`
	IsPrivileged bool   `json:"is_privileged"`
}

// TemporalContext is derived from the event timestamp.
type TemporalContext struct {
	HourOfDay       int  `json:"hour_of_day"`
	DayOfWeek       int  `json:"day_of_week"`
	IsWeekend       bool `json:"is_weekend"`
	IsBusinessHours bool `json:"is_business_hours"`
	WeekOfYear      int  `json:"week_of_year"`
	Month           int  `json:"month"`
}

// PerformanceContext carries request performance figures where the source
// reports them.
type PerformanceContext struct {
	LatencyMS         float64 `json:"latency_ms,omitempty"`
	RequestSizeBytes  int64   `json:"request_size_bytes,omitempty"`
	ResponseSizeBytes int64   `json:"response_size_bytes,omitempty"`
}

// UnifiedEvent is the canonical record every storage row contains.
type UnifiedEvent struct {
	// Core identity
	EntityID   string     `json:"entity_id"`
	EntityType EntityType `json:"entity_type"`
	SessionID  string     `json:"session_id,omitempty"`

	// Event metadata
	EventType    EventType `json:"event_type"`
	EventSubtype string    `json:"event_subtype,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Success      bool      `json:"success"`
	ErrorCode    string    `json:"error_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`

	// Network context
	SourceIP           string `json:"source_ip"`
	SourceIPAnonymized string `json:"source_ip_anonymized,omitempty"`
	UserAgent          string `json:"user_agent,omitempty"`

	// Enriched context
	Location       *LocationContext    `json:"location,omitempty"`
	Device         *DeviceFingerprint  `json:"device,omitempty"`
	Resource       *ResourceContext    `json:"resource,omitempty"`
	EntityMetadata *EntityMetadata     `json:"entity_metadata,omitempty"`
	Temporal       *TemporalContext    `json:"temporal,omitempty"`
	Performance    *PerformanceContext `json:"performance,omitempty"`

	// Metadata
	SourceSystem        string    `json:"source_system"`
	IngestionTimestamp  time.Time `json:"ingestion_timestamp"`
	ProcessingTimestamp time.Time `json:"processing_timestamp"`
	RawEventID          string    `json:"raw_event_id,omitempty"`
	PipelineVersion     string    `json:"pipeline_version"`

	// Non-canonical input fields preserved verbatim
	SourceSpecific map[string]any `json:"source_specific,omitempty"`
}

// QueuedItem is the unit carried by the hybrid queue: the raw record plus
// the fields stamped by the ingest edge.
type QueuedItem struct {
	SourceType         SourceType     `json:"source_type"`
	IngestionID        string         `json:"ingestion_id"`
	IngestionTimestamp time.Time      `json:"ingestion_timestamp"`
	Record             map[string]any `json:"record"`
}

// DeriveTemporal computes the temporal context from an event timestamp.
// day_of_week counts from Monday=0 so is_weekend means Saturday or Sunday.
func DeriveTemporal(t time.Time) *TemporalContext {
	t = t.UTC()
	hour := t.Hour()
	dayOfWeek := (int(t.Weekday()) + 6) % 7
	_, week := t.ISOWeek()

	return &TemporalContext{
		HourOfDay:       hour,
		DayOfWeek:       dayOfWeek,
		IsWeekend:       dayOfWeek >= 5,
		IsBusinessHours: hour >= 9 && hour < 17,
		WeekOfYear:      week,
		Month:           int(t.Month()),
	}
}
