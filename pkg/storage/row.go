package storage

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/veridian/vanguard/pkg/types"
)

// fileName is the columnar file name within a partition directory.
const fileName = "events.parquet"

// PartitionKey identifies a partition: the (date, hour, source) trio
// derived from the event timestamp and source system.
type PartitionKey struct {
	Date   string // YYYY-MM-DD of the event timestamp
	Hour   int    // 0..23 of the event timestamp
	Source string
}

// KeyFor derives the partition key of a unified event.
func KeyFor(e *types.UnifiedEvent) PartitionKey {
	ts := e.Timestamp.UTC()
	return PartitionKey{
		Date:   ts.Format("2006-01-02"),
		Hour:   ts.Hour(),
		Source: e.SourceSystem,
	}
}

// Path returns the object key of the partition file within a tier.
func (k PartitionKey) Path(tier Tier) string {
	return fmt.Sprintf("%s/date=%s/hour=%02d/source=%s/%s", tier, k.Date, k.Hour, k.Source, fileName)
}

// ParseKey extracts the tier and partition key from an object key.
func ParseKey(key string) (Tier, PartitionKey, bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 5 {
		return "", PartitionKey{}, false
	}
	tier := Tier(parts[0])
	date, ok1 := strings.CutPrefix(parts[1], "date=")
	hourStr, ok2 := strings.CutPrefix(parts[2], "hour=")
	source, ok3 := strings.CutPrefix(parts[3], "source=")
	if !ok1 || !ok2 || !ok3 {
		return "", PartitionKey{}, false
	}
	hour, err := strconv.Atoi(hourStr)
	if err != nil || hour < 0 || hour > 23 {
		return "", PartitionKey{}, false
	}
	return tier, PartitionKey{Date: date, Hour: hour, Source: source}, true
}

// EventRow is the columnar layout of a unified event. Nested contexts are
// flattened into prefixed columns; the opaque source_specific map is
// carried as a JSON string column. Only the anonymized source address is
// persisted.
type EventRow struct {
	// Partition keys
	Date         string `parquet:"date"`
	Hour         int32  `parquet:"hour"`
	SourceSystem string `parquet:"source_system"`

	// Identity
	EntityID   string `parquet:"entity_id"`
	EntityType string `parquet:"entity_type"`
	SessionID  string `parquet:"session_id"`

	// Event
	EventType    string    `parquet:"event_type"`
	EventSubtype string    `parquet:"event_subtype"`
	Timestamp    time.Time `parquet:"timestamp"`
	Success      bool      `parquet:"success"`
	ErrorCode    string    `parquet:"error_code"`
	ErrorMessage string    `parquet:"error_message"`

	// Network
	SourceIPAnonymized string `parquet:"source_ip_anonymized"`
	UserAgent          string `parquet:"user_agent"`

	// Location
	LocationCity        string  `parquet:"location_city"`
	LocationCountry     string  `parquet:"location_country"`
	LocationCountryCode string  `parquet:"location_country_code"`
	LocationLatitude    float64 `parquet:"location_latitude"`
	LocationLongitude   float64 `parquet:"location_longitude"`

	// Device
	DeviceID       string `parquet:"device_id"`
	DeviceOS       string `parquet:"device_os"`
	DeviceBrowser  string `parquet:"device_browser"`
	DeviceIsMobile bool   `parquet:"device_is_mobile"`
	DeviceIsBot    bool   `parquet:"device_is_bot"`

	// Resource
	ResourceType     string `parquet:"resource_type"`
	ResourceID       string `parquet:"resource_id"`
	ResourceName     string `parquet:"resource_name"`
	ResourceMethod   string `parquet:"resource_method"`
	ResourceEndpoint string `parquet:"resource_endpoint"`
	ResourceService  string `parquet:"resource_service"`
	SensitivityLevel int32  `parquet:"sensitivity_level"`

	// Entity metadata
	EntityDepartment   string `parquet:"entity_department"`
	EntityRole         string `parquet:"entity_role"`
	EntityIsAdmin      bool   `parquet:"entity_is_admin"`
	EntityIsPrivileged bool   `parquet:"entity_is_privileged"`

	// Temporal
	HourOfDay       int32 `parquet:"hour_of_day"`
	DayOfWeek       int32 `parquet:"day_of_week"`
	IsWeekend       bool  `parquet:"is_weekend"`
	IsBusinessHours bool  `parquet:"is_business_hours"`
	WeekOfYear      int32 `parquet:"week_of_year"`
	Month           int32 `parquet:"month"`

	// Performance
	LatencyMS         float64 `parquet:"latency_ms"`
	RequestSizeBytes  int64   `parquet:"request_size_bytes"`
	ResponseSizeBytes int64   `parquet:"response_size_bytes"`

	// Meta
	IngestionTimestamp  time.Time `parquet:"ingestion_timestamp"`
	ProcessingTimestamp time.Time `parquet:"processing_timestamp"`
	RawEventID          string    `parquet:"raw_event_id"`
	PipelineVersion     string    `parquet:"pipeline_version"`
	SourceSpecific      string    `parquet:"source_specific"`
}

// RowFromEvent flattens a unified event into its columnar form.
func RowFromEvent(e *types.UnifiedEvent) EventRow {
	key := KeyFor(e)
	row := EventRow{
		Date:                key.Date,
		Hour:                int32(key.Hour),
		SourceSystem:        e.SourceSystem,
		EntityID:            e.EntityID,
		EntityType:          string(e.EntityType),
		SessionID:           e.SessionID,
		EventType:           string(e.EventType),
		EventSubtype:        e.EventSubtype,
		Timestamp:           e.Timestamp.UTC(),
		Success:             e.Success,
		ErrorCode:           e.ErrorCode,
		ErrorMessage:        e.ErrorMessage,
		SourceIPAnonymized:  e.SourceIPAnonymized,
		UserAgent:           e.UserAgent,
		RawEventID:          e.RawEventID,
		PipelineVersion:     e.PipelineVersion,
		IngestionTimestamp:  e.IngestionTimestamp.UTC(),
		ProcessingTimestamp: e.ProcessingTimestamp.UTC(),
	}

	if loc := e.Location; loc != nil {
		row.LocationCity = loc.City
		row.LocationCountry = loc.Country
		row.LocationCountryCode = loc.CountryCode
		row.LocationLatitude = loc.Latitude
		row.LocationLongitude = loc.Longitude
	}
	if dev := e.Device; dev != nil {
		row.DeviceID = dev.DeviceID
		row.DeviceOS = dev.OS
		row.DeviceBrowser = dev.Browser
		row.DeviceIsMobile = dev.IsMobile
		row.DeviceIsBot = dev.IsBot
	}
	if res := e.Resource; res != nil {
		row.ResourceType = res.Type
		row.ResourceID = res.ID
		row.ResourceName = res.Name
		row.ResourceMethod = res.Method
		row.ResourceEndpoint = res.Endpoint
		row.ResourceService = res.Service
		row.SensitivityLevel = int32(res.SensitivityLevel)
	}
	if meta := e.EntityMetadata; meta != nil {
		row.EntityDepartment = meta.Department
		row.EntityRole = meta.Role
		row.EntityIsAdmin = meta.IsAdmin
		row.EntityIsPrivileged = meta.IsPrivileged
	}
	if tmp := e.Temporal; tmp != nil {
		row.HourOfDay = int32(tmp.HourOfDay)
		row.DayOfWeek = int32(tmp.DayOfWeek)
		row.IsWeekend = tmp.IsWeekend
		row.IsBusinessHours = tmp.IsBusinessHours
		row.WeekOfYear = int32(tmp.WeekOfYear)
		row.Month = int32(tmp.Month)
	}
	if perf := e.Performance; perf != nil {
		row.LatencyMS = perf.LatencyMS
		row.RequestSizeBytes = perf.RequestSizeBytes
		row.ResponseSizeBytes = perf.ResponseSizeBytes
	}
	if e.SourceSpecific != nil {
		if data, err := json.Marshal(e.SourceSpecific); err == nil {
			row.SourceSpecific = string(data)
		}
	}
	return row
}
