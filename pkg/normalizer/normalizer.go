package normalizer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/veridian/vanguard/pkg/log"
	"github.com/veridian/vanguard/pkg/types"
)

// Normalization failure classes. All are deterministic for a given record;
// callers should not retry them.
var (
	ErrUnknownSource   = errors.New("unknown source type")
	ErrSchemaViolation = errors.New("schema violation")
	ErrBadTimestamp    = errors.New("bad timestamp")
)

// mapper converts one source's raw record into a unified event.
type mapper func(item *types.QueuedItem) (*types.UnifiedEvent, error)

// Normalizer maps raw records of known source type to the unified schema.
type Normalizer struct {
	mappers map[types.SourceType]mapper
}

// New creates a normalizer with every registered source mapping.
func New() *Normalizer {
	n := &Normalizer{}
	n.mappers = map[types.SourceType]mapper{
		types.SourceIdentitySignIn: n.normalizeIdentitySignIn,
		types.SourceCloudAudit:     n.normalizeCloudAudit,
		types.SourceAPIAccess:      n.normalizeAPIAccess,
	}

	logger := log.WithComponent("normalizer")
	logger.Info().Int("sources", len(n.mappers)).Msg("normalizer initialized")
	return n
}

// Normalize converts a queued item to a unified event. The processing
// timestamp is stamped at the end so it reflects normalization completion.
func (n *Normalizer) Normalize(item *types.QueuedItem) (*types.UnifiedEvent, error) {
	if item.SourceType == "" {
		return nil, fmt.Errorf("%w: missing source_type", ErrUnknownSource)
	}

	m, ok := n.mappers[item.SourceType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, item.SourceType)
	}

	event, err := m(item)
	if err != nil {
		return nil, err
	}

	event.SourceSystem = string(item.SourceType)
	event.IngestionTimestamp = item.IngestionTimestamp
	event.ProcessingTimestamp = time.Now().UTC()
	event.PipelineVersion = types.PipelineVersion
	if event.Timestamp.IsZero() {
		return nil, fmt.Errorf("%w: missing event timestamp", ErrBadTimestamp)
	}
	event.Temporal = types.DeriveTemporal(event.Timestamp)
	return event, nil
}

func (n *Normalizer) normalizeIdentitySignIn(item *types.QueuedItem) (*types.UnifiedEvent, error) {
	rec := item.Record

	ts, err := parseTimestamp(getString(rec, "createdDateTime"))
	if err != nil {
		return nil, err
	}

	entityID := getString(rec, "userPrincipalName")
	if entityID == "" {
		entityID = getString(rec, "userId")
	}
	if entityID == "" {
		return nil, fmt.Errorf("%w: identity_signin record has no principal", ErrSchemaViolation)
	}

	sourceIP := getString(rec, "ipAddress")
	if sourceIP == "" {
		return nil, fmt.Errorf("%w: identity_signin record has no address", ErrSchemaViolation)
	}

	// Success is error code 0 or absent.
	status := getMap(rec, "status")
	errorCode, hasCode := getNumber(status, "errorCode")
	success := !hasCode || errorCode == 0

	event := &types.UnifiedEvent{
		EntityID:     entityID,
		EntityType:   types.EntityUser,
		SessionID:    getString(rec, "correlationId"),
		EventType:    types.EventAuthentication,
		EventSubtype: "sign_in",
		Timestamp:    ts,
		Success:      success,
		SourceIP:     sourceIP,
		UserAgent:    getString(rec, "clientAppUsed"),
		Resource: &types.ResourceContext{
			Type: "application",
			ID:   getString(rec, "appId"),
			Name: getString(rec, "appDisplayName"),
		},
		RawEventID: rawEventID(rec, "id", item),
	}

	if !success {
		event.ErrorCode = fmt.Sprintf("%d", int(errorCode))
		event.ErrorMessage = getString(status, "failureReason")
	}

	if loc := getMap(rec, "location"); loc != nil {
		geo := getMap(loc, "geoCoordinates")
		lat, _ := getNumber(geo, "latitude")
		lon, _ := getNumber(geo, "longitude")
		event.Location = &types.LocationContext{
			City:      getString(loc, "city"),
			Country:   getString(loc, "countryOrRegion"),
			Latitude:  lat,
			Longitude: lon,
		}
	}

	if dev := getMap(rec, "deviceDetail"); dev != nil {
		os := getString(dev, "operatingSystem")
		event.Device = &types.DeviceFingerprint{
			DeviceID: getString(dev, "deviceId"),
			OS:       os,
			Browser:  getString(dev, "browser"),
			IsMobile: isMobileOS(os),
		}
	}

	// Risk fields and everything else non-canonical ride along.
	event.SourceSpecific = residual(rec, identitySignInCanonical)
	return event, nil
}

func (n *Normalizer) normalizeCloudAudit(item *types.QueuedItem) (*types.UnifiedEvent, error) {
	rec := item.Record

	ts, err := parseTimestamp(getString(rec, "eventTime"))
	if err != nil {
		return nil, err
	}

	eventName := getString(rec, "eventName")
	eventSource := getString(rec, "eventSource")
	if eventName == "" || eventSource == "" {
		return nil, fmt.Errorf("%w: cloud_audit record missing event name or source", ErrSchemaViolation)
	}

	identity := getMap(rec, "userIdentity")
	errorCode := getString(rec, "errorCode")

	resource := &types.ResourceContext{
		Type:    "cloud_resource",
		Service: strings.TrimSuffix(eventSource, ".amazonaws.com"),
		Method:  eventName,
		Name:    eventName,
	}
	if resources, ok := rec["resources"].([]any); ok && len(resources) > 0 {
		if first, ok := resources[0].(map[string]any); ok {
			resource.ID = getString(first, "ARN")
		}
	}

	event := &types.UnifiedEvent{
		EntityID:     auditEntityID(identity),
		EntityType:   auditEntityType(identity),
		SessionID:    getString(rec, "requestID"),
		EventType:    types.EventCloudAPI,
		EventSubtype: eventName,
		Timestamp:    ts,
		Success:      errorCode == "",
		ErrorCode:    errorCode,
		ErrorMessage: getString(rec, "errorMessage"),
		SourceIP:     getString(rec, "sourceIPAddress"),
		UserAgent:    getString(rec, "userAgent"),
		Resource:     resource,
		RawEventID:   rawEventID(rec, "eventID", item),
	}

	event.SourceSpecific = residual(rec, cloudAuditCanonical)
	return event, nil
}

func (n *Normalizer) normalizeAPIAccess(item *types.QueuedItem) (*types.UnifiedEvent, error) {
	rec := item.Record

	ts, err := parseTimestamp(getString(rec, "timestamp"))
	if err != nil {
		return nil, err
	}

	userID := getString(rec, "user_id")
	if userID == "" {
		return nil, fmt.Errorf("%w: api_access record has no user_id", ErrSchemaViolation)
	}

	entityType := types.EntityService
	if strings.Contains(userID, "@") {
		entityType = types.EntityUser
	}

	method := getString(rec, "method")
	endpoint := getString(rec, "endpoint")

	statusCode, hasStatus := getNumber(rec, "status_code")
	if !hasStatus {
		return nil, fmt.Errorf("%w: api_access record has no status_code", ErrSchemaViolation)
	}
	success := statusCode >= 200 && statusCode < 300

	latency, _ := getNumber(rec, "latency_ms")
	reqSize, _ := getNumber(rec, "request_size_bytes")
	respSize, _ := getNumber(rec, "response_size_bytes")

	event := &types.UnifiedEvent{
		EntityID:     userID,
		EntityType:   entityType,
		SessionID:    getString(rec, "request_id"),
		EventType:    types.EventAPICall,
		EventSubtype: method,
		Timestamp:    ts,
		Success:      success,
		SourceIP:     getString(rec, "source_ip"),
		UserAgent:    getString(rec, "user_agent"),
		Resource: &types.ResourceContext{
			Type:     "api_endpoint",
			Endpoint: endpoint,
			Method:   method,
			Name:     fmt.Sprintf("%s %s", method, endpoint),
		},
		Performance: &types.PerformanceContext{
			LatencyMS:         latency,
			RequestSizeBytes:  int64(reqSize),
			ResponseSizeBytes: int64(respSize),
		},
		RawEventID: rawEventID(rec, "request_id", item),
	}

	if !success {
		event.ErrorCode = fmt.Sprintf("%d", int(statusCode))
	}

	event.SourceSpecific = residual(rec, apiAccessCanonical)
	return event, nil
}

// auditEntityID extracts the acting principal from a cloud audit identity:
// username, else principal id, else the last segment of the resource
// identifier.
func auditEntityID(identity map[string]any) string {
	if identity == nil {
		return "unknown"
	}
	if name := getString(identity, "userName"); name != "" {
		return name
	}
	if id := getString(identity, "principalId"); id != "" {
		return id
	}
	if arn := getString(identity, "arn"); arn != "" {
		parts := strings.Split(arn, "/")
		if len(parts) > 1 {
			return parts[len(parts)-1]
		}
		return arn
	}
	return "unknown"
}

func auditEntityType(identity map[string]any) types.EntityType {
	switch strings.ToLower(getString(identity, "type")) {
	case "assumedrole", "awsservice", "federated":
		return types.EntityService
	case "iamuser", "root":
		return types.EntityUser
	default:
		return types.EntityUnknown
	}
}

func isMobileOS(os string) bool {
	switch strings.ToLower(os) {
	case "ios", "android":
		return true
	}
	return false
}

// rawEventID prefers the source's own id and falls back to the ingestion id.
func rawEventID(rec map[string]any, key string, item *types.QueuedItem) string {
	if id := getString(rec, key); id != "" {
		return id
	}
	return item.IngestionID
}

// Accepted timestamp layouts, tried in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// parseTimestamp parses an event timestamp into a concrete UTC instant.
// Unparseable timestamps reject the event; nothing is silently substituted.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty timestamp", ErrBadTimestamp)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
}
