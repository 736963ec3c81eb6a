package normalizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian/vanguard/pkg/types"
)

func queuedItem(source types.SourceType, record map[string]any) *types.QueuedItem {
	return &types.QueuedItem{
		SourceType:         source,
		IngestionID:        "ing-1",
		IngestionTimestamp: time.Date(2024, 3, 13, 10, 0, 1, 0, time.UTC),
		Record:             record,
	}
}

// TestNormalizeIdentitySignIn tests the identity provider mapping
func TestNormalizeIdentitySignIn(t *testing.T) {
	n := New()
	item := queuedItem(types.SourceIdentitySignIn, map[string]any{
		"id":                "evt-42",
		"createdDateTime":   "2024-03-13T10:00:00Z",
		"userPrincipalName": "alice@example.com",
		"appId":             "app-1",
		"appDisplayName":    "Mail",
		"ipAddress":         "192.168.1.10",
		"clientAppUsed":     "Browser",
		"correlationId":     "corr-7",
		"status":            map[string]any{"errorCode": float64(0)},
		"location": map[string]any{
			"city":            "Dublin",
			"countryOrRegion": "IE",
			"geoCoordinates":  map[string]any{"latitude": 53.3, "longitude": -6.2},
		},
		"deviceDetail": map[string]any{
			"deviceId":        "dev-9",
			"operatingSystem": "iOS",
			"browser":         "Safari",
		},
		"riskLevelAggregated": "low",
	})

	event, err := n.Normalize(item)
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", event.EntityID)
	assert.Equal(t, types.EntityUser, event.EntityType)
	assert.Equal(t, types.EventAuthentication, event.EventType)
	assert.Equal(t, "sign_in", event.EventSubtype)
	assert.Equal(t, time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC), event.Timestamp)
	assert.True(t, event.Success)
	assert.Equal(t, "192.168.1.10", event.SourceIP)
	assert.Equal(t, "corr-7", event.SessionID)
	assert.Equal(t, "evt-42", event.RawEventID)

	require.NotNil(t, event.Resource)
	assert.Equal(t, "application", event.Resource.Type)
	assert.Equal(t, "app-1", event.Resource.ID)
	assert.Equal(t, "Mail", event.Resource.Name)

	require.NotNil(t, event.Location)
	assert.Equal(t, "Dublin", event.Location.City)
	assert.Equal(t, "IE", event.Location.Country)
	assert.InDelta(t, 53.3, event.Location.Latitude, 0.001)

	require.NotNil(t, event.Device)
	assert.Equal(t, "dev-9", event.Device.DeviceID)
	assert.Equal(t, "iOS", event.Device.OS)
	assert.True(t, event.Device.IsMobile)

	// Metadata stamps
	assert.Equal(t, "identity_signin", event.SourceSystem)
	assert.Equal(t, item.IngestionTimestamp, event.IngestionTimestamp)
	assert.False(t, event.ProcessingTimestamp.IsZero())
	assert.Equal(t, types.PipelineVersion, event.PipelineVersion)

	require.NotNil(t, event.Temporal)
	assert.Equal(t, 10, event.Temporal.HourOfDay)
	assert.True(t, event.Temporal.IsBusinessHours)

	// Non-canonical fields ride along
	assert.Equal(t, "low", event.SourceSpecific["riskLevelAggregated"])
	assert.NotContains(t, event.SourceSpecific, "createdDateTime")
}

// TestNormalizeIdentitySignInFailure tests the failed sign-in mapping
func TestNormalizeIdentitySignInFailure(t *testing.T) {
	n := New()
	item := queuedItem(types.SourceIdentitySignIn, map[string]any{
		"createdDateTime":   "2024-03-13T10:00:00Z",
		"userPrincipalName": "alice@example.com",
		"ipAddress":         "192.168.1.10",
		"status": map[string]any{
			"errorCode":     float64(50126),
			"failureReason": "Invalid credentials",
		},
	})

	event, err := n.Normalize(item)
	require.NoError(t, err)
	assert.False(t, event.Success)
	assert.Equal(t, "50126", event.ErrorCode)
	assert.Equal(t, "Invalid credentials", event.ErrorMessage)
}

// TestNormalizeIdentitySignInFallsBackToUserID tests the principal fallback
func TestNormalizeIdentitySignInFallsBackToUserID(t *testing.T) {
	n := New()
	item := queuedItem(types.SourceIdentitySignIn, map[string]any{
		"createdDateTime": "2024-03-13T10:00:00Z",
		"userId":          "u-123",
		"ipAddress":       "192.168.1.10",
	})

	event, err := n.Normalize(item)
	require.NoError(t, err)
	assert.Equal(t, "u-123", event.EntityID)
	assert.True(t, event.Success, "absent status block means success")
}

// TestNormalizeCloudAudit tests the cloud audit trail mapping
func TestNormalizeCloudAudit(t *testing.T) {
	n := New()
	item := queuedItem(types.SourceCloudAudit, map[string]any{
		"eventID":     "aud-1",
		"eventTime":   "2024-03-13T11:30:00Z",
		"eventSource": "s3.amazonaws.com",
		"eventName":   "GetObject",
		"userIdentity": map[string]any{
			"type":     "IAMUser",
			"userName": "deploy-bot",
		},
		"sourceIPAddress": "10.0.0.5",
		"userAgent":       "aws-cli/2.x",
		"requestID":       "req-88",
		"resources": []any{
			map[string]any{"ARN": "arn:aws:s3:::bucket/key"},
		},
		"awsRegion": "us-east-1",
	})

	event, err := n.Normalize(item)
	require.NoError(t, err)

	assert.Equal(t, "deploy-bot", event.EntityID)
	assert.Equal(t, types.EntityUser, event.EntityType)
	assert.Equal(t, types.EventCloudAPI, event.EventType)
	assert.Equal(t, "GetObject", event.EventSubtype)
	assert.True(t, event.Success)
	assert.Equal(t, "req-88", event.SessionID)
	assert.Equal(t, "aud-1", event.RawEventID)

	require.NotNil(t, event.Resource)
	assert.Equal(t, "cloud_resource", event.Resource.Type)
	assert.Equal(t, "s3", event.Resource.Service)
	assert.Equal(t, "arn:aws:s3:::bucket/key", event.Resource.ID)

	assert.Equal(t, "us-east-1", event.SourceSpecific["awsRegion"])
}

// TestNormalizeCloudAuditErrorCode tests that an error code marks failure
func TestNormalizeCloudAuditErrorCode(t *testing.T) {
	n := New()
	item := queuedItem(types.SourceCloudAudit, map[string]any{
		"eventTime":       "2024-03-13T11:30:00Z",
		"eventSource":     "iam.amazonaws.com",
		"eventName":       "DeleteUser",
		"sourceIPAddress": "10.0.0.5",
		"errorCode":       "AccessDenied",
		"errorMessage":    "not authorized",
	})

	event, err := n.Normalize(item)
	require.NoError(t, err)
	assert.False(t, event.Success)
	assert.Equal(t, "AccessDenied", event.ErrorCode)
	assert.Equal(t, "not authorized", event.ErrorMessage)
	assert.Equal(t, "iam", event.Resource.Service)
}

// TestAuditEntityID tests the acting-principal extraction precedence
func TestAuditEntityID(t *testing.T) {
	tests := []struct {
		name     string
		identity map[string]any
		want     string
	}{
		{"username wins", map[string]any{"userName": "bob", "principalId": "p-1"}, "bob"},
		{"principal id next", map[string]any{"principalId": "p-1", "arn": "arn:aws:iam::1:role/x"}, "p-1"},
		{"arn last segment", map[string]any{"arn": "arn:aws:sts::1:assumed-role/deploy/session-9"}, "session-9"},
		{"plain arn", map[string]any{"arn": "arn-without-segments"}, "arn-without-segments"},
		{"nothing known", map[string]any{}, "unknown"},
		{"nil identity", nil, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auditEntityID(tt.identity))
		})
	}
}

// TestAuditEntityType tests the identity type mapping
func TestAuditEntityType(t *testing.T) {
	tests := []struct {
		idType string
		want   types.EntityType
	}{
		{"IAMUser", types.EntityUser},
		{"Root", types.EntityUser},
		{"AssumedRole", types.EntityService},
		{"AWSService", types.EntityService},
		{"Federated", types.EntityService},
		{"SomethingElse", types.EntityUnknown},
		{"", types.EntityUnknown},
	}

	for _, tt := range tests {
		got := auditEntityType(map[string]any{"type": tt.idType})
		assert.Equal(t, tt.want, got, "type %q", tt.idType)
	}
}

// TestNormalizeAPIAccess tests the API gateway mapping
func TestNormalizeAPIAccess(t *testing.T) {
	n := New()
	item := queuedItem(types.SourceAPIAccess, map[string]any{
		"timestamp":           "2024-03-13T12:00:00Z",
		"request_id":          "req-5",
		"user_id":             "carol@example.com",
		"method":              "POST",
		"endpoint":            "/api/users",
		"status_code":         float64(201),
		"latency_ms":          12.5,
		"request_size_bytes":  float64(512),
		"response_size_bytes": float64(2048),
		"source_ip":           "203.0.113.7",
		"user_agent":          "curl/8.0",
		"api_key_id":          "key-3",
	})

	event, err := n.Normalize(item)
	require.NoError(t, err)

	assert.Equal(t, "carol@example.com", event.EntityID)
	assert.Equal(t, types.EntityUser, event.EntityType, "user_id with @ is a user")
	assert.Equal(t, types.EventAPICall, event.EventType)
	assert.Equal(t, "POST", event.EventSubtype)
	assert.True(t, event.Success)

	require.NotNil(t, event.Resource)
	assert.Equal(t, "api_endpoint", event.Resource.Type)
	assert.Equal(t, "/api/users", event.Resource.Endpoint)
	assert.Equal(t, "POST /api/users", event.Resource.Name)

	require.NotNil(t, event.Performance)
	assert.InDelta(t, 12.5, event.Performance.LatencyMS, 0.001)
	assert.Equal(t, int64(512), event.Performance.RequestSizeBytes)
	assert.Equal(t, int64(2048), event.Performance.ResponseSizeBytes)

	assert.Equal(t, "key-3", event.SourceSpecific["api_key_id"])
}

// TestNormalizeAPIAccessServiceEntity tests that a user_id without @ maps
// to a service entity and a non-2xx status marks failure
func TestNormalizeAPIAccessServiceEntity(t *testing.T) {
	n := New()
	item := queuedItem(types.SourceAPIAccess, map[string]any{
		"timestamp":   "2024-03-13T12:00:00Z",
		"user_id":     "svc-batch",
		"method":      "GET",
		"endpoint":    "/admin/keys",
		"status_code": float64(403),
		"source_ip":   "10.0.0.9",
	})

	event, err := n.Normalize(item)
	require.NoError(t, err)
	assert.Equal(t, types.EntityService, event.EntityType)
	assert.False(t, event.Success)
	assert.Equal(t, "403", event.ErrorCode)
}

// TestNormalizeErrors tests the deterministic failure classes
func TestNormalizeErrors(t *testing.T) {
	n := New()

	tests := []struct {
		name    string
		item    *types.QueuedItem
		wantErr error
	}{
		{
			name:    "unknown source",
			item:    queuedItem(types.SourceType("syslog"), map[string]any{}),
			wantErr: ErrUnknownSource,
		},
		{
			name:    "missing source",
			item:    queuedItem("", map[string]any{}),
			wantErr: ErrUnknownSource,
		},
		{
			name: "bad timestamp",
			item: queuedItem(types.SourceAPIAccess, map[string]any{
				"timestamp":   "yesterday",
				"user_id":     "u",
				"status_code": float64(200),
			}),
			wantErr: ErrBadTimestamp,
		},
		{
			name: "empty timestamp",
			item: queuedItem(types.SourceIdentitySignIn, map[string]any{
				"userPrincipalName": "alice@example.com",
				"ipAddress":         "1.2.3.4",
			}),
			wantErr: ErrBadTimestamp,
		},
		{
			name: "signin without principal",
			item: queuedItem(types.SourceIdentitySignIn, map[string]any{
				"createdDateTime": "2024-03-13T10:00:00Z",
				"ipAddress":       "1.2.3.4",
			}),
			wantErr: ErrSchemaViolation,
		},
		{
			name: "api access without status",
			item: queuedItem(types.SourceAPIAccess, map[string]any{
				"timestamp": "2024-03-13T12:00:00Z",
				"user_id":   "u",
			}),
			wantErr: ErrSchemaViolation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(tt.item)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// TestParseTimestamp tests the accepted timestamp layouts
func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "2024-03-13T10:00:00Z", want: time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC)},
		{in: "2024-03-13T10:00:00.123456789Z", want: time.Date(2024, 3, 13, 10, 0, 0, 123456789, time.UTC)},
		{in: "2024-03-13T10:00:00+02:00", want: time.Date(2024, 3, 13, 8, 0, 0, 0, time.UTC)},
		{in: "2024-03-13T10:00:00", want: time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC)},
		{in: "not-a-time", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseTimestamp(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrBadTimestamp, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.True(t, got.Equal(tt.want), "input %q: got %v", tt.in, got)
	}
}
