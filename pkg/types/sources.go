package types

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Source shapes mirror the wire format of each upstream producer. Only the
// fields the pipeline depends on are declared; everything else survives in
// the raw record and ends up in source_specific.

// SignInStatus is the nested status block of an identity sign-in record.
type SignInStatus struct {
	ErrorCode     *int   `json:"errorCode"`
	FailureReason string `json:"failureReason"`
}

// SignInLocation is the nested location block of an identity sign-in record.
type SignInLocation struct {
	City            string `json:"city"`
	CountryOrRegion string `json:"countryOrRegion"`
	GeoCoordinates  struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"geoCoordinates"`
}

// SignInDevice is the nested device block of an identity sign-in record.
type SignInDevice struct {
	DeviceID        string `json:"deviceId"`
	OperatingSystem string `json:"operatingSystem"`
	Browser         string `json:"browser"`
}

// IdentitySignInRecord is an identity-provider sign-in log entry.
type IdentitySignInRecord struct {
	ID                string          `json:"id"`
	CreatedDateTime   string          `json:"createdDateTime" validate:"required"`
	UserPrincipalName string          `json:"userPrincipalName" validate:"required_without=UserID"`
	UserID            string          `json:"userId"`
	AppID             string          `json:"appId"`
	AppDisplayName    string          `json:"appDisplayName"`
	IPAddress         string          `json:"ipAddress" validate:"required"`
	ClientAppUsed     string          `json:"clientAppUsed"`
	CorrelationID     string          `json:"correlationId"`
	Status            *SignInStatus   `json:"status"`
	Location          *SignInLocation `json:"location"`
	DeviceDetail      *SignInDevice   `json:"deviceDetail"`
}

// AuditIdentity is the acting identity of a cloud audit record.
type AuditIdentity struct {
	Type        string `json:"type"`
	UserName    string `json:"userName"`
	PrincipalID string `json:"principalId"`
	ARN         string `json:"arn"`
}

// AuditResource is one resource reference of a cloud audit record.
type AuditResource struct {
	ARN string `json:"ARN"`
}

// CloudAuditRecord is a cloud provider audit-trail entry.
type CloudAuditRecord struct {
	EventID         string          `json:"eventID"`
	EventTime       string          `json:"eventTime" validate:"required"`
	EventSource     string          `json:"eventSource" validate:"required"`
	EventName       string          `json:"eventName" validate:"required"`
	UserIdentity    *AuditIdentity  `json:"userIdentity"`
	SourceIPAddress string          `json:"sourceIPAddress" validate:"required"`
	UserAgent       string          `json:"userAgent"`
	RequestID       string          `json:"requestID"`
	ErrorCode       string          `json:"errorCode"`
	ErrorMessage    string          `json:"errorMessage"`
	Resources       []AuditResource `json:"resources"`
}

// APIAccessRecord is an API-gateway access log entry.
type APIAccessRecord struct {
	Timestamp         string  `json:"timestamp" validate:"required"`
	RequestID         string  `json:"request_id"`
	UserID            string  `json:"user_id" validate:"required"`
	Method            string  `json:"method" validate:"required"`
	Endpoint          string  `json:"endpoint" validate:"required"`
	StatusCode        *int    `json:"status_code" validate:"required"`
	LatencyMS         float64 `json:"latency_ms"`
	RequestSizeBytes  int64   `json:"request_size_bytes"`
	ResponseSizeBytes int64   `json:"response_size_bytes"`
	SourceIP          string  `json:"source_ip" validate:"required"`
	UserAgent         string  `json:"user_agent"`
	APIKeyID          string  `json:"api_key_id"`
}

var validate = validator.New()

// ValidateRecord checks a raw JSON record against the shape registered for
// its source type. A nil error means the record is safe to enqueue.
func ValidateRecord(source SourceType, raw []byte) error {
	var shape any
	switch source {
	case SourceIdentitySignIn:
		shape = &IdentitySignInRecord{}
	case SourceCloudAudit:
		shape = &CloudAuditRecord{}
	case SourceAPIAccess:
		shape = &APIAccessRecord{}
	default:
		return fmt.Errorf("unknown source type: %s", source)
	}

	if err := json.Unmarshal(raw, shape); err != nil {
		return fmt.Errorf("malformed record: %w", err)
	}
	if err := validate.Struct(shape); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
