package normalizer

// Canonical field sets per source. Everything outside the set is preserved
// verbatim in source_specific.
var (
	identitySignInCanonical = map[string]bool{
		"source_type":       true,
		"id":                true,
		"createdDateTime":   true,
		"userPrincipalName": true,
		"userId":            true,
		"appId":             true,
		"appDisplayName":    true,
		"ipAddress":         true,
		"clientAppUsed":     true,
		"correlationId":     true,
		"status":            true,
		"location":          true,
		"deviceDetail":      true,
	}

	cloudAuditCanonical = map[string]bool{
		"source_type":     true,
		"eventID":         true,
		"eventTime":       true,
		"eventSource":     true,
		"eventName":       true,
		"userIdentity":    true,
		"sourceIPAddress": true,
		"requestID":       true,
		"userAgent":       true,
		"errorCode":       true,
		"errorMessage":    true,
		"resources":       true,
	}

	apiAccessCanonical = map[string]bool{
		"source_type":         true,
		"timestamp":           true,
		"request_id":          true,
		"user_id":             true,
		"method":              true,
		"endpoint":            true,
		"status_code":         true,
		"source_ip":           true,
		"user_agent":          true,
		"latency_ms":          true,
		"request_size_bytes":  true,
		"response_size_bytes": true,
	}
)

// residual copies the non-canonical fields of a record.
func residual(rec map[string]any, canonical map[string]bool) map[string]any {
	out := make(map[string]any)
	for k, v := range rec {
		if !canonical[k] {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// getString returns a string field or "".
func getString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// getMap returns a nested object field or nil.
func getMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	if nested, ok := m[key].(map[string]any); ok {
		return nested
	}
	return nil
}

// getNumber returns a numeric field; JSON decoding yields float64 but int
// shows up from hand-built records in tests.
func getNumber(m map[string]any, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
