package enricher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/mssola/useragent"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/veridian/vanguard/pkg/log"
	"github.com/veridian/vanguard/pkg/metrics"
	"github.com/veridian/vanguard/pkg/types"
)

// Config holds enricher configuration.
type Config struct {
	EntityCacheTTL       time.Duration
	GeoTablePath         string
	SensitivityRulesPath string

	// AnonymizeFields names source_specific keys whose values are replaced
	// by a hash before the event leaves the enricher.
	AnonymizeFields []string

	// Resolver fetches entity metadata on cache misses. Nil defaults to the
	// absent-result stub.
	Resolver EntityResolver
}

// Enricher adds context to normalized events: geographic location, entity
// metadata, device fingerprint, resource sensitivity, and PII
// anonymization. Every aspect is best-effort; a failed aspect is logged,
// counted and skipped without touching the rest of the event.
type Enricher struct {
	geo        *GeoTable
	classifier *Classifier
	resolver   EntityResolver
	cache      *gocache.Cache
	anonymize  []string
	logger     zerolog.Logger
}

// New creates an enricher. Geo table and sensitivity rules load from the
// configured paths, falling back to built-in defaults.
func New(cfg Config) (*Enricher, error) {
	geo, err := LoadGeoTable(cfg.GeoTablePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load geo table: %w", err)
	}
	classifier, err := LoadClassifier(cfg.SensitivityRulesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load sensitivity rules: %w", err)
	}

	resolver := cfg.Resolver
	if resolver == nil {
		resolver = StubResolver{}
	}

	ttl := cfg.EntityCacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &Enricher{
		geo:        geo,
		classifier: classifier,
		resolver:   resolver,
		cache:      gocache.New(ttl, 10*time.Minute),
		anonymize:  cfg.AnonymizeFields,
		logger:     log.WithComponent("enricher"),
	}, nil
}

// Enrich applies every enrichment aspect in order and returns the event.
// Repeated enrichment is idempotent: aspects that already ran leave their
// fields unchanged.
func (e *Enricher) Enrich(ctx context.Context, event *types.UnifiedEvent) *types.UnifiedEvent {
	e.enrichLocation(event)
	e.enrichEntityMetadata(ctx, event)
	e.enrichDevice(event)
	e.enrichSensitivity(event)
	e.anonymizePII(event)
	return event
}

func (e *Enricher) enrichLocation(event *types.UnifiedEvent) {
	if event.SourceIP == "" || event.Location != nil {
		return
	}
	loc, err := e.geo.Lookup(event.SourceIP)
	if err != nil {
		e.logger.Warn().Err(err).Str("source_ip", event.SourceIP).Msg("geo lookup failed")
		metrics.EnrichmentErrors.WithLabelValues("geo").Inc()
		return
	}
	event.Location = loc
}

func (e *Enricher) enrichEntityMetadata(ctx context.Context, event *types.UnifiedEvent) {
	if event.EntityID == "" || event.EntityMetadata != nil {
		return
	}

	if cached, ok := e.cache.Get(event.EntityID); ok {
		event.EntityMetadata = cached.(*types.EntityMetadata)
		return
	}

	meta, err := e.resolver.Resolve(ctx, event.EntityID, event.EntityType)
	if err != nil {
		e.logger.Warn().Err(err).Str("entity_id", event.EntityID).Msg("entity metadata lookup failed")
		metrics.EnrichmentErrors.WithLabelValues("entity_metadata").Inc()
		return
	}
	if meta == nil {
		return
	}

	e.cache.Set(event.EntityID, meta, gocache.DefaultExpiration)
	event.EntityMetadata = meta
}

func (e *Enricher) enrichDevice(event *types.UnifiedEvent) {
	if event.UserAgent == "" || event.Device != nil {
		return
	}

	ua := useragent.New(event.UserAgent)
	browser, _ := ua.Browser()
	event.Device = &types.DeviceFingerprint{
		OS:       ua.OS(),
		Browser:  browser,
		IsMobile: ua.Mobile(),
		IsBot:    ua.Bot(),
	}
}

func (e *Enricher) enrichSensitivity(event *types.UnifiedEvent) {
	if event.Resource == nil {
		return
	}
	event.Resource.SensitivityLevel = e.classifier.Classify(event.Resource)
}

// anonymizePII masks the source address and hashes any source_specific
// field flagged by the anonymization rules. The raw final octet must not
// survive past the in-memory event, so writers persist the anonymized form
// only.
func (e *Enricher) anonymizePII(event *types.UnifiedEvent) {
	if event.SourceIP != "" {
		event.SourceIPAnonymized = AnonymizeIP(event.SourceIP)
	}

	if len(e.anonymize) == 0 || event.SourceSpecific == nil {
		return
	}
	for _, field := range e.anonymize {
		v, ok := event.SourceSpecific[field]
		if !ok {
			continue
		}
		s := fmt.Sprintf("%v", v)
		if isHashed(s) {
			// Already anonymized on a previous pass; hashing again would
			// make repeated enrichment unstable.
			continue
		}
		event.SourceSpecific[field] = hashValue(s)
	}
}

// AnonymizeIP masks the final octet of a dotted IPv4 address. Other
// address forms are replaced by a hash so no raw address is ever persisted.
func AnonymizeIP(ip string) string {
	parts := strings.Split(ip, ".")
	if len(parts) == 4 {
		return fmt.Sprintf("%s.%s.%s.XXX", parts[0], parts[1], parts[2])
	}
	return hashValue(ip)
}

func hashValue(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

// isHashed reports whether s is already in the form hashValue produces
// (exactly 16 lowercase hex digits). Hashed values are fixed points of the
// anonymization pass.
func isHashed(s string) bool {
	if len(s) != 16 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// CacheSize returns the number of live entity metadata entries.
func (e *Enricher) CacheSize() int {
	return e.cache.ItemCount()
}
