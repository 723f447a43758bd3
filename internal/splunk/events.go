// Package splunk generates synthetic platform events and delivers them
// to a Splunk HTTP Event Collector. Five persona generators cover the
// demo scenarios: application monitoring, CI/CD, user activity,
// infrastructure, and security audit.
package splunk

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// DefaultAnomalyRate is the fraction of generated events that take the
// degraded variant when the caller does not choose a rate.
const DefaultAnomalyRate = 0.05

// Persona selects one of the event generators.
type Persona string

const (
	PersonaSRE            Persona = "sre"
	PersonaDevOps         Persona = "devops"
	PersonaSupport        Persona = "support"
	PersonaInfrastructure Persona = "infrastructure"
	PersonaSecurity       Persona = "security"
)

// Personas lists every persona in generation weight order.
func Personas() []Persona {
	return []Persona{
		PersonaSRE, PersonaDevOps, PersonaSupport,
		PersonaInfrastructure, PersonaSecurity,
	}
}

// personaWeights drives the weighted draw in Generate. Weights sum to 1.
var personaWeights = []struct {
	persona Persona
	weight  float64
}{
	{PersonaSRE, 0.35},
	{PersonaDevOps, 0.20},
	{PersonaSupport, 0.20},
	{PersonaInfrastructure, 0.15},
	{PersonaSecurity, 0.10},
}

// Event is one collector envelope. Empty envelope fields get filled with
// collector defaults at send time.
type Event struct {
	Time       float64        `json:"time,omitempty"`
	Event      map[string]any `json:"event"`
	Source     string         `json:"source,omitempty"`
	Sourcetype string         `json:"sourcetype,omitempty"`
	Index      string         `json:"index,omitempty"`
	Host       string         `json:"host,omitempty"`
}

// Generator produces persona events from a seeded stream, so the same
// seed yields the same events.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator seeds a generator. Seed 0 draws from the clock.
func NewGenerator(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Generate draws a persona by weight and produces one event. Roughly
// anomalyRate of the events come out as their degraded variant.
func (g *Generator) Generate(ts time.Time, anomalyRate float64) Event {
	r := g.rng.Float64()
	cumulative := 0.0
	for _, pw := range personaWeights {
		cumulative += pw.weight
		if r < cumulative {
			return g.Persona(pw.persona, ts, anomalyRate)
		}
	}
	return g.SRE(ts, anomalyRate)
}

// Persona produces one event for a specific persona. Unknown personas
// fall back to SRE.
func (g *Generator) Persona(p Persona, ts time.Time, anomalyRate float64) Event {
	switch p {
	case PersonaDevOps:
		return g.DevOps(ts, anomalyRate)
	case PersonaSupport:
		return g.Support(ts, anomalyRate)
	case PersonaInfrastructure:
		return g.Infrastructure(ts, anomalyRate)
	case PersonaSecurity:
		return g.Security(ts, anomalyRate)
	default:
		return g.SRE(ts, anomalyRate)
	}
}

// SRE produces application monitoring events: service health, latency,
// and error rates.
func (g *Generator) SRE(ts time.Time, anomalyRate float64) Event {
	anomaly := g.rng.Float64() < anomalyRate
	services := []string{"api-gateway", "user-service", "payment-service", "inventory-service", "search-service"}
	service := pick(g.rng, services)

	var level, message string
	var latency int
	var errorRate float64
	if anomaly {
		level = pick(g.rng, []string{"ERROR", "ERROR", "CRITICAL"})
		latency = g.between(2000, 10000)
		errorRate = g.uniform(5, 25)
		message = pick(g.rng, []string{
			fmt.Sprintf("High error rate detected: %.1f%%", errorRate),
			fmt.Sprintf("Service degradation: latency spike to %dms", latency),
			"Connection pool exhausted",
			"Database connection timeout",
			"Memory usage critical: 95%",
		})
	} else {
		level = pick(g.rng, []string{"INFO", "INFO", "INFO", "DEBUG", "WARN"})
		latency = g.between(10, 200)
		errorRate = g.uniform(0, 1)
		message = pick(g.rng, []string{
			"Request processed successfully",
			"Health check passed",
			fmt.Sprintf("Cache hit ratio: %d%%", g.between(85, 99)),
			fmt.Sprintf("Processed %d requests/min", g.between(100, 1000)),
		})
	}

	return stamp(ts, Event{
		Event: map[string]any{
			"service":    service,
			"level":      level,
			"latency_ms": latency,
			"error_rate": round2(errorRate),
			"message":    message,
			"host":       fmt.Sprintf("%s-%d", service, g.between(1, 5)),
			"region":     pick(g.rng, []string{"us-east-1", "us-west-2", "eu-west-1"}),
		},
		Source:     "application",
		Sourcetype: "app:metrics",
		Index:      "main",
	})
}

// DevOps produces CI/CD pipeline events.
func (g *Generator) DevOps(ts time.Time, anomalyRate float64) Event {
	anomaly := g.rng.Float64() < anomalyRate
	pipelines := []string{"api-service", "web-frontend", "data-processor", "auth-service", "notification-worker"}
	stages := []string{"build", "test", "security-scan", "deploy-staging", "deploy-prod"}
	pipeline := pick(g.rng, pipelines)
	stage := pick(g.rng, stages)

	var status, message string
	var duration int
	if anomaly {
		status = pick(g.rng, []string{"failed", "failed", "timeout"})
		duration = g.between(300, 1800)
		message = pick(g.rng, []string{
			fmt.Sprintf("Pipeline %s failed at %s: dependency resolution error", pipeline, stage),
			fmt.Sprintf("Pipeline %s timeout at %s: exceeded 30m limit", pipeline, stage),
			fmt.Sprintf("Pipeline %s failed: security vulnerability detected", pipeline),
		})
	} else {
		status = "success"
		duration = g.between(60, 300)
		message = fmt.Sprintf("Pipeline %s completed %s successfully", pipeline, stage)
	}

	return stamp(ts, Event{
		Event: map[string]any{
			"pipeline":         pipeline,
			"stage":            stage,
			"status":           status,
			"duration_seconds": duration,
			"message":          message,
			"commit":           g.hexString(8),
			"author":           g.username(),
		},
		Source:     "cicd",
		Sourcetype: "cicd:pipeline",
		Index:      "devops",
	})
}

// Support produces user activity events.
func (g *Generator) Support(ts time.Time, anomalyRate float64) Event {
	anomaly := g.rng.Float64() < anomalyRate
	actions := []string{"login", "search", "view_product", "add_to_cart", "checkout", "support_ticket"}
	action := pick(g.rng, actions)
	userID := g.shortUUID()

	var status, message string
	var responseTime int
	if anomaly {
		status = "error"
		responseTime = g.between(5000, 15000)
		message = pick(g.rng, []string{
			"User session timeout",
			"Payment processing failed",
			"Feature unavailable due to service outage",
			"Rate limit exceeded for user",
		})
	} else {
		status = "success"
		responseTime = g.between(100, 1500)
		message = fmt.Sprintf("User action completed: %s", action)
	}

	return stamp(ts, Event{
		Event: map[string]any{
			"user_id":          userID,
			"action":           action,
			"status":           status,
			"response_time_ms": responseTime,
			"message":          message,
			"browser":          pick(g.rng, []string{"Chrome", "Firefox", "Safari", "Edge"}),
			"platform":         pick(g.rng, []string{"Windows", "macOS", "iOS", "Android"}),
		},
		Source:     "user_activity",
		Sourcetype: "user:activity",
		Index:      "main",
	})
}

// Security produces audit events. The user field is null on roughly a
// third of events, matching unauthenticated traffic.
func (g *Generator) Security(ts time.Time, anomalyRate float64) Event {
	anomaly := g.rng.Float64() < anomalyRate

	var eventType, severity, message string
	if anomaly {
		eventType = pick(g.rng, []string{
			"failed_login", "suspicious_activity", "blocked_request", "privilege_escalation_attempt",
		})
		severity = pick(g.rng, []string{"high", "high", "critical"})
		message = pick(g.rng, []string{
			fmt.Sprintf("Multiple failed login attempts from %s", g.ipv4()),
			"Suspicious API access pattern detected",
			"Blocked SQL injection attempt",
			"Unauthorized access attempt to admin endpoint",
		})
	} else {
		eventType = pick(g.rng, []string{"login_success", "password_change", "api_access", "audit_log"})
		severity = "info"
		message = fmt.Sprintf("Normal security event: %s", eventType)
	}

	var user any
	if g.rng.Float64() > 0.3 {
		user = g.username()
	}

	return stamp(ts, Event{
		Event: map[string]any{
			"event_type": eventType,
			"severity":   severity,
			"source_ip":  g.ipv4(),
			"user":       user,
			"message":    message,
			"geo": map[string]any{
				"country": pick(g.rng, countryCodes),
				"city":    pick(g.rng, cities),
			},
		},
		Source:     "security",
		Sourcetype: "security:audit",
		Index:      "security",
	})
}

// Infrastructure produces host metric events.
func (g *Generator) Infrastructure(ts time.Time, anomalyRate float64) Event {
	anomaly := g.rng.Float64() < anomalyRate
	host := fmt.Sprintf("srv-%03d", g.between(1, 19))

	var cpu, memory, disk int
	var status, message string
	if anomaly {
		cpu = g.between(85, 100)
		memory = g.between(85, 100)
		disk = g.between(85, 100)
		status = "critical"
		message = pick(g.rng, []string{
			fmt.Sprintf("High CPU usage: %d%%", cpu),
			fmt.Sprintf("Memory pressure: %d%% used", memory),
			fmt.Sprintf("Disk space critical: %d%% used", disk),
			"Network interface errors detected",
		})
	} else {
		cpu = g.between(10, 60)
		memory = g.between(30, 70)
		disk = g.between(20, 60)
		status = "healthy"
		message = "System metrics normal"
	}

	return stamp(ts, Event{
		Event: map[string]any{
			"host":           host,
			"cpu_percent":    cpu,
			"memory_percent": memory,
			"disk_percent":   disk,
			"status":         status,
			"message":        message,
			"uptime_hours":   g.between(1, 720),
		},
		Source:     "infrastructure",
		Sourcetype: "infra:metrics",
		Index:      "infrastructure",
	})
}

var givenNames = []string{
	"alex", "casey", "jordan", "morgan", "riley", "sam", "taylor", "devon", "jamie", "quinn",
}

var familyNames = []string{
	"smith", "johnson", "garcia", "miller", "chen", "patel", "kim", "novak", "silva", "mori",
}

var countryCodes = []string{"US", "GB", "DE", "FR", "JP", "BR", "IN", "AU", "CA", "NL"}

var cities = []string{
	"New York", "London", "Berlin", "Paris", "Tokyo",
	"Sao Paulo", "Mumbai", "Sydney", "Toronto", "Amsterdam",
}

func pick[T any](rng *rand.Rand, items []T) T {
	return items[rng.Intn(len(items))]
}

// between returns an integer in [lo, hi].
func (g *Generator) between(lo, hi int) int {
	return lo + g.rng.Intn(hi-lo+1)
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func (g *Generator) hexString(n int) string {
	const digits = "0123456789abcdef"
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = digits[g.rng.Intn(len(digits))]
	}
	return string(buf)
}

func (g *Generator) username() string {
	return pick(g.rng, givenNames)[:1] + pick(g.rng, familyNames)
}

func (g *Generator) ipv4() string {
	return fmt.Sprintf("%d.%d.%d.%d",
		g.rng.Intn(223)+1, g.rng.Intn(256), g.rng.Intn(256), g.rng.Intn(254)+1)
}

// shortUUID is the first eight characters of a UUID drawn from the
// seeded stream.
func (g *Generator) shortUUID() string {
	id, err := uuid.NewRandomFromReader(g.rng)
	if err != nil {
		return g.hexString(8)
	}
	return id.String()[:8]
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func stamp(ts time.Time, ev Event) Event {
	if !ts.IsZero() {
		ev.Time = float64(ts.UnixNano()) / float64(time.Second)
	}
	return ev
}
