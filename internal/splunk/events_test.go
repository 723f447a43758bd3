package splunk

import (
	"encoding/json"
	"testing"
	"time"
)

func TestGenerate_Deterministic(t *testing.T) {
	a := NewGenerator(42)
	b := NewGenerator(42)
	for i := 0; i < 50; i++ {
		ea, err := json.Marshal(a.Generate(time.Time{}, DefaultAnomalyRate))
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		eb, _ := json.Marshal(b.Generate(time.Time{}, DefaultAnomalyRate))
		if string(ea) != string(eb) {
			t.Fatalf("event %d diverged:\n%s\n%s", i, ea, eb)
		}
	}
}

func TestGenerate_WeightedDistribution(t *testing.T) {
	g := NewGenerator(7)
	counts := map[string]int{}
	const n = 5000
	for i := 0; i < n; i++ {
		counts[g.Generate(time.Time{}, 0).Sourcetype]++
	}

	want := map[string]float64{
		"app:metrics":    0.35,
		"cicd:pipeline":  0.20,
		"user:activity":  0.20,
		"infra:metrics":  0.15,
		"security:audit": 0.10,
	}
	for sourcetype, weight := range want {
		got := float64(counts[sourcetype]) / n
		if got < weight-0.04 || got > weight+0.04 {
			t.Errorf("%s frequency: got %.3f want about %.2f", sourcetype, got, weight)
		}
	}
}

func TestSRE_NormalAndAnomalous(t *testing.T) {
	g := NewGenerator(3)

	for i := 0; i < 50; i++ {
		ev := g.SRE(time.Time{}, 0)
		if ev.Sourcetype != "app:metrics" || ev.Index != "main" || ev.Source != "application" {
			t.Fatalf("envelope: got %+v", ev)
		}
		level := ev.Event["level"].(string)
		if level != "INFO" && level != "DEBUG" && level != "WARN" {
			t.Fatalf("normal level: got %q", level)
		}
		latency := ev.Event["latency_ms"].(int)
		if latency < 10 || latency > 200 {
			t.Fatalf("normal latency: got %d", latency)
		}
		errorRate := ev.Event["error_rate"].(float64)
		if errorRate < 0 || errorRate > 1 {
			t.Fatalf("normal error rate: got %v", errorRate)
		}
	}

	for i := 0; i < 50; i++ {
		ev := g.SRE(time.Time{}, 1)
		level := ev.Event["level"].(string)
		if level != "ERROR" && level != "CRITICAL" {
			t.Fatalf("anomaly level: got %q", level)
		}
		latency := ev.Event["latency_ms"].(int)
		if latency < 2000 || latency > 10000 {
			t.Fatalf("anomaly latency: got %d", latency)
		}
		errorRate := ev.Event["error_rate"].(float64)
		if errorRate < 5 || errorRate > 25 {
			t.Fatalf("anomaly error rate: got %v", errorRate)
		}
	}
}

func TestDevOps_Fields(t *testing.T) {
	g := NewGenerator(9)

	ev := g.DevOps(time.Time{}, 0)
	if ev.Sourcetype != "cicd:pipeline" || ev.Index != "devops" || ev.Source != "cicd" {
		t.Fatalf("envelope: got %+v", ev)
	}
	if got := ev.Event["status"]; got != "success" {
		t.Fatalf("normal status: got %v", got)
	}
	duration := ev.Event["duration_seconds"].(int)
	if duration < 60 || duration > 300 {
		t.Fatalf("normal duration: got %d", duration)
	}
	commit := ev.Event["commit"].(string)
	if len(commit) != 8 {
		t.Fatalf("commit: got %q want 8 hex chars", commit)
	}
	for _, r := range commit {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			t.Fatalf("commit not hex: %q", commit)
		}
	}

	for i := 0; i < 20; i++ {
		anomalous := g.DevOps(time.Time{}, 1)
		status := anomalous.Event["status"].(string)
		if status != "failed" && status != "timeout" {
			t.Fatalf("anomaly status: got %q", status)
		}
		d := anomalous.Event["duration_seconds"].(int)
		if d < 300 || d > 1800 {
			t.Fatalf("anomaly duration: got %d", d)
		}
	}
}

func TestSupport_Fields(t *testing.T) {
	g := NewGenerator(11)
	browsers := map[string]bool{"Chrome": true, "Firefox": true, "Safari": true, "Edge": true}
	platforms := map[string]bool{"Windows": true, "macOS": true, "iOS": true, "Android": true}

	for i := 0; i < 30; i++ {
		ev := g.Support(time.Time{}, 0)
		if ev.Sourcetype != "user:activity" || ev.Index != "main" {
			t.Fatalf("envelope: got %+v", ev)
		}
		if userID := ev.Event["user_id"].(string); len(userID) != 8 {
			t.Fatalf("user id: got %q want 8 chars", userID)
		}
		if !browsers[ev.Event["browser"].(string)] {
			t.Fatalf("browser: got %v", ev.Event["browser"])
		}
		if !platforms[ev.Event["platform"].(string)] {
			t.Fatalf("platform: got %v", ev.Event["platform"])
		}
		rt := ev.Event["response_time_ms"].(int)
		if rt < 100 || rt > 1500 {
			t.Fatalf("normal response time: got %d", rt)
		}
	}

	ev := g.Support(time.Time{}, 1)
	if got := ev.Event["status"]; got != "error" {
		t.Fatalf("anomaly status: got %v", got)
	}
}

func TestSecurity_Fields(t *testing.T) {
	g := NewGenerator(13)
	anomalous := map[string]bool{
		"failed_login": true, "suspicious_activity": true,
		"blocked_request": true, "privilege_escalation_attempt": true,
	}

	sawUser, sawNull := false, false
	for i := 0; i < 100; i++ {
		ev := g.Security(time.Time{}, 1)
		if ev.Sourcetype != "security:audit" || ev.Index != "security" {
			t.Fatalf("envelope: got %+v", ev)
		}
		if !anomalous[ev.Event["event_type"].(string)] {
			t.Fatalf("anomaly event type: got %v", ev.Event["event_type"])
		}
		sev := ev.Event["severity"].(string)
		if sev != "high" && sev != "critical" {
			t.Fatalf("anomaly severity: got %q", sev)
		}
		geo := ev.Event["geo"].(map[string]any)
		if geo["country"] == "" || geo["city"] == "" {
			t.Fatalf("geo: got %v", geo)
		}
		if ev.Event["user"] == nil {
			sawNull = true
		} else {
			sawUser = true
		}
	}
	if !sawUser || !sawNull {
		t.Fatalf("user field: sawUser=%t sawNull=%t, want both", sawUser, sawNull)
	}

	normal := g.Security(time.Time{}, 0)
	if got := normal.Event["severity"]; got != "info" {
		t.Fatalf("normal severity: got %v", got)
	}
}

func TestInfrastructure_Bounds(t *testing.T) {
	g := NewGenerator(17)

	ev := g.Infrastructure(time.Time{}, 1)
	if ev.Sourcetype != "infra:metrics" || ev.Index != "infrastructure" {
		t.Fatalf("envelope: got %+v", ev)
	}
	if got := ev.Event["status"]; got != "critical" {
		t.Fatalf("anomaly status: got %v", got)
	}
	for _, key := range []string{"cpu_percent", "memory_percent", "disk_percent"} {
		v := ev.Event[key].(int)
		if v < 85 || v > 100 {
			t.Fatalf("%s: got %d want [85,100]", key, v)
		}
	}

	normal := g.Infrastructure(time.Time{}, 0)
	if got := normal.Event["status"]; got != "healthy" {
		t.Fatalf("normal status: got %v", got)
	}
	if cpu := normal.Event["cpu_percent"].(int); cpu < 10 || cpu > 60 {
		t.Fatalf("normal cpu: got %d", cpu)
	}
	if up := normal.Event["uptime_hours"].(int); up < 1 || up > 720 {
		t.Fatalf("uptime: got %d", up)
	}
}

func TestStamp_Timestamp(t *testing.T) {
	g := NewGenerator(19)

	ts := time.Date(2026, 3, 1, 12, 30, 15, 500000000, time.UTC)
	ev := g.SRE(ts, 0)
	want := float64(ts.UnixNano()) / float64(time.Second)
	if ev.Time != want {
		t.Fatalf("time: got %v want %v", ev.Time, want)
	}

	bare := g.SRE(time.Time{}, 0)
	if bare.Time != 0 {
		t.Fatalf("zero timestamp: got %v want 0", bare.Time)
	}
	raw, err := json.Marshal(bare)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, present := decoded["time"]; present {
		t.Fatalf("time field present on unstamped event: %s", raw)
	}
}

func TestPersona_Dispatch(t *testing.T) {
	g := NewGenerator(23)
	want := map[Persona]string{
		PersonaSRE:            "app:metrics",
		PersonaDevOps:         "cicd:pipeline",
		PersonaSupport:        "user:activity",
		PersonaInfrastructure: "infra:metrics",
		PersonaSecurity:       "security:audit",
	}
	for _, p := range Personas() {
		if got := g.Persona(p, time.Time{}, 0).Sourcetype; got != want[p] {
			t.Fatalf("%s sourcetype: got %q want %q", p, got, want[p])
		}
	}
	if got := g.Persona("unknown", time.Time{}, 0).Sourcetype; got != "app:metrics" {
		t.Fatalf("unknown persona fallback: got %q", got)
	}
}
