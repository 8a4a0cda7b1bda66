package resilience

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultMultiplier       = 2.0
	DefaultMaxDelay         = 30 * time.Second
	DefaultJitter           = 0.25
	DefaultBreakerThreshold = 5
	DefaultBreakerCooldown  = 60 * time.Second
)

// Policy configures one call site.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	// Timeout bounds all attempts and sleeps together; zero means no budget.
	Timeout time.Duration
	// Jitter is the +/- fraction applied to each delay. Negative disables it.
	Jitter float64
	// Retryable overrides the default transient classifier.
	Retryable func(error) bool
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.Multiplier <= 0 {
		p.Multiplier = DefaultMultiplier
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.Jitter == 0 {
		p.Jitter = DefaultJitter
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	return p
}

// delay returns the un-jittered wait before attempt n+1, n starting at 1.
func (p Policy) delay(n int) time.Duration {
	d := float64(p.InitialDelay)
	for i := 1; i < n; i++ {
		d *= p.Multiplier
		if d >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	if d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

var (
	PolicyRender = Policy{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		Multiplier:   2,
		MaxDelay:     10 * time.Second,
		Timeout:      120 * time.Second,
	}
	PolicyStorage = Policy{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		Multiplier:   2,
		MaxDelay:     30 * time.Second,
		Timeout:      300 * time.Second,
	}
	PolicyFast = Policy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		Multiplier:   2,
		MaxDelay:     5 * time.Second,
	}
	PolicyCritical = Policy{
		MaxAttempts:  10,
		InitialDelay: time.Second,
		Multiplier:   1.5,
		MaxDelay:     60 * time.Second,
		Timeout:      600 * time.Second,
	}
)

// Preset looks up a named policy.
func Preset(name string) (Policy, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "render":
		return PolicyRender, true
	case "storage":
		return PolicyStorage, true
	case "fast":
		return PolicyFast, true
	case "critical":
		return PolicyCritical, true
	default:
		return Policy{}, false
	}
}

// BreakerConfig applies to one named operation.
type BreakerConfig struct {
	Threshold int
	Cooldown  time.Duration
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.Threshold <= 0 {
		c.Threshold = DefaultBreakerThreshold
	}
	if c.Cooldown <= 0 {
		c.Cooldown = DefaultBreakerCooldown
	}
	return c
}

// PolicyFile is the YAML document RETRY_POLICY_FILE points to:
//
//	operations:
//	  report.render:
//	    preset: render
//	    max_attempts: 4
//	    breaker_threshold: 3
type PolicyFile struct {
	Operations map[string]OperationOverride `yaml:"operations"`
}

type OperationOverride struct {
	Preset           string   `yaml:"preset"`
	MaxAttempts      int      `yaml:"max_attempts"`
	InitialDelay     Duration `yaml:"initial_delay"`
	Multiplier       float64  `yaml:"multiplier"`
	MaxDelay         Duration `yaml:"max_delay"`
	Timeout          Duration `yaml:"timeout"`
	Jitter           *float64 `yaml:"jitter"`
	BreakerThreshold int      `yaml:"breaker_threshold"`
	BreakerCooldown  Duration `yaml:"breaker_cooldown"`
}

// Duration accepts Go duration strings in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(v)
	return nil
}

// ParsePolicyFile decodes and validates an override document.
func ParsePolicyFile(raw []byte) (PolicyFile, error) {
	var f PolicyFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return PolicyFile{}, fmt.Errorf("parse retry policy file: %w", err)
	}
	for name, o := range f.Operations {
		if strings.TrimSpace(name) == "" {
			return PolicyFile{}, fmt.Errorf("retry policy file: empty operation name")
		}
		if o.Preset != "" {
			if _, ok := Preset(o.Preset); !ok {
				return PolicyFile{}, fmt.Errorf("retry policy file: operation %q: unknown preset %q", name, o.Preset)
			}
		}
		if o.MaxAttempts < 0 || o.Multiplier < 0 || o.BreakerThreshold < 0 {
			return PolicyFile{}, fmt.Errorf("retry policy file: operation %q: negative value", name)
		}
	}
	return f, nil
}

// LoadPolicyFile reads path; an empty path yields an empty document.
func LoadPolicyFile(path string) (PolicyFile, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return PolicyFile{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return PolicyFile{}, fmt.Errorf("read retry policy file: %w", err)
	}
	return ParsePolicyFile(raw)
}

// Policy resolves the policy for op, starting from fallback.
func (f PolicyFile) Policy(op string, fallback Policy) Policy {
	o, ok := f.Operations[op]
	if !ok {
		return fallback
	}
	p := fallback
	if o.Preset != "" {
		if preset, ok := Preset(o.Preset); ok {
			p = preset
			p.Retryable = fallback.Retryable
		}
	}
	if o.MaxAttempts > 0 {
		p.MaxAttempts = o.MaxAttempts
	}
	if o.InitialDelay > 0 {
		p.InitialDelay = time.Duration(o.InitialDelay)
	}
	if o.Multiplier > 0 {
		p.Multiplier = o.Multiplier
	}
	if o.MaxDelay > 0 {
		p.MaxDelay = time.Duration(o.MaxDelay)
	}
	if o.Timeout > 0 {
		p.Timeout = time.Duration(o.Timeout)
	}
	if o.Jitter != nil {
		p.Jitter = *o.Jitter
		if p.Jitter == 0 {
			p.Jitter = -1
		}
	}
	return p
}

// Breaker returns the breaker overrides for op.
func (f PolicyFile) Breaker(op string) BreakerConfig {
	o := f.Operations[op]
	return BreakerConfig{Threshold: o.BreakerThreshold, Cooldown: time.Duration(o.BreakerCooldown)}.withDefaults()
}
