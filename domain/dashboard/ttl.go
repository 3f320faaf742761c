package dashboard

import "time"

// TTLClass groups statistics by volatility
type TTLClass int

const (
	// TTLShort is for volatile series such as progress and activity
	TTLShort TTLClass = iota
	// TTLMedium is for moderate aggregates such as global, branch and instructor stats
	TTLMedium
	// TTLLong is reserved for stable data
	TTLLong
)

func (c TTLClass) String() string {
	switch c {
	case TTLShort:
		return "short"
	case TTLMedium:
		return "medium"
	default:
		return "long"
	}
}

// TTLPolicy maps each class to a concrete duration
type TTLPolicy struct {
	Short  time.Duration `yaml:"short"`
	Medium time.Duration `yaml:"medium"`
	Long   time.Duration `yaml:"long"`
}

// DefaultTTLPolicy returns 5, 15 and 60 minutes
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		Short:  5 * time.Minute,
		Medium: 15 * time.Minute,
		Long:   60 * time.Minute,
	}
}

// For returns the duration of class c, falling back to the default for unset classes
func (p TTLPolicy) For(c TTLClass) time.Duration {
	def := DefaultTTLPolicy()
	switch c {
	case TTLShort:
		if p.Short > 0 {
			return p.Short
		}
		return def.Short
	case TTLMedium:
		if p.Medium > 0 {
			return p.Medium
		}
		return def.Medium
	default:
		if p.Long > 0 {
			return p.Long
		}
		return def.Long
	}
}
