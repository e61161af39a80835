package statsnet

import (
	"net/url"
	"strconv"
	"strings"
)

// Kind is the statsd type of a payload entry
type Kind int

const (
	KindCount Kind = iota
	KindTiming
	KindGauge
)

// Suffix returns the wire suffix of the kind: c, ms or g
func (k Kind) Suffix() string {
	switch k {
	case KindCount:
		return "c"
	case KindTiming:
		return "ms"
	case KindGauge:
		return "g"
	default:
		return ""
	}
}

// Entry is one formatted data point of a payload
type Entry struct {
	// Key is the metric name with the root namespace already applied
	Key   string
	Value string
	Kind  Kind
}

// String formats the entry as <key>:<value>|<suffix>
func (e Entry) String() string {
	return e.Key + ":" + e.Value + "|" + e.Kind.Suffix()
}

// Float returns the numeric value of the entry
func (e Entry) Float() (float64, error) {
	return strconv.ParseFloat(e.Value, 64)
}

// Payload is the ordered batch handed to a Transport on each flush.
// Entries are laid out as counts, then timings, then gauges.
type Payload []Entry

// Len returns the number of entries
func (p Payload) Len() int {
	return len(p)
}

// Lines returns the formatted entries in order
func (p Payload) Lines() []string {
	lines := make([]string, len(p))
	for i, e := range p {
		lines[i] = e.String()
	}
	return lines
}

// String returns the comma-joined wire body
func (p Payload) String() string {
	var sb strings.Builder
	for i, e := range p {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(e.String())
	}
	return sb.String()
}

// Form returns the form body posted to the collector
func (p Payload) Form() url.Values {
	return url.Values{FormField: []string{p.String()}}
}

// keep returns the last n entries, dropping the oldest ones.
// A non-positive n means no limit.
func (p Payload) keep(n int) (Payload, int) {
	if n <= 0 || len(p) <= n {
		return p, 0
	}
	dropped := len(p) - n
	return p[dropped:], dropped
}

// metricKey applies the root namespace to a metric name
func metricKey(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "." + name
}

// buildPayload converts a snapshot into wire entries
func buildPayload(namespace string, s snapshot) Payload {
	p := make(Payload, 0, s.len())

	for _, name := range s.countOrder {
		p = append(p, Entry{
			Key:   metricKey(namespace, name),
			Value: strconv.FormatInt(s.counts[name], 10),
			Kind:  KindCount,
		})
	}
	for _, t := range s.timings {
		p = append(p, Entry{
			Key:   metricKey(namespace, t.name),
			Value: strconv.FormatInt(t.millis, 10),
			Kind:  KindTiming,
		})
	}
	for _, name := range s.gaugeOrder {
		p = append(p, Entry{
			Key:   metricKey(namespace, name),
			Value: strconv.FormatFloat(s.gauges[name], 'f', -1, 64),
			Kind:  KindGauge,
		})
	}

	return p
}
