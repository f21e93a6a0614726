package uplink

import (
	"fmt"
	"net"
	"time"

	"github.com/mixhq/agent/internal/config"
	"github.com/mixhq/agent/pkg/types"
)

// Version is stamped into every envelope's source block. Overridden at link
// time with -ldflags "-X github.com/mixhq/agent/internal/uplink.Version=...".
var Version = "v1.0.0"

const (
	sourceFrom = "agent"
	sourceLang = "go"
	unknownIP  = "unknown"
)

// Builder stamps reports from one agent with identity and provenance.
type Builder struct {
	global    config.GlobalConfig
	agentName string
	version   string
	now       func() time.Time
	localIP   func() string
}

type BuilderOption func(*Builder)

func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

func WithLocalIP(ip func() string) BuilderOption {
	return func(b *Builder) {
		if ip != nil {
			b.localIP = ip
		}
	}
}

func WithVersion(version string) BuilderOption {
	return func(b *Builder) {
		if version != "" {
			b.version = version
		}
	}
}

func NewBuilder(global config.GlobalConfig, agentName string, opts ...BuilderOption) *Builder {
	b := &Builder{
		global:    global,
		agentName: agentName,
		version:   Version,
		now:       time.Now,
		localIP:   LocalIP,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build wraps payload into an envelope. A nil tags slice is sent as [].
func (b *Builder) Build(category, content string, level types.Level, tags []string, payload any) types.Envelope {
	now := b.now()
	ip := b.localIP()
	if tags == nil {
		tags = []string{}
	}
	return types.Envelope{
		BatchID: BatchID(now),
		Identity: types.Identity{
			CustomerID: b.global.CustomerID,
			ProjectID:  b.global.ProjectID,
			TargetIP:   ip,
		},
		Time:     now.UnixMilli(),
		Level:    level,
		Tags:     append(make([]string, 0, len(tags)), tags...),
		Category: category,
		Content:  content,
		RawData:  payload,
		Priority: types.PriorityLow,
		Env:      b.global.Env,
		Source: types.Source{
			From:    sourceFrom,
			Name:    b.agentName,
			Version: b.version,
			Lang:    sourceLang,
			IP:      ip,
		},
	}
}

// BatchID renders t in local time as YYYYMMDDhhmmss followed by six digits of
// microseconds.
func BatchID(t time.Time) string {
	t = t.Local()
	return t.Format("20060102150405") + fmt.Sprintf("%06d", t.Nanosecond()/int(time.Microsecond))
}

// LocalIP returns the IPv4 address of the interface used for outbound
// traffic. No packet is sent; dialing UDP only selects a route.
func LocalIP() string {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return unknownIP
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP.To4() == nil {
		return unknownIP
	}
	return addr.IP.String()
}
