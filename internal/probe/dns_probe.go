package probe

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/miekg/dns"

	"OutLight/internal/domain"
	"OutLight/internal/shared/constants"
)

const DefaultDNSServer = "8.8.8.8:53"

type DNSProbe struct {
	server  string
	timeout time.Duration
}

func NewDNSProbe(server string, timeout time.Duration) *DNSProbe {
	if server == "" {
		server = DefaultDNSServer
	}
	if timeout <= 0 {
		timeout = constants.DNSTimeout
	}
	return &DNSProbe{server: server, timeout: timeout}
}

func (p *DNSProbe) Execute(ctx context.Context, target domain.EndpointTarget) domain.CheckResult {
	host := hostOf(target.URL)

	timeout := target.Timeout
	if timeout <= 0 {
		timeout = p.timeout
	}

	client := &dns.Client{Timeout: timeout}

	msg := dns.Msg{}
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)

	response, rtt, err := client.ExchangeContext(ctx, &msg, p.server)
	if err != nil {
		return domain.NewErrorResult(target.Name, fmt.Errorf("DNS query failed: %w", err))
	}

	if response.Rcode != dns.RcodeSuccess {
		err := domain.WithKind(domain.ErrKindProtocol, fmt.Errorf("DNS error: %s", dns.RcodeToString[response.Rcode]))
		return domain.NewErrorResult(target.Name, err)
	}

	if len(response.Answer) == 0 {
		err := domain.WithKind(domain.ErrKindProtocol, fmt.Errorf("no A records for %s", host))
		return domain.NewWarningResult(target.Name, rtt, 0, err)
	}

	result := domain.NewSuccessResult(target.Name, rtt, 0)
	if result.LatencyMS <= 0 {
		result.LatencyMS = 0.001
	}
	result.Detail = fmt.Sprintf("%d answers, ttl %d", len(response.Answer), extractMinTTL(response.Answer))
	return result
}

// hostOf accepts either a bare host or a URL.
func hostOf(target string) string {
	if u, err := url.Parse(target); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return target
}

func extractMinTTL(answers []dns.RR) uint32 {
	if len(answers) == 0 {
		return 0
	}

	minTTL := answers[0].Header().Ttl
	for _, answer := range answers[1:] {
		if answer.Header().Ttl < minTTL {
			minTTL = answer.Header().Ttl
		}
	}
	return minTTL
}
