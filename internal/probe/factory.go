package probe

import (
	"fmt"

	"OutLight/internal/domain"
)

type Factory struct {
	httpProbe *HTTPProbe
	dnsProbe  *DNSProbe
}

func NewFactory(http *HTTPProbe, dns *DNSProbe) *Factory {
	return &Factory{
		httpProbe: http,
		dnsProbe:  dns,
	}
}

func (f *Factory) GetProbe(kind domain.TargetKind) (Probe, error) {
	switch kind {
	case domain.KindHTTP:
		if f.httpProbe != nil {
			return f.httpProbe, nil
		}
	case domain.KindDNS:
		if f.dnsProbe != nil {
			return f.dnsProbe, nil
		}
	}
	return nil, fmt.Errorf("no probe for target kind: %s", kind)
}
