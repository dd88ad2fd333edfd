package dto

import "vpnrotator/internal/domain"

type ProxyInfo struct {
	ID          string            `json:"id"`
	IP          string            `json:"ip"`
	Port        uint16            `json:"port"`
	Address     string            `json:"address"`
	Country     string            `json:"country"`
	CountryCode string            `json:"country_code"`
	City        string            `json:"city"`
	Latency     int               `json:"latency"`
	Protocol    domain.Protocol   `json:"protocol"`
	Encryption  domain.Encryption `json:"encryption"`
}

func NewProxyInfo(p domain.ProxyDescriptor) ProxyInfo {
	return ProxyInfo{
		ID:          p.ID,
		IP:          p.IP,
		Port:        p.Port,
		Address:     p.Address(),
		Country:     p.Country,
		CountryCode: p.CountryCode,
		City:        p.City,
		Latency:     p.Latency,
		Protocol:    p.Protocol,
		Encryption:  p.Encryption,
	}
}

func NewProxyInfoList(proxies []domain.ProxyDescriptor) []ProxyInfo {
	out := make([]ProxyInfo, 0, len(proxies))
	for _, p := range proxies {
		out = append(out, NewProxyInfo(p))
	}
	return out
}
