package domain

import (
	"fmt"
	"strings"
)

type Protocol string

const (
	ProtocolHTTP   Protocol = "HTTP"
	ProtocolHTTPS  Protocol = "HTTPS"
	ProtocolSOCKS5 Protocol = "SOCKS5"
)

var Protocols = []Protocol{ProtocolHTTP, ProtocolHTTPS, ProtocolSOCKS5}

type Encryption string

const (
	EncryptionAES256   Encryption = "AES-256"
	EncryptionChaCha20 Encryption = "ChaCha20"
	EncryptionNone     Encryption = "None"
)

var Encryptions = []Encryption{EncryptionAES256, EncryptionChaCha20, EncryptionNone}

// ProxyDescriptor is one synthetic entry of the proxy catalog. Descriptors are
// created once at startup and never mutated.
type ProxyDescriptor struct {
	ID          string     `json:"id"`
	IP          string     `json:"ip"`
	Port        uint16     `json:"port"`
	Country     string     `json:"country"`
	CountryCode string     `json:"country_code"` // ISO 3166-1 alpha-2
	City        string     `json:"city"`
	Latency     int        `json:"latency"` // milliseconds
	Protocol    Protocol   `json:"protocol"`
	Encryption  Encryption `json:"encryption"`
}

func (p ProxyDescriptor) Address() string {
	return fmt.Sprintf("%s:%d", p.IP, p.Port)
}

func (p ProxyDescriptor) Location() string {
	return fmt.Sprintf("%s, %s", p.City, p.Country)
}

// URL renders the descriptor the way proxy clients expect it, e.g. socks5://1.2.3.4:1080.
func (p ProxyDescriptor) URL() string {
	return fmt.Sprintf("%s://%s", strings.ToLower(string(p.Protocol)), p.Address())
}
