package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"vpnrotator/internal/domain"
)

const DefaultTimeout = 20 * time.Second

var (
	ErrMissingCredential = errors.New("report generator credential not configured")
	ErrMalformedReport   = errors.New("malformed report response")
)

// Generator asks an external service for a security report. Errors are
// expected; Service turns them into the fallback report.
type Generator interface {
	Generate(ctx context.Context, proxy domain.ProxyDescriptor) (domain.SecurityReport, error)
}

type GeneratorFunc func(ctx context.Context, proxy domain.ProxyDescriptor) (domain.SecurityReport, error)

func (f GeneratorFunc) Generate(ctx context.Context, proxy domain.ProxyDescriptor) (domain.SecurityReport, error) {
	return f(ctx, proxy)
}

// Fallback is the deterministic report used whenever generation fails.
func Fallback(proxy domain.ProxyDescriptor) domain.SecurityReport {
	return domain.SecurityReport{
		RiskLevel:          domain.RiskMedium,
		Summary:            fmt.Sprintf("Unable to verify real-time data for %s. Standard privacy laws apply.", proxy.Country),
		EncryptionAnalysis: fmt.Sprintf("Protocol %s is standard.", proxy.Protocol),
	}
}

// Service never fails: any generator error is logged and replaced by Fallback.
type Service struct {
	generator Generator
	timeout   time.Duration
}

func NewService(generator Generator, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{generator: generator, timeout: timeout}
}

func (s *Service) Analyze(ctx context.Context, proxy domain.ProxyDescriptor) domain.SecurityReport {
	if s.generator == nil {
		return Fallback(proxy)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	report, err := s.generator.Generate(ctx, proxy)
	if err != nil {
		if errors.Is(err, ErrMissingCredential) {
			log.Warn("security analysis skipped, using fallback report", "proxy_id", proxy.ID, "error", err)
		} else {
			log.Error("security analysis failed, using fallback report", "proxy_id", proxy.ID, "error", err)
		}
		return Fallback(proxy)
	}

	log.Debug("security analysis completed", "proxy_id", proxy.ID, "risk", report.RiskLevel, "duration", time.Since(start))
	return report
}
