package flow

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"traffic-probe-service/internal/domain"
	"traffic-probe-service/internal/platform/metrics"
)

// buildURLs returns the full request URL and its key-redacted twin. Only the
// redacted form may reach logs, errors or provenance.
func (p *TomTomProvider) buildURLs(point domain.Coordinate) (full string, redacted string) {
	q := url.Values{}
	q.Set("point", point.PointParam())
	q.Set("unit", p.unit)
	q.Set("openLr", "false")
	redacted = p.baseURL + "?" + q.Encode()

	q.Set("key", p.apiKey)
	full = p.baseURL + "?" + q.Encode()
	return full, redacted
}

// call performs one flow API request and returns the raw body, response
// headers and the key-redacted URL. A non-200 status is an UpstreamError;
// only successful calls count against the hourly quota.
func (p *TomTomProvider) call(ctx context.Context, point domain.Coordinate) ([]byte, http.Header, string, error) {
	fullURL, redactedURL := p.buildURLs(point)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, nil, redactedURL, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := p.session.Do(req)
	elapsed := time.Since(start)
	metrics.UpstreamCallDurationSeconds.Observe(elapsed.Seconds())

	if err != nil {
		metrics.UpstreamCallsTotal.WithLabelValues(ServiceName, "error").Inc()
		log.Printf("service=%s status=error endpoint=%s dur=%dms err=%v",
			ServiceName, redactedURL, elapsed.Milliseconds(), err)
		return nil, nil, redactedURL, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	metrics.UpstreamCallsTotal.WithLabelValues(ServiceName, fmt.Sprintf("%d", resp.StatusCode)).Inc()
	log.Printf("service=%s status=%d endpoint=%s dur=%dms",
		ServiceName, resp.StatusCode, redactedURL, elapsed.Milliseconds())

	if resp.StatusCode != http.StatusOK {
		return nil, nil, redactedURL, &domain.UpstreamError{
			Service:    ServiceName,
			StatusCode: resp.StatusCode,
			Endpoint:   redactedURL,
		}
	}

	p.recordCall()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, redactedURL, fmt.Errorf("read response body: %w", err)
	}
	return body, resp.Header, redactedURL, nil
}

// recordCall tracks quota usage and warns when the hourly budget runs low.
func (p *TomTomProvider) recordCall() {
	p.limiter.RecordCall(ServiceName)

	status := p.limiter.QuotaStatus(ServiceName, p.quotaPerHour)
	metrics.QuotaPercentUsed.WithLabelValues(ServiceName).Set(status.PercentUsed)
	if status.PercentUsed >= quotaAlertPercent {
		log.Printf("service=%s quota_alert calls_this_hour=%d quota_per_hour=%d percent_used=%.1f",
			ServiceName, status.CallsThisHour, status.QuotaPerHour, status.PercentUsed)
	}
}
