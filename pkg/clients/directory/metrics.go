package directory

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metricsMiddleware struct {
	reqCount    *prometheus.CounterVec
	reqDuration *prometheus.HistogramVec
	client      Client
}

func (m *metricsMiddleware) CommunityExists(ctx context.Context, communityID string) (ok bool, err error) {
	defer func(s time.Time) {
		labels := []string{
			"CommunityExists", strconv.FormatBool(err != nil),
		}
		m.reqCount.WithLabelValues(labels...).Add(1)
		m.reqDuration.WithLabelValues(labels...).Observe(time.Since(s).Seconds())
	}(time.Now())
	return m.client.CommunityExists(ctx, communityID)
}

func (m *metricsMiddleware) UserExists(ctx context.Context, userID string) (ok bool, err error) {
	defer func(s time.Time) {
		labels := []string{
			"UserExists", strconv.FormatBool(err != nil),
		}
		m.reqCount.WithLabelValues(labels...).Add(1)
		m.reqDuration.WithLabelValues(labels...).Observe(time.Since(s).Seconds())
	}(time.Now())
	return m.client.UserExists(ctx, userID)
}

func (m *metricsMiddleware) IsMember(ctx context.Context, communityID, userID string) (ok bool, err error) {
	defer func(s time.Time) {
		labels := []string{
			"IsMember", strconv.FormatBool(err != nil),
		}
		m.reqCount.WithLabelValues(labels...).Add(1)
		m.reqDuration.WithLabelValues(labels...).Observe(time.Since(s).Seconds())
	}(time.Now())
	return m.client.IsMember(ctx, communityID, userID)
}

func NewMetrics(reqCount *prometheus.CounterVec, reqDuration *prometheus.HistogramVec, client Client) Client {
	return &metricsMiddleware{
		reqCount:    reqCount,
		reqDuration: reqDuration,
		client:      client,
	}
}
