package observability_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/deprebuddy/internal/logging"
	"github.com/aretw0/deprebuddy/pkg/domain"
	"github.com/aretw0/deprebuddy/pkg/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Hooks(t *testing.T) {
	m := observability.NewMetrics()
	hooks := m.Hooks(logging.NewNop())
	ctx := context.Background()

	hooks.OnStageEnter(ctx, &domain.StageEvent{From: domain.StageTriage, To: domain.StageAssessment})
	hooks.OnStageEnter(ctx, &domain.StageEvent{From: domain.StageAssessment, To: domain.StageAssessment})
	hooks.OnCrisis(ctx, &domain.StageEvent{From: domain.StageAssessment, To: domain.StageResource})
	hooks.OnAssessmentComplete(ctx, &domain.AssessmentEvent{TotalScore: 12, Category: domain.CategoryModerate})
	hooks.OnDispatch(ctx, &domain.DispatchEvent{Stage: domain.StageResource, Attempts: 2, Duration: time.Second})
	hooks.OnDispatch(ctx, &domain.DispatchEvent{Stage: domain.StageResource, Attempts: 5, Err: errors.New("exhausted")})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StageEntries.WithLabelValues("assessment")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Crises))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Assessments.WithLabelValues("moderate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatches.WithLabelValues("resource", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatches.WithLabelValues("resource", "error")))
}

func TestMetrics_Handler(t *testing.T) {
	m := observability.NewMetrics()
	m.Crises.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "deprebuddy_crisis_total 1")
}

func TestNilMetrics_OnlyLogs(t *testing.T) {
	var m *observability.Metrics
	hooks := m.Hooks(logging.NewNop())
	assert.NotPanics(t, func() {
		hooks.OnCrisis(context.Background(), &domain.StageEvent{})
	})
}
