package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"JobsEnqueuedTotal", JobsEnqueuedTotal},
		{"JobsFinishedTotal", JobsFinishedTotal},
		{"QueueDepth", QueueDepth},
		{"JobActive", JobActive},
		{"JobDuration", JobDuration},
		{"TierEncodeDuration", TierEncodeDuration},
		{"ArtifactUploadsTotal", ArtifactUploadsTotal},
		{"RegistrySnapshots", RegistrySnapshots},
		{"HTTPRequestsTotal", HTTPRequestsTotal},
		{"HTTPRequestDuration", HTTPRequestDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestObserveUpload(t *testing.T) {
	okBefore := testutil.ToFloat64(ArtifactUploadsTotal.WithLabelValues("thumbnail", ResultOK))
	errBefore := testutil.ToFloat64(ArtifactUploadsTotal.WithLabelValues("thumbnail", ResultError))

	ObserveUpload("thumbnail", nil)
	ObserveUpload("thumbnail", errors.New("bucket offline"))

	if got := testutil.ToFloat64(ArtifactUploadsTotal.WithLabelValues("thumbnail", ResultOK)); got != okBefore+1 {
		t.Fatalf("ok uploads = %v, want %v", got, okBefore+1)
	}
	if got := testutil.ToFloat64(ArtifactUploadsTotal.WithLabelValues("thumbnail", ResultError)); got != errBefore+1 {
		t.Fatalf("failed uploads = %v, want %v", got, errBefore+1)
	}
}
