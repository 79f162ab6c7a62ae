package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pxelab/bootprobe/pkg/probe"
)

func resultWith(stage string, status probe.Status) probe.Result {
	return probe.Result{Probe: "p", Stage: stage, Status: status}
}

func TestStageStatusOf(t *testing.T) {
	tests := []struct {
		name    string
		results []probe.Result
		want    StageStatus
	}{
		{
			"all ok",
			[]probe.Result{resultWith("cpu", probe.StatusOK), resultWith("cpu", probe.StatusOK)},
			StageCompleted,
		},
		{
			"one failed",
			[]probe.Result{resultWith("cpu", probe.StatusOK), resultWith("cpu", probe.StatusFailed)},
			StagePartial,
		},
		{
			"one timeout",
			[]probe.Result{resultWith("cpu", probe.StatusTimeout)},
			StagePartial,
		},
		{
			"all skipped",
			[]probe.Result{resultWith("cpu", probe.StatusSkipped), resultWith("cpu", probe.StatusSkipped)},
			StageSkipped,
		},
		{
			"no probes",
			nil,
			StageSkipped,
		},
		{
			"mixed skip and ok",
			[]probe.Result{resultWith("cpu", probe.StatusSkipped), resultWith("cpu", probe.StatusOK)},
			StagePartial,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Run{Results: tt.results}
			assert.Equal(t, tt.want, r.StageStatusOf("cpu"))
		})
	}
}

func TestSealIsIdempotent(t *testing.T) {
	r := &Run{}
	r.Seal()
	d := r.Duration
	r.Seal()
	assert.Equal(t, d, r.Duration)
	assert.True(t, r.Sealed())
}

func TestAppendToSealedRunPanics(t *testing.T) {
	r := &Run{}
	r.Seal()
	assert.Panics(t, func() {
		r.Append(probe.Result{Probe: "late"})
	})
}

func TestStageStatusesCoverDeclaredStages(t *testing.T) {
	r := &Run{
		StageOrder: []string{"hardware", "network"},
		Results:    []probe.Result{resultWith("hardware", probe.StatusOK)},
	}
	statuses := r.StageStatuses()
	assert.Equal(t, StageCompleted, statuses["hardware"])
	assert.Equal(t, StageSkipped, statuses["network"])
	assert.Len(t, statuses, 2)
}
