// Package benchmark provides performance benchmarks for icetab.
package benchmark

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/icetab/icetab/internal/icephys"
	"github.com/icetab/icetab/internal/store"
	"github.com/icetab/icetab/pkg/types"
)

// buildExperiment assembles an experiment with the given number of
// recordings, grouped two per simultaneous recording.
func buildExperiment(b *testing.B, numRecordings int) *icephys.Experiment {
	b.Helper()

	exp := icephys.NewExperiment()

	el := types.NewElectrode("el0", "patch electrode", "amp-1")
	if err := exp.AddElectrode(el); err != nil {
		b.Fatal(err)
	}
	stim := types.NewTimeSeries("stim0", "V", types.ClampModeVoltage,
		make([]float64, 256), 10000)
	resp := types.NewTimeSeries("resp0", "A", types.ClampModeVoltage,
		make([]float64, 256), 10000)
	if err := exp.AddStimulus(stim); err != nil {
		b.Fatal(err)
	}
	if err := exp.AddAcquisition(resp); err != nil {
		b.Fatal(err)
	}

	var sims []int
	for i := 0; i < numRecordings; i += 2 {
		var recs []int
		for j := i; j < i+2 && j < numRecordings; j++ {
			pos, err := exp.AddIntracellularRecording(icephys.Recording{
				Electrode: el,
				Stimulus:  stim,
				Response:  resp,
			})
			if err != nil {
				b.Fatal(err)
			}
			recs = append(recs, pos)
		}
		sim, err := exp.AddSimultaneousRecording(icephys.SimultaneousRecording{Recordings: recs})
		if err != nil {
			b.Fatal(err)
		}
		sims = append(sims, sim)
	}

	seq, err := exp.AddSequentialRecording(icephys.SequentialRecording{SimultaneousRecordings: sims})
	if err != nil {
		b.Fatal(err)
	}
	rep, err := exp.AddRepetition(icephys.Repetition{SequentialRecordings: []int{seq}})
	if err != nil {
		b.Fatal(err)
	}
	if _, err := exp.AddExperimentalCondition(icephys.ExperimentalCondition{Repetitions: []int{rep}}); err != nil {
		b.Fatal(err)
	}
	return exp
}

// BenchmarkAddRecording measures recording insertion throughput.
func BenchmarkAddRecording(b *testing.B) {
	exp := icephys.NewExperiment()
	el := types.NewElectrode("el0", "", "amp-1")
	if err := exp.AddElectrode(el); err != nil {
		b.Fatal(err)
	}
	stim := types.NewTimeSeries("stim0", "V", types.ClampModeVoltage,
		make([]float64, 256), 10000)
	resp := types.NewTimeSeries("resp0", "A", types.ClampModeVoltage,
		make([]float64, 256), 10000)
	if err := exp.AddStimulus(stim); err != nil {
		b.Fatal(err)
	}
	if err := exp.AddAcquisition(resp); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, err := exp.AddIntracellularRecording(icephys.Recording{
			Electrode: el,
			Stimulus:  stim,
			Response:  resp,
		})
		if err != nil {
			b.Fatal(err)
		}
	}
	b.ReportMetric(float64(b.N)/b.Elapsed().Seconds(), "recordings/sec")
}

// BenchmarkFlatten measures hierarchical flatten performance across
// experiment sizes.
func BenchmarkFlatten(b *testing.B) {
	for _, size := range []int{16, 128, 1024} {
		b.Run(fmt.Sprintf("recordings_%d", size), func(b *testing.B) {
			exp := buildExperiment(b, size)
			conditions := exp.ExperimentalConditions()

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				f, err := conditions.ToDenormalizedFrame(false)
				if err != nil {
					b.Fatal(err)
				}
				if f.NumRows() != size {
					b.Fatalf("expected %d rows, got %d", size, f.NumRows())
				}
			}
		})
	}
}

// BenchmarkSnapshotWrite measures snapshot persistence throughput.
func BenchmarkSnapshotWrite(b *testing.B) {
	tmpDir, err := os.MkdirTemp("", "icetab-bench-*")
	if err != nil {
		b.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	exp := buildExperiment(b, 128)
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		path := filepath.Join(tmpDir, fmt.Sprintf("snap-%d.db", i))
		if err := store.Write(ctx, path, exp); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSnapshotRead measures snapshot load throughput.
func BenchmarkSnapshotRead(b *testing.B) {
	tmpDir, err := os.MkdirTemp("", "icetab-bench-*")
	if err != nil {
		b.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	exp := buildExperiment(b, 128)
	ctx := context.Background()
	path := filepath.Join(tmpDir, "snap.db")
	if err := store.Write(ctx, path, exp); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		loaded, err := store.Read(ctx, path)
		if err != nil {
			b.Fatal(err)
		}
		if loaded.Recordings().Len() != 128 {
			b.Fatalf("expected 128 recordings, got %d", loaded.Recordings().Len())
		}
	}
}
