package codec

import (
	"sync"
)

// probeSerialLock serializes the native test calls of backends whose drivers
// are not safe for concurrent invocation (NVENC and the software fallback's
// shared D3D download path). All other probes run fully concurrently.
var probeSerialLock sync.Mutex

type probeTask struct {
	kind      BackendKind
	candidate probeCandidate
}

// Discover probes every backend/format combination this build is plausibly
// capable of and returns the feature contexts that passed a live hardware
// test with the given baseline parameters. Order is not significant; the
// result is a set of usable options.
//
// Discover never fails: a machine with no working backend yields an empty
// list. Individual probe failures (errors, panics, descriptor overflows) are
// dropped silently.
func Discover(baseline DynamicContext) []FeatureContext {
	var tasks []probeTask
	for _, kind := range hardwareBackends {
		table := lookupTable(kind)
		if table == nil {
			continue
		}
		for _, cand := range table.Candidates() {
			tasks = append(tasks, probeTask{kind: kind, candidate: cand})
		}
	}
	result := runProbes(tasks, baseline, nil)

	// The fallback is only tested against adapters a hardware backend
	// already validated for the same format: it exists to cover those
	// adapters, not to re-survey the machine.
	software := lookupTable(BackendSoftware)
	if software == nil {
		return result
	}
	softwareCandidates := software.Candidates()
	for _, format := range formats {
		var luids []int64
		for _, feature := range result {
			if feature.Format == format {
				luids = append(luids, feature.LUID)
			}
		}
		var fallbackTasks []probeTask
		for _, cand := range softwareCandidates {
			if cand.Format == format {
				fallbackTasks = append(fallbackTasks, probeTask{kind: BackendSoftware, candidate: cand})
			}
		}
		result = append(result, runProbes(fallbackTasks, baseline, luids)...)
	}
	return result
}

// runProbes executes one probe goroutine per task and joins them all. Results
// are appended under the collector lock; a task that fails or panics simply
// contributes nothing.
func runProbes(tasks []probeTask, baseline DynamicContext, luidFilter []int64) []FeatureContext {
	var (
		mu      sync.Mutex
		out     []FeatureContext
		wg      sync.WaitGroup
		filter  = luidFilter
		dynamic = baseline
	)
	for _, task := range tasks {
		task := task
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Warnf("probe panic backend=%s format=%s: %v",
						task.kind, task.candidate.Format, r)
				}
			}()
			table := lookupTable(task.kind)
			if table == nil {
				return
			}
			if table.SerializedProbe() {
				probeSerialLock.Lock()
				defer probeSerialLock.Unlock()
			}
			descs := make([]AdapterDesc, maxAdapters)
			count, status := table.Test(descs, filter, encodeParams{
				Device:    dynamic.Device,
				LUID:      dynamic.LUIDHint,
				API:       task.candidate.API,
				Format:    task.candidate.Format,
				Width:     dynamic.Width,
				Height:    dynamic.Height,
				KBitrate:  dynamic.KBitrate,
				Framerate: dynamic.Framerate,
				GOP:       dynamic.GOP,
			})
			if status != 0 {
				logger.Debugf("probe rejected backend=%s format=%s status=%d",
					task.kind, task.candidate.Format, status)
				return
			}
			if count < 0 || int(count) > len(descs) {
				// A backend that cannot report within the buffer
				// bound is not trusted at all.
				logger.Warnf("probe overflow backend=%s format=%s count=%d",
					task.kind, task.candidate.Format, count)
				return
			}
			mu.Lock()
			for i := int32(0); i < count; i++ {
				out = append(out, FeatureContext{
					Backend: task.kind,
					API:     task.candidate.API,
					Format:  task.candidate.Format,
					LUID:    descs[i].LUID,
				})
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}
