package aac

import (
	"errors"
	"log/slog"
	"testing"
)

type fakeTransform struct {
	initialized bool
	sampleRate  int
	channels    int

	inputs        [][]int16
	pendingOutput bool
	outputSeq     int

	rejectOnceAt int // ProcessInput call index (1-based) to reject once
	inputCalls   int
	drainCalls   int
	closeCalls   int

	processInputErr error
}

func (f *fakeTransform) Initialize(sampleRate, channels, bitrateBps int) error {
	f.initialized = true
	f.sampleRate = sampleRate
	f.channels = channels
	return nil
}

func (f *fakeTransform) ProcessInput(pcm []int16, ts int64) (InputStatus, error) {
	f.inputCalls++
	if f.processInputErr != nil {
		return 0, f.processInputErr
	}
	if f.rejectOnceAt != 0 && f.inputCalls == f.rejectOnceAt {
		return InputNotAccepting, nil
	}
	cp := append([]int16(nil), pcm...)
	f.inputs = append(f.inputs, cp)
	f.pendingOutput = true
	return InputAccepted, nil
}

func (f *fakeTransform) ProcessOutput() ([]byte, OutputStatus, error) {
	if !f.pendingOutput {
		return nil, OutputNeedMoreInput, nil
	}
	f.pendingOutput = false
	f.outputSeq++
	return []byte{byte(f.outputSeq)}, OutputReady, nil
}

func (f *fakeTransform) Drain() error {
	f.drainCalls++
	return nil
}

func (f *fakeTransform) Close() error {
	f.closeCalls++
	return nil
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, nil))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestWriteProducesOneUnitPerFullFrame(t *testing.T) {
	ft := &fakeTransform{}
	e := New(silentLogger(), ft)

	samples := make([]float32, samplesPerFrame*2) // stereo, exactly one frame
	units, err := e.Write(samples, 48000, 2)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("got %d units, want 1", len(units))
	}
	if units[0].Duration != samplesPerFrame {
		t.Fatalf("duration = %d, want %d", units[0].Duration, samplesPerFrame)
	}
	if e.SampleRate() != 48000 || e.Channels() != 2 {
		t.Fatalf("format = %d/%d, want 48000/2", e.SampleRate(), e.Channels())
	}
	if len(e.ASC()) != 2 {
		t.Fatalf("ASC length = %d, want 2", len(e.ASC()))
	}
}

func TestWriteBuffersPartialFrame(t *testing.T) {
	ft := &fakeTransform{}
	e := New(silentLogger(), ft)

	half := make([]float32, samplesPerFrame/2) // mono, half a frame
	units, err := e.Write(half, 48000, 1)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(units) != 0 {
		t.Fatalf("partial frame should not produce a unit yet, got %d", len(units))
	}

	units, err = e.Write(half, 48000, 1)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("completed frame should produce exactly 1 unit, got %d", len(units))
	}
}

func TestWriteRejectsFormatMismatch(t *testing.T) {
	ft := &fakeTransform{}
	e := New(silentLogger(), ft)

	if _, err := e.Write(make([]float32, samplesPerFrame*2), 48000, 2); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	if _, err := e.Write(make([]float32, samplesPerFrame), 44100, 1); err == nil {
		t.Fatalf("want error when sample rate/channels change mid-stream")
	}
}

func TestWriteEmptyInputIsNoop(t *testing.T) {
	ft := &fakeTransform{}
	e := New(silentLogger(), ft)
	units, err := e.Write(nil, 48000, 2)
	if err != nil || units != nil {
		t.Fatalf("Write(nil) = %v, %v, want nil, nil", units, err)
	}
	if ft.initialized {
		t.Fatalf("empty write should not trigger lazy init")
	}
}

func TestPcmClamping(t *testing.T) {
	ft := &fakeTransform{}
	e := New(silentLogger(), ft)
	samples := make([]float32, samplesPerFrame)
	samples[0] = 2.0  // above +1, must clamp
	samples[1] = -2.0 // below -1, must clamp
	if _, err := e.Write(samples, 48000, 1); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(ft.inputs) == 0 {
		t.Fatalf("expected at least one pushed frame")
	}
	if ft.inputs[0][0] != 32767 {
		t.Fatalf("clamped +1 sample = %d, want 32767", ft.inputs[0][0])
	}
	if ft.inputs[0][1] != -32767 {
		t.Fatalf("clamped -1 sample = %d, want -32767", ft.inputs[0][1])
	}
}

func TestFinalizeZeroPadsResidualFrame(t *testing.T) {
	ft := &fakeTransform{}
	e := New(silentLogger(), ft)

	half := make([]float32, samplesPerFrame/2)
	if _, err := e.Write(half, 48000, 1); err != nil {
		t.Fatalf("Write: %v", err)
	}
	units, err := e.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("Finalize should flush the padded residual frame, got %d units", len(units))
	}
	if ft.drainCalls != 1 {
		t.Fatalf("Drain calls = %d, want 1", ft.drainCalls)
	}
	lastFrame := ft.inputs[len(ft.inputs)-1]
	if len(lastFrame) != samplesPerFrame {
		t.Fatalf("padded frame length = %d, want %d", len(lastFrame), samplesPerFrame)
	}
	for i := samplesPerFrame / 2; i < samplesPerFrame; i++ {
		if lastFrame[i] != 0 {
			t.Fatalf("residual padding not zero at index %d", i)
		}
	}
}

func TestFinalizeIsIdempotent(t *testing.T) {
	ft := &fakeTransform{}
	e := New(silentLogger(), ft)
	e.Write(make([]float32, samplesPerFrame), 48000, 1)

	if _, err := e.Finalize(); err != nil {
		t.Fatalf("first Finalize: %v", err)
	}
	drainsAfterFirst := ft.drainCalls

	if _, err := e.Finalize(); err != nil {
		t.Fatalf("second Finalize should be a no-op, not an error: %v", err)
	}
	if ft.drainCalls != drainsAfterFirst {
		t.Fatalf("second Finalize should not touch the transform again")
	}
}

func TestFinalizeOnNeverWrittenEncoderIsNoop(t *testing.T) {
	ft := &fakeTransform{}
	e := New(silentLogger(), ft)
	units, err := e.Finalize()
	if err != nil || units != nil {
		t.Fatalf("Finalize on an uninitialized encoder = %v, %v, want nil, nil", units, err)
	}
}

func TestNotAcceptingTriggersDrainAndRetry(t *testing.T) {
	ft := &fakeTransform{rejectOnceAt: 1}
	e := New(silentLogger(), ft)

	units, err := e.Write(make([]float32, samplesPerFrame), 48000, 1)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("want 1 unit after the retried push, got %d", len(units))
	}
	if ft.inputCalls != 2 {
		t.Fatalf("ProcessInput calls = %d, want 2 (reject then retry)", ft.inputCalls)
	}
}

func TestProcessInputErrorFailsEncoder(t *testing.T) {
	ft := &fakeTransform{processInputErr: errors.New("transform died")}
	e := New(silentLogger(), ft)
	if _, err := e.Write(make([]float32, samplesPerFrame), 48000, 1); err == nil {
		t.Fatalf("want error when ProcessInput fails")
	}
	if e.LastError() == nil {
		t.Fatalf("LastError should be set after a failure")
	}
}

func TestCloseIsNoopWhenNeverInitialized(t *testing.T) {
	ft := &fakeTransform{}
	e := New(silentLogger(), ft)
	if err := e.Close(); err != nil {
		t.Fatalf("Close on uninitialized encoder: %v", err)
	}
	if ft.closeCalls != 0 {
		t.Fatalf("transform Close should not be called when never initialized")
	}
}
