// ABOUTME: Audio sink tests
// ABOUTME: Verifies the oto sink contract without opening a device
package output

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Sendspin/sendspin-player/pkg/audio"
	"github.com/Sendspin/sendspin-player/pkg/audio/resample"
)

func TestOtoImplementsVolumeSink(t *testing.T) {
	var _ VolumeSink = (*Oto)(nil)
}

func TestOtoWriteBeforeStart(t *testing.T) {
	o := NewOto()

	if o.IsStarted() {
		t.Fatal("new sink should not be started")
	}
	if _, err := o.Write([]byte{0, 0, 0, 0}); !errors.Is(err, ErrNotStarted) {
		t.Errorf("expected ErrNotStarted, got %v", err)
	}
	if err := o.FlushSilence(10); !errors.Is(err, ErrNotStarted) {
		t.Errorf("expected ErrNotStarted, got %v", err)
	}
}

func TestOtoStopWhenStopped(t *testing.T) {
	o := NewOto()
	if err := o.Stop(); err != nil {
		t.Errorf("stop on stopped sink: %v", err)
	}
	if err := o.Stop(); err != nil {
		t.Errorf("second stop: %v", err)
	}
}

func TestOtoStartRejectsBadFormat(t *testing.T) {
	o := NewOto()

	if err := o.Start(48000, 2, 32); err == nil {
		t.Error("expected error for 32-bit")
	}
	if err := o.Start(48000, 6, 16); err == nil {
		t.Error("expected error for 6 channels")
	}
	if o.IsStarted() {
		t.Error("sink should stay stopped after rejected start")
	}
}

func TestOtoVolumeClamp(t *testing.T) {
	o := NewOto()

	o.SetVolume(150)
	if o.volume != 100 {
		t.Errorf("expected volume 100, got %d", o.volume)
	}
	o.SetVolume(-5)
	if o.volume != 0 {
		t.Errorf("expected volume 0, got %d", o.volume)
	}
}

func TestGainFor(t *testing.T) {
	tests := []struct {
		volume int
		muted  bool
		want   float64
	}{
		{100, false, 1.0},
		{50, false, 0.5},
		{0, false, 0.0},
		{100, true, 0.0},
	}

	for _, tt := range tests {
		if got := gainFor(tt.volume, tt.muted); got != tt.want {
			t.Errorf("gainFor(%d, %v) = %v, want %v", tt.volume, tt.muted, got, tt.want)
		}
	}
}

func TestPrepare16(t *testing.T) {
	in := []byte{0x00, 0x10, 0x00, 0xF0} // 4096, -4096
	out := prepare(in, 16, 0.5)

	want := []byte{0x00, 0x08, 0x00, 0xF8} // 2048, -2048
	if !bytes.Equal(out, want) {
		t.Errorf("expected %v, got %v", want, out)
	}
	if in[1] != 0x10 {
		t.Error("prepare modified its input")
	}
}

func TestPrepare24(t *testing.T) {
	in := []byte{0xAA, 0x34, 0x12, 0xBB, 0xCD, 0xAB}
	out := prepare(in, 24, 1.0)

	want := []byte{0x34, 0x12, 0xCD, 0xAB}
	if !bytes.Equal(out, want) {
		t.Errorf("expected %v, got %v", want, out)
	}
}

func TestConvertToDeviceFormat(t *testing.T) {
	in := audio.Format{Codec: "pcm", SampleRate: 24000, Channels: 1, BitDepth: 16}
	device := audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16}
	rs := resample.New(in.SampleRate, device.SampleRate, device.Channels)

	// Mono 0, 100 upmixed to stereo then doubled in rate
	out := convert(audio.Int16ToPCM([]int16{0, 100}), in, device, rs, 1.0)

	want := audio.Int16ToPCM([]int16{0, 0, 50, 50})
	if !bytes.Equal(out, want) {
		t.Errorf("expected %v, got %v", want, out)
	}
}

func TestConvertSameFormatIsPrepareOnly(t *testing.T) {
	f := audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16}
	in := audio.Int16ToPCM([]int16{1000, -1000})

	out := convert(in, f, f, nil, 0.5)
	if !bytes.Equal(out, audio.Int16ToPCM([]int16{500, -500})) {
		t.Errorf("unexpected output %v", out)
	}
}
