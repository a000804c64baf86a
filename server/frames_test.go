package server

import (
	"math"
	"testing"
	"time"

	"github.com/fazildgr8/stretch-ai/types"
	"github.com/fazildgr8/stretch-ai/vision"
)

func TestFastStateFrame(t *testing.T) {
	d := NewStubDriver()
	if err := d.NavigateTo(types.Pose{X: 1.5, Y: -0.5, Theta: 0.3}, false); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	f := fastStateFrame(d.State(), 7, now)

	if f.FrameKind != types.FrameKindFastState {
		t.Errorf("kind = %q", f.FrameKind)
	}
	if f.FrameStep != 7 || f.CapturedAt != now.UnixNano() {
		t.Errorf("stamp = step %d at %d", f.FrameStep, f.CapturedAt)
	}
	if f.BasePose.X != 1.5 || f.BasePose.Y != -0.5 {
		t.Errorf("base pose = %+v", f.BasePose)
	}
	if !f.IsHomed || f.IsRunstopped {
		t.Errorf("flags = homed %v runstopped %v", f.IsHomed, f.IsRunstopped)
	}
	if f.Mode != types.ModeNavigation {
		t.Errorf("mode = %q", f.Mode)
	}
	if len(f.Joints.Positions) != types.JointCount {
		t.Errorf("joint vector length = %d", len(f.Joints.Positions))
	}
}

func TestObservationFrame_FullResolution(t *testing.T) {
	d := NewStubDriver()
	head, err := d.CaptureHead()
	if err != nil {
		t.Fatal(err)
	}

	f, err := observationFrame(d.State(), head, 3, time.Now(), 90)
	if err != nil {
		t.Fatalf("observationFrame: %v", err)
	}

	if f.Width != head.Width || f.Height != head.Height {
		t.Errorf("transmitted size = %dx%d, want full %dx%d", f.Width, f.Height, head.Width, head.Height)
	}
	if f.Intrinsics != head.Intrinsics {
		t.Errorf("intrinsics rescaled for a full-resolution frame: %+v", f.Intrinsics)
	}

	img, err := vision.DecodeColor(f.RGB)
	if err != nil {
		t.Fatalf("decode rgb: %v", err)
	}
	if b := img.Bounds(); b.Dx() != head.Width || b.Dy() != head.Height {
		t.Errorf("decoded rgb = %dx%d", b.Dx(), b.Dy())
	}

	depth, dw, dh, err := vision.DecodeDepth(f.Depth, observationDepthScale)
	if err != nil {
		t.Fatalf("decode depth: %v", err)
	}
	if dw != head.Width || dh != head.Height {
		t.Errorf("decoded depth = %dx%d", dw, dh)
	}
	for i := range depth {
		if diff := math.Abs(float64(depth[i] - head.Depth[i])); diff > 0.0006 {
			t.Fatalf("depth[%d] = %v, want %v within quantization error", i, depth[i], head.Depth[i])
		}
	}
}

func TestServoFrame_RescalesBothCameras(t *testing.T) {
	d := NewStubDriver()
	head, _ := d.CaptureHead()
	ee, _ := d.CaptureEndEffector()
	img := ImageParams{Scaling: 0.5, EEScaling: 0.25, DepthScaling: 0.001, JPEGQuality: 80}

	f, err := servoFrame(d.State(), head, ee, 9, time.Now(), img)
	if err != nil {
		t.Fatalf("servoFrame: %v", err)
	}

	checkBlock := func(name string, block types.CameraBlock, src Capture, scaling float64) {
		t.Helper()
		wantW := int(math.Round(float64(src.Width) * scaling))
		wantH := int(math.Round(float64(src.Height) * scaling))

		decoded, err := vision.DecodeColor(block.Color)
		if err != nil {
			t.Fatalf("%s decode color: %v", name, err)
		}
		if b := decoded.Bounds(); b.Dx() != wantW || b.Dy() != wantH {
			t.Errorf("%s color = %dx%d, want %dx%d", name, b.Dx(), b.Dy(), wantW, wantH)
		}

		_, dw, dh, err := vision.DecodeDepth(block.Depth, block.DepthScaling)
		if err != nil {
			t.Fatalf("%s decode depth: %v", name, err)
		}
		if dw != wantW || dh != wantH {
			t.Errorf("%s depth = %dx%d, want %dx%d", name, dw, dh, wantW, wantH)
		}

		if block.ImageScaling != scaling || block.DepthScaling != img.DepthScaling {
			t.Errorf("%s scalings = %v/%v", name, block.ImageScaling, block.DepthScaling)
		}
		if block.Intrinsics.Fx != src.Intrinsics.Fx*scaling {
			t.Errorf("%s fx = %v, want %v", name, block.Intrinsics.Fx, src.Intrinsics.Fx*scaling)
		}
	}

	checkBlock("head", f.HeadCamera, head, img.Scaling)
	checkBlock("ee", f.EndEffectorCamera, ee, img.EEScaling)

	if len(f.JointPositions) != types.JointCount {
		t.Errorf("joint vector length = %d", len(f.JointPositions))
	}
}

func TestImageParams_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ImageParams)
		ok     bool
	}{
		{"default", func(p *ImageParams) {}, true},
		{"full scale", func(p *ImageParams) { p.Scaling = 1 }, true},
		{"zero scaling", func(p *ImageParams) { p.Scaling = 0 }, false},
		{"upscale", func(p *ImageParams) { p.EEScaling = 1.5 }, false},
		{"zero depth", func(p *ImageParams) { p.DepthScaling = 0 }, false},
		{"quality low", func(p *ImageParams) { p.JPEGQuality = 0 }, false},
		{"quality high", func(p *ImageParams) { p.JPEGQuality = 101 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultImageParams()
			tt.mutate(&p)
			if err := p.validate(); (err == nil) != tt.ok {
				t.Errorf("validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}
