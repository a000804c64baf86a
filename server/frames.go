package server

import (
	"fmt"
	"time"

	"github.com/fazildgr8/stretch-ai/types"
	"github.com/fazildgr8/stretch-ai/vision"
)

// observationDepthScale fixes full-observation depth at millimeters.
// Servo frames carry their depth scale explicitly per camera block;
// full observations do not, so the unit is part of the wire contract.
const observationDepthScale = 0.001

// ImageParams controls the imagery transforms applied before
// publication.
type ImageParams struct {
	// Scaling is the head camera resize factor for servo frames.
	Scaling float64
	// EEScaling is the wrist camera resize factor for servo frames.
	EEScaling float64
	// DepthScaling is meters per transmitted depth unit.
	DepthScaling float64
	// JPEGQuality is the color compression quality (1-100).
	JPEGQuality int
}

// DefaultImageParams returns the stock servo-frame transform: half
// resolution on both cameras, millimeter depth, quality 90 JPEG.
func DefaultImageParams() ImageParams {
	return ImageParams{Scaling: 0.5, EEScaling: 0.5, DepthScaling: 0.001, JPEGQuality: 90}
}

func (p ImageParams) validate() error {
	if p.Scaling <= 0 || p.Scaling > 1 {
		return fmt.Errorf("image scaling must be in (0, 1], got %v", p.Scaling)
	}
	if p.EEScaling <= 0 || p.EEScaling > 1 {
		return fmt.Errorf("ee image scaling must be in (0, 1], got %v", p.EEScaling)
	}
	if p.DepthScaling <= 0 {
		return fmt.Errorf("depth scaling must be positive, got %v", p.DepthScaling)
	}
	if p.JPEGQuality < 1 || p.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality must be in [1, 100], got %d", p.JPEGQuality)
	}
	return nil
}

// fastStateFrame snapshots the driver state into the high-rate frame.
func fastStateFrame(st DriverState, step int64, now time.Time) *types.FastState {
	return &types.FastState{
		FrameKind:        types.FrameKindFastState,
		FrameStep:        step,
		CapturedAt:       now.UnixNano(),
		BasePose:         st.BasePose,
		EndEffector:      st.EndEffector,
		Joints:           st.Joints,
		Mode:             st.Mode,
		AtGoal:           st.AtGoal,
		IsHomed:          st.IsHomed,
		IsRunstopped:     st.IsRunstopped,
		LastMotionFailed: st.LastMotionFailed,
	}
}

// observationFrame builds the full-resolution observation: the head
// capture compressed as-is, with the state fields riding along.
func observationFrame(st DriverState, head Capture, step int64, now time.Time, quality int) (*types.FullObservation, error) {
	rgb, err := vision.EncodeColor(head.Color, quality)
	if err != nil {
		return nil, err
	}
	depth, err := vision.EncodeDepth(head.Depth, head.Width, head.Height, observationDepthScale)
	if err != nil {
		return nil, err
	}

	return &types.FullObservation{
		FrameKind:        types.FrameKindFullObservation,
		FrameStep:        step,
		CapturedAt:       now.UnixNano(),
		RGB:              rgb,
		Depth:            depth,
		Width:            head.Width,
		Height:           head.Height,
		Intrinsics:       head.Intrinsics,
		CameraPose:       head.Pose,
		EndEffector:      st.EndEffector,
		JointPositions:   st.Joints.Positions,
		GPS:              st.GPS,
		Compass:          st.Compass,
		Mode:             st.Mode,
		AtGoal:           st.AtGoal,
		LastMotionFailed: st.LastMotionFailed,
	}, nil
}

// servoFrame builds the dual-camera servo frame with both captures
// downscaled per the image params.
func servoFrame(st DriverState, head, ee Capture, step int64, now time.Time, img ImageParams) (*types.ServoFrame, error) {
	headBlock, err := cameraBlock(head, img.Scaling, img)
	if err != nil {
		return nil, fmt.Errorf("head camera: %w", err)
	}
	eeBlock, err := cameraBlock(ee, img.EEScaling, img)
	if err != nil {
		return nil, fmt.Errorf("ee camera: %w", err)
	}

	return &types.ServoFrame{
		FrameKind:         types.FrameKindServo,
		FrameStep:         step,
		CapturedAt:        now.UnixNano(),
		EndEffectorCamera: eeBlock,
		HeadCamera:        headBlock,
		JointPositions:    st.Joints.Positions,
	}, nil
}

// cameraBlock downscales and compresses one capture. The intrinsics
// are rescaled by the same factor so consumers can back-project at the
// transmitted resolution.
func cameraBlock(c Capture, scaling float64, img ImageParams) (types.CameraBlock, error) {
	colorJPEG, err := vision.EncodeColor(vision.ScaleColor(c.Color, scaling), img.JPEGQuality)
	if err != nil {
		return types.CameraBlock{}, err
	}
	depth, dw, dh := vision.ScaleDepth(c.Depth, c.Width, c.Height, scaling)
	depthPNG, err := vision.EncodeDepth(depth, dw, dh, img.DepthScaling)
	if err != nil {
		return types.CameraBlock{}, err
	}

	return types.CameraBlock{
		Color:        colorJPEG,
		Depth:        depthPNG,
		Intrinsics:   c.Intrinsics.Scaled(scaling),
		ImageScaling: scaling,
		DepthScaling: img.DepthScaling,
		Pose:         c.Pose,
	}, nil
}
