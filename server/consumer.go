package server

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/fazildgr8/stretch-ai/log"
	"github.com/fazildgr8/stretch-ai/types"
	"github.com/fazildgr8/stretch-ai/wire"
)

// consumeCommands drains the command channel until shutdown. It is the
// only goroutine that touches actuators, so command application is
// serialized without further locking.
func (s *Server) consumeCommands() {
	defer s.wg.Done()
	logger := s.logger.Named("command")

	// lastApplied tracks the highest applied step per intent class for
	// the staleness rule. Owned by this goroutine.
	lastApplied := make(map[types.Intent]int64)

	for {
		payload, err := s.cmds.Next(s.ctx)
		if err != nil {
			return
		}

		cmd, err := wire.DecodeCommand(s.codec, payload)
		if err != nil {
			if errors.Is(err, wire.ErrUnknownKind) {
				logger.Debug("skipping unknown payload kind", map[string]any{"error": err.Error()})
				continue
			}
			s.collector.IncDecodeError()
			logger.Warn("command decode failed", map[string]any{"error": err.Error()})
			continue
		}

		s.applyCommand(logger, cmd, lastApplied)
	}
}

// applyCommand runs one command through validation, the staleness
// rule, and the mode preconditions, then dispatches it to the driver.
// Every drop path is logged; none of them fail the channel.
func (s *Server) applyCommand(logger *log.Logger, cmd *types.Command, lastApplied map[types.Intent]int64) {
	if err := cmd.Validate(); err != nil {
		s.collector.IncCommandMalformed()
		logger.Warn("dropping malformed command", map[string]any{
			"step": cmd.Step, "error": err.Error(),
		})
		return
	}

	intent := cmd.Intent()
	if last, ok := lastApplied[intent]; ok && cmd.Step <= last {
		s.collector.IncCommandStale()
		logger.Debug("discarding superseded command", map[string]any{
			"intent": string(intent), "step": cmd.Step, "last_applied": last,
		})
		return
	}

	if err := s.checkPreconditions(intent); err != nil {
		s.collector.IncCommandRejected()
		logger.Warn("rejecting command", map[string]any{
			"intent": string(intent), "step": cmd.Step, "error": err.Error(),
		})
		return
	}

	if err := s.dispatch(cmd, intent); err != nil {
		logger.Error("command failed", map[string]any{
			"intent": string(intent), "step": cmd.Step, "error": err.Error(),
		})
		return
	}

	lastApplied[intent] = cmd.Step
	s.advanceStep(cmd.Step)
	s.collector.IncCommandApplied()
	logger.Debug("applied command", map[string]any{
		"intent": string(intent), "step": cmd.Step,
	})
}

// checkPreconditions enforces mode-appropriate commands: motion
// targets are only honored in the mode that owns the actuator, and
// map commands need a configured store. Mode switches, postures, and
// speech pass in any mode.
func (s *Server) checkPreconditions(intent types.Intent) error {
	switch intent {
	case types.IntentNavigation, types.IntentVelocity:
		if mode := s.driver.State().Mode; mode != types.ModeNavigation {
			return fmt.Errorf("%s command requires navigation mode, robot is in %s", intent, mode)
		}
	case types.IntentManipulation:
		if mode := s.driver.State().Mode; mode != types.ModeManipulation {
			return fmt.Errorf("manipulation command requires manipulation mode, robot is in %s", mode)
		}
	case types.IntentSaveMap, types.IntentLoadMap:
		if s.maps == nil {
			return errors.New("map persistence is not configured")
		}
	}
	return nil
}

func (s *Server) dispatch(cmd *types.Command, intent types.Intent) error {
	switch intent {
	case types.IntentPosture:
		return s.applyPosture(*cmd.Posture)
	case types.IntentControlMode:
		return s.driver.SetMode(*cmd.ControlMode)
	case types.IntentSaveMap:
		return s.saveMap(*cmd.SaveMap)
	case types.IntentLoadMap:
		return s.loadMap(*cmd.LoadMap)
	case types.IntentSay:
		return s.driver.Say(*cmd.Say)
	case types.IntentNavigation:
		return s.driver.NavigateTo(cmd.NavGoal.Pose, cmd.NavGoal.Relative)
	case types.IntentVelocity:
		return s.driver.SetVelocity(cmd.Velocity.V, cmd.Velocity.W)
	case types.IntentManipulation:
		return s.applyManipulation(cmd)
	}
	return fmt.Errorf("unhandled intent %q", intent)
}

// applyPosture runs the posture sequence: park in busy, move the body,
// then land in the mode matching the posture.
func (s *Server) applyPosture(posture string) error {
	prev := s.driver.State().Mode
	if err := s.driver.SetMode(types.ModeBusy); err != nil {
		return fmt.Errorf("enter busy mode: %w", err)
	}
	if err := s.driver.MoveToPosture(posture); err != nil {
		// Recover the previous mode rather than leaving the robot
		// parked in busy.
		if restoreErr := s.driver.SetMode(prev); restoreErr != nil {
			err = multierr.Append(err, restoreErr)
		}
		return fmt.Errorf("move to posture %s: %w", posture, err)
	}

	target := types.ModeNavigation
	if posture == types.PostureManipulation {
		target = types.ModeManipulation
	}
	if err := s.driver.SetMode(target); err != nil {
		return fmt.Errorf("leave busy mode: %w", err)
	}
	return nil
}

// applyManipulation applies whichever manipulation fields the command
// carries. They form one intent class and travel together.
func (s *Server) applyManipulation(cmd *types.Command) error {
	if cmd.Joint != nil {
		if err := s.driver.ArmTo(cmd.Joint); err != nil {
			return fmt.Errorf("arm target: %w", err)
		}
	}
	if cmd.Gripper != nil {
		if err := s.driver.Gripper(*cmd.Gripper); err != nil {
			return fmt.Errorf("gripper target: %w", err)
		}
	}
	if cmd.Head != nil {
		if err := s.driver.HeadTo(cmd.Head.Pan, cmd.Head.Tilt); err != nil {
			return fmt.Errorf("head target: %w", err)
		}
	}
	return nil
}

func (s *Server) saveMap(name string) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.MapTimeout)
	defer cancel()

	data, err := s.driver.SerializeMap(ctx)
	if err != nil {
		return fmt.Errorf("serialize map: %w", err)
	}
	if err := s.maps.Save(ctx, name, data); err != nil {
		return err
	}
	s.logger.Info("map saved", map[string]any{"name": name, "bytes": len(data)})
	return nil
}

func (s *Server) loadMap(name string) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.MapTimeout)
	defer cancel()

	data, err := s.maps.Load(ctx, name)
	if err != nil {
		return err
	}
	if err := s.driver.RestoreMap(ctx, data); err != nil {
		return fmt.Errorf("restore map: %w", err)
	}
	s.logger.Info("map loaded", map[string]any{"name": name, "bytes": len(data)})
	return nil
}
