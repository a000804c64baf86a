package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/fazildgr8/stretch-ai/adapter/webhook"
	"github.com/fazildgr8/stretch-ai/cli/render"
	"github.com/fazildgr8/stretch-ai/config"
	"github.com/fazildgr8/stretch-ai/log"
	"github.com/fazildgr8/stretch-ai/motion"
	"github.com/fazildgr8/stretch-ai/perception"
	"github.com/fazildgr8/stretch-ai/task"
	"github.com/fazildgr8/stretch-ai/types"
)

// Exit codes for task run. Scripts branch on these, so they are part
// of the command's interface:
//
//	0 = task succeeded
//	1 = task failed (a step exhausted its retry policy)
//	2 = fatal robot condition (run-stop, homing, invalid mode)
//	3 = canceled (signal or timeout)
const (
	exitTaskSuccess  = 0
	exitTaskFailed   = 1
	exitTaskFatal    = 2
	exitTaskCanceled = 3
)

// outcomeToExitCode maps a task outcome to the process exit code.
func outcomeToExitCode(outcome task.Outcome) int {
	switch outcome {
	case task.OutcomeSuccess:
		return exitTaskSuccess
	case task.OutcomeFatal:
		return exitTaskFatal
	case task.OutcomeCanceled:
		return exitTaskCanceled
	default:
		return exitTaskFailed
	}
}

// sceneFile is the JSON document accepted by --scene: the instances
// and relations the stub perceptor reports.
type sceneFile struct {
	Instances []types.Instance `json:"instances"`
	Relations []types.Relation `json:"relations"`
}

// loadScene reads and decodes a scene file.
func loadScene(path string) (*sceneFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scene file: %w", err)
	}
	var scene sceneFile
	if err := json.Unmarshal(data, &scene); err != nil {
		return nil, fmt.Errorf("parsing scene file %s: %w", path, err)
	}
	if len(scene.Instances) == 0 {
		return nil, fmt.Errorf("scene file %s has no instances", path)
	}
	return &scene, nil
}

// TaskCommand returns the task command group.
func TaskCommand() *cli.Command {
	return &cli.Command{
		Name:  "task",
		Usage: "Run autonomous tasks",
		Subcommands: []*cli.Command{
			taskRunCommand(),
		},
	}
}

func taskRunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Execute a task against the robot",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{
				Name:  "task",
				Usage: "Task to run (pickup)",
				Value: "pickup",
			},
			&cli.StringFlag{
				Name:     "scene",
				Usage:    "Path to a scene JSON file backing the stub perceptor",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "rotate",
				Usage: "Prepend a full in-place scan before searching",
			},
			&cli.IntFlag{
				Name:  "rotation-steps",
				Usage: "Relative rotations per in-place scan (0 = config default)",
			},
			&cli.Float64Flag{
				Name:  "grasp-distance",
				Usage: "Base-to-object distance that starts the grasp approach, in meters (0 = config default)",
			},
			&cli.IntFlag{
				Name:  "max-attempts",
				Usage: "Scheduling attempts per step under retrying policies (0 = config default)",
			},
			&cli.StringFlag{
				Name:  "webhook",
				Usage: "URL to POST the completion event to",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress the per-step summary; exit code only",
			},
		),
		Action: runTask,
	}
}

func runTask(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return cli.Exit("TUI mode is not supported for task run; use watch --tui in another terminal", 1)
	}

	if name := c.String("task"); name != "pickup" {
		return cli.Exit(fmt.Sprintf("unknown task %q (must be pickup)", name), 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	scene, err := loadScene(c.String("scene"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	cl, err := dialClient(ctx, c, cfg, dialStreams{
		fastState:   true,
		observation: true,
		command:     true,
	})
	if err != nil {
		return fmt.Errorf("dialing robot: %w", err)
	}
	defer cl.Close()

	engine, t, err := buildPickup(c, cfg, cl, scene)
	if err != nil {
		return err
	}

	res, err := engine.Execute(ctx, t)
	if err != nil {
		return err
	}

	if url := c.String("webhook"); url != "" {
		if err := notifyWebhook(url, res); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: webhook delivery failed: %v\n", err)
		}
	}

	if !c.Bool("quiet") {
		if r.Format() == render.FormatTable {
			fmt.Println(res.Summary())
		} else if err := r.Render(res); err != nil {
			return err
		}
	}

	return cli.Exit("", outcomeToExitCode(res.Outcome))
}

// buildPickup assembles the task engine around the dialed client and
// the stub collaborators. Flag values of zero fall back to config.
func buildPickup(c *cli.Context, cfg *config.Config, robot task.Robot, scene *sceneFile) (*task.Engine, *task.Task, error) {
	logger := log.NewLoggerAt("stretch", cfg.Log.Level).Named("task")

	planner := motion.NewStubPlanner()
	planner.DefaultSuccess = true

	manager, err := task.NewManager(task.ManagerConfig{
		Robot:     robot,
		Planner:   planner,
		Perceptor: perception.NewStubPerceptor(scene.Instances, scene.Relations),
		Logger:    logger,
	})
	if err != nil {
		return nil, nil, err
	}

	maxAttempts := c.Int("max-attempts")
	if maxAttempts == 0 {
		maxAttempts = cfg.Task.MaxAttempts
	}
	engine, err := task.NewEngine(task.EngineConfig{
		Manager:     manager,
		MaxAttempts: maxAttempts,
		Logger:      logger,
	})
	if err != nil {
		return nil, nil, err
	}

	rotationSteps := c.Int("rotation-steps")
	if rotationSteps == 0 {
		rotationSteps = cfg.Task.InPlaceRotationSteps
	}
	graspDistance := c.Float64("grasp-distance")
	if graspDistance == 0 {
		graspDistance = cfg.Task.GraspDistanceThreshold
	}
	t := task.NewPickupTask(manager, task.PickupConfig{
		AddRotate:              c.Bool("rotate"),
		RotationSteps:          rotationSteps,
		GraspDistanceThreshold: graspDistance,
	})

	return engine, t, nil
}

// notifyWebhook delivers the completion event. It runs on its own
// context: a canceled task still reports its outcome.
func notifyWebhook(url string, res *task.Result) error {
	n, err := webhook.New(webhook.Config{URL: url, Retries: webhook.DefaultRetries})
	if err != nil {
		return err
	}
	defer n.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return n.Notify(ctx, res.Event())
}
