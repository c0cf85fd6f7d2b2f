// Command autofish wires every collaborator package into one running
// fishing-automation process: perception (capture+classifier+text behind the
// detector facade), the input actuator, the global hotkey dispatcher, the
// fishing controller itself, and the optional status/notification/tunnel
// surfaces. The wiring style — an errgroup of long-running goroutines, each
// wrapped with panic recovery, torn down together on context cancellation —
// follows the teacher's cmd/koolo/main.go.
package main

import (
	"context"
	"flag"
	"image"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/bailanluo/autofish/internal/actuator"
	"github.com/bailanluo/autofish/internal/capture"
	"github.com/bailanluo/autofish/internal/config"
	"github.com/bailanluo/autofish/internal/fishing"
	"github.com/bailanluo/autofish/internal/hotkey"
	"github.com/bailanluo/autofish/internal/notify"
	"github.com/bailanluo/autofish/internal/notify/discord"
	"github.com/bailanluo/autofish/internal/notify/telegram"
	"github.com/bailanluo/autofish/internal/perception/classifier"
	"github.com/bailanluo/autofish/internal/perception/facade"
	"github.com/bailanluo/autofish/internal/perception/text"
	"github.com/bailanluo/autofish/internal/status"
	"github.com/bailanluo/autofish/internal/statusserver"
	"github.com/bailanluo/autofish/internal/tunnel"
)

// wrapWithRecover wraps f so a panic inside it is logged instead of taking
// the whole process down with it.
func wrapWithRecover(logger *slog.Logger, f func() error) func() error {
	return func() error {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					slog.Any("recover", r),
					slog.String("stack", string(debug.Stack())),
				)
			}
		}()
		return f()
	}
}

func main() {
	configPath := flag.String("config", "autofish.yaml", "path to the YAML configuration file")
	templatesDir := flag.String("templates", "templates", "directory of classifier reference images")
	ocrLanguage := flag.String("ocr-lang", "eng", "Tesseract language code for the text detector")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config: load failed", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	capSource := capture.New(image.Rectangle{})
	templates, err := classifier.LoadTemplates(*templatesDir)
	if err != nil {
		logger.Error("classifier: load templates failed", slog.Any("error", err))
		os.Exit(1)
	}
	cls := classifier.New(templates)

	textDetector, err := text.New(*ocrLanguage)
	if err != nil {
		logger.Error("text: init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer textDetector.Close()

	facadeCfg := facade.Config{
		ClassifierThreshold: cfg.Thresholds.Classifier,
		TextThreshold:       cfg.Thresholds.Text,
		TextInterval:        cfg.Intervals.Text,
	}
	detector := facade.New(facadeCfg, capSource, cls, textDetector, logger)

	// ctrl is filled in below; the actuator's failsafe callback needs it but
	// the controller needs the actuator first, so the callback closes over
	// this pointer rather than the controller value itself.
	var ctrl *fishing.Controller
	actuatorCfg := actuator.Config{
		ClickDelayMin:        cfg.ClickDelay.Min,
		ClickDelayMax:        cfg.ClickDelay.Max,
		FailsafeEnabled:      cfg.FailsafeEnabled,
		FailsafePollInterval: actuator.DefaultConfig().FailsafePollInterval,
		CastHoldTime:         cfg.Timeouts.CastHold,
	}
	robot := actuator.New(actuatorCfg, logger, func() {
		if ctrl != nil {
			ctrl.EmergencyStop()
		}
	})
	defer robot.Close()

	hub := status.New(logger)

	var statusSrv *statusserver.Server
	if cfg.StatusServer.Enabled {
		statusSrv = statusserver.New(cfg.StatusServer.Addr, logger)
		g.Go(wrapWithRecover(logger, func() error {
			statusSrv.Run(ctx)
			return nil
		}))
		g.Go(wrapWithRecover(logger, func() error {
			if err := statusSrv.ListenAndServe(); err != nil {
				logger.Error("statusserver: listen failed", slog.Any("error", err))
				return err
			}
			return nil
		}))
	}

	fanout := buildNotifyFanout(cfg, logger)

	// statusSrv and fanout are typed nil pointers when their features are
	// disabled; boxing a typed nil directly into the fishing.Publisher
	// interface below would defeat NewMultiPublisher's own nil check (the
	// interface value itself would be non-nil), so only the genuinely
	// constructed targets are passed in.
	targets := []fishing.Publisher{hub}
	if statusSrv != nil {
		targets = append(targets, statusSrv)
	}
	if fanout != nil {
		targets = append(targets, fanout)
	}
	publisher := status.NewMultiPublisher(targets...)

	fishingCfg := fishing.DefaultConfig()
	fishingCfg.PollInterval = cfg.Intervals.Classifier
	fishingCfg.InitialTimeout = cfg.Timeouts.Initial
	fishingCfg.State1Timeout = cfg.Timeouts.WaitingHook
	fishingCfg.State3PauseTime = cfg.Timeouts.StatePause
	fishingCfg.SuccessWaitTime = cfg.Timeouts.SuccessWait
	fishingCfg.SuccessMaxAttempts = cfg.SuccessMaxAttempts
	fishingCfg.KeyPressTime = cfg.Timeouts.KeyPress

	ctrl = fishing.New(detector, robot, publisher, fishingCfg, logger)

	chords := hotkey.Chords{
		Start:         cfg.Hotkeys.Start,
		Stop:          cfg.Hotkeys.Stop,
		EmergencyStop: cfg.Hotkeys.EmergencyStop,
	}
	dispatcher := hotkey.New(chords, ctrl, logger)
	dispatcher.Start()

	var tun *tunnel.Tunnel
	if cfg.Tunnel.Enabled && cfg.StatusServer.Enabled {
		started, err := tunnel.Expose(ctx, cfg.Tunnel, cfg.StatusServer.Addr)
		if err != nil {
			logger.Error("tunnel: start failed", slog.Any("error", err))
		} else if started == nil {
			logger.Warn("tunnel: enabled but no authtoken set, skipping")
		} else {
			logger.Info("tunnel: established", slog.String("url", started.URL()))
			tun = started
		}
	}

	g.Go(wrapWithRecover(logger, func() error {
		<-ctx.Done()
		logger.Info("autofish: shutting down")
		ctrl.Stop()
		dispatcher.Stop()
		if tun != nil {
			if err := tun.Close(); err != nil {
				logger.Error("tunnel: close failed", slog.Any("error", err))
			}
		}
		if statusSrv != nil {
			if err := statusSrv.Shutdown(context.Background()); err != nil {
				logger.Error("statusserver: shutdown failed", slog.Any("error", err))
			}
		}
		return nil
	}))

	logger.Info("autofish: ready",
		slog.String("start", chords.Start),
		slog.String("stop", chords.Stop),
		slog.String("emergencyStop", chords.EmergencyStop),
	)

	if err := g.Wait(); err != nil {
		logger.Error("autofish: exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

// buildNotifyFanout wires the optional Discord/Telegram notification sinks,
// each filtered per its own configured expr expression, behind a single
// notify.Fanout. It returns nil if no sink was constructed (none enabled, or
// every enabled one failed to initialize); main then leaves it out of the
// publisher targets.
func buildNotifyFanout(cfg config.Config, logger *slog.Logger) *notify.Fanout {
	var sinks []notify.Sink

	if cfg.Notify.Discord.Enabled {
		sink, err := discord.New(cfg.Notify.Discord.Token, cfg.Notify.Discord.ChannelID, logger)
		if err != nil {
			logger.Error("notify/discord: init failed", slog.Any("error", err))
		} else {
			sinks = append(sinks, filtered(sink, cfg.Notify.Discord.Filter, logger))
		}
	}

	if cfg.Notify.Telegram.Enabled {
		sink, err := telegram.New(cfg.Notify.Telegram.Token, cfg.Notify.Telegram.ChatID, logger)
		if err != nil {
			logger.Error("notify/telegram: init failed", slog.Any("error", err))
		} else {
			sinks = append(sinks, filtered(sink, cfg.Notify.Telegram.Filter, logger))
		}
	}

	if len(sinks) == 0 {
		return nil
	}
	return notify.NewFanout(logger, sinks...)
}

func filtered(sink notify.Sink, expression string, logger *slog.Logger) notify.Sink {
	filter, err := notify.CompileFilter(expression)
	if err != nil {
		logger.Warn("notify: invalid filter expression, notifying unconditionally",
			slog.String("expression", expression), slog.Any("error", err))
		filter = nil
	}
	return notify.NewFilteredSink(sink, filter, logger)
}
