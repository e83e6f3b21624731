// host-kiosk runs the camera-side of the system: it watches the webcam
// for a person, launches an avatar stream session through hostd when one
// appears, and tears the session down when they leave.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/lumenwave/go-host/internal/config"
	"github.com/lumenwave/go-host/internal/log"
	"github.com/lumenwave/go-host/pkg/anam"
	"github.com/lumenwave/go-host/pkg/avatar"
	"github.com/lumenwave/go-host/pkg/camera"
	"github.com/lumenwave/go-host/pkg/detection"
	"github.com/lumenwave/go-host/pkg/host"
	"github.com/lumenwave/go-host/pkg/presence"
	"github.com/lumenwave/go-host/pkg/session"
)

func main() {
	serverURL := flag.String("server", config.ServerURL(), "hostd base URL")
	device := flag.String("camera", config.CameraDevice(), "camera device id")
	model := flag.String("model", "", "path to the detection model (ONNX)")
	micDevice := flag.String("mic", "", "ALSA microphone device")
	engineURL := flag.String("engine", avatar.DefaultEngineURL, "avatar engine signalling URL")
	flag.Parse()

	log.Init(config.LogLevel())

	instanceID := uuid.NewString()
	log.Info("kiosk starting", "instance", instanceID, "server", *serverURL)

	detCfg := detection.DefaultConfig()
	if *model != "" {
		detCfg.ModelPath = *model
	}
	classifier, err := detection.NewYOLO(detCfg)
	if err != nil {
		log.Error("detection model", "error", err)
		os.Exit(1)
	}
	defer classifier.Close()

	camCfg := camera.DefaultConfig()
	camCfg.Device = *device
	video, err := camera.OpenWebcam(camCfg)
	if err != nil {
		log.Error("camera", "error", err)
		os.Exit(1)
	}
	defer video.Close()

	password, _ := config.AccessPassword()
	fetcher := &session.HTTPTokenFetcher{
		BaseURL:  *serverURL,
		Password: password,
	}
	controller := session.NewController(fetcher)

	bridge := avatar.NewBridge(
		func() avatar.StreamClient {
			return avatar.NewEngineClient(avatar.WithEngineURL(*engineURL))
		},
		func() avatar.AudioInput {
			return avatar.NewMicInput(*micDevice)
		},
	)

	app := host.NewApp(controller, bridge, anam.DefaultPersona())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	controller.OnTokenReady = func(token string) {
		app.HandleTokenReady(ctx, token)
	}
	bridge.OnStatus = func(s avatar.Status) {
		app.HandleStreamStatus(s)
	}

	detector := presence.New(presence.DefaultConfig(), classifier)
	detector.OnAppeared = func() { app.HandlePersonAppeared(ctx) }
	detector.OnLost = func() { app.HandlePersonLost() }

	if err := detector.Start(ctx, video); err != nil {
		log.Error("presence detector", "error", err, "status", detector.Status())
		os.Exit(1)
	}

	<-ctx.Done()

	log.Info("kiosk shutting down")
	detector.Stop()
	app.Close()
}
