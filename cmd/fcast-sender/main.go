// Command fcast-sender is a reference terminal sender: it connects to one
// FCast receiver over TCP and issues a single playback command.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/petervdpas/fcast-go/internal/fcast"
)

var appVersion = "dev"

var (
	showHelp = flag.Bool("h", false, "Show help")
	version  = flag.Bool("version", false, "Show version")
	host     = flag.String("host", "", "Receiver host or IP")
	port     = flag.Int("port", 46899, "Receiver TCP port")
)

func main() {
	flag.Usage = showUsage
	flag.Parse()

	if *version {
		fmt.Printf("fcast-sender v%s\n", appVersion)
		return
	}
	if *showHelp {
		showUsage()
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		showUsage()
		os.Exit(1)
	}

	if *host == "" {
		fmt.Fprintln(os.Stderr, "Error: -host is required")
		os.Exit(1)
	}

	if err := run(args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(command string, rest []string) error {
	info := fcast.DeviceInfo{
		Name:      *host,
		Addresses: []net.IP{resolveHost(*host)},
		Port:      uint16(*port),
	}

	ctl := fcast.NewController(info, loggingHandler{}, 2*time.Second, 5*time.Second)
	if err := ctl.Start("fcast-sender", appVersion); err != nil {
		return err
	}
	defer ctl.Disconnect()

	if err := waitReady(ctl, 5*time.Second); err != nil {
		return err
	}

	switch command {
	case "play":
		if len(rest) < 1 {
			return fmt.Errorf("play requires a URL or file path")
		}
		return ctl.Load(fcast.LoadRequest{
			Kind:        fcast.LoadRequestURL,
			ContentType: contentTypeOf(rest[0]),
			URL:         rest[0],
		})
	case "pause":
		return ctl.PausePlayback()
	case "resume":
		return ctl.ResumePlayback()
	case "stop":
		return ctl.StopPlayback()
	case "seek":
		if len(rest) < 1 {
			return fmt.Errorf("seek requires a time in seconds")
		}
		t, err := strconv.ParseFloat(rest[0], 64)
		if err != nil {
			return fmt.Errorf("invalid seek time: %w", err)
		}
		return ctl.Seek(t)
	case "setvolume":
		if len(rest) < 1 {
			return fmt.Errorf("setvolume requires a value between 0 and 1")
		}
		v, err := strconv.ParseFloat(rest[0], 64)
		if err != nil {
			return fmt.Errorf("invalid volume: %w", err)
		}
		return ctl.ChangeVolume(v)
	case "setspeed":
		if len(rest) < 1 {
			return fmt.Errorf("setspeed requires a multiplier")
		}
		s, err := strconv.ParseFloat(rest[0], 64)
		if err != nil {
			return fmt.Errorf("invalid speed: %w", err)
		}
		return ctl.ChangeSpeed(s)
	case "setplaylistitem":
		if len(rest) < 1 {
			return fmt.Errorf("setplaylistitem requires an index")
		}
		idx, err := strconv.ParseUint(rest[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid index: %w", err)
		}
		return ctl.SetPlaylistItemIndex(idx)
	case "listen":
		return listenForEvents()
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// waitReady polls until the controller has an active session or the
// timeout elapses.
func waitReady(ctl *fcast.Controller, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ctl.IsReady() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("timed out waiting to connect")
}

// listenForEvents blocks until interrupted, printing nothing itself: event
// delivery happens through loggingHandler as the session runs.
func listenForEvents() error {
	select {}
}

func contentTypeOf(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".mp4"):
		return "video/mp4"
	case strings.HasSuffix(lower, ".webm"):
		return "video/webm"
	case strings.HasSuffix(lower, ".mp3"):
		return "audio/mpeg"
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

func resolveHost(host string) net.IP {
	if ip := net.ParseIP(host); ip != nil {
		return ip
	}
	addrs, err := net.LookupIP(host)
	if err != nil || len(addrs) == 0 {
		return net.IPv4zero
	}
	return addrs[0]
}

type loggingHandler struct{}

func (loggingHandler) OnConnectionStateChanged(state fcast.ConnectionState) {
	log.Printf("connection state: %s", state)
}

func (loggingHandler) OnVolumeChanged(volume float64) {
	log.Printf("volume changed: %.2f", volume)
}

func (loggingHandler) OnTimeChanged(t float64) {
	log.Printf("time changed: %.2f", t)
}

func (loggingHandler) OnPlaybackStateChanged(state fcast.PlaybackState) {
	log.Printf("playback state changed: %d", state)
}

func (loggingHandler) OnDurationChanged(duration float64) {
	log.Printf("duration changed: %.2f", duration)
}

func (loggingHandler) OnSpeedChanged(speed float64) {
	log.Printf("speed changed: %.2f", speed)
}

func (loggingHandler) OnSourceChanged(source fcast.Source) {
	log.Printf("source changed: container=%s url=%s", source.Container, source.URL)
}

func (loggingHandler) OnKeyEvent(event fcast.KeyEvent) {
	log.Printf("key event: key=%s up=%v repeat=%v", event.Key, event.Up, event.Repeat)
}

func (loggingHandler) OnMediaEvent(event fcast.MediaEvent) {
	log.Printf("media event: type=%d", event.Type)
}

func (loggingHandler) OnPlaybackError(message string) {
	log.Printf("playback error: %s", message)
}

func showUsage() {
	fmt.Fprintln(os.Stderr, "Usage: fcast-sender -host <addr> [-port <port>] <command> [args...]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  play <url>                 Start playback of a URL")
	fmt.Fprintln(os.Stderr, "  pause                      Pause playback")
	fmt.Fprintln(os.Stderr, "  resume                     Resume playback")
	fmt.Fprintln(os.Stderr, "  stop                       Stop playback")
	fmt.Fprintln(os.Stderr, "  seek <seconds>             Seek to an absolute time")
	fmt.Fprintln(os.Stderr, "  setvolume <0-1>            Set volume")
	fmt.Fprintln(os.Stderr, "  setspeed <multiplier>      Set playback speed")
	fmt.Fprintln(os.Stderr, "  setplaylistitem <index>    Jump to a playlist index")
	fmt.Fprintln(os.Stderr, "  listen                     Stay connected and print events")
	fmt.Fprintln(os.Stderr)
	flag.PrintDefaults()
}
