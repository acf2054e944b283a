package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/panoslice/internal/pan"
	"github.com/ivlev/panoslice/internal/system"
)

const vp9Encoder = "libvpx-vp9"

// FFmpegSink pipes raw RGBA frames into ffmpeg and copies the muxed
// container from ffmpeg's stdout into Out.
type FFmpegSink struct {
	Out io.Writer
	// Binary defaults to system.DefaultFFmpeg.
	Binary string
	// Encoder overrides codec probing when set.
	Encoder string
	Logger  *slog.Logger

	params    StreamParams
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	drain     *errgroup.Group
	cancel    context.CancelFunc
	stderr    bytes.Buffer
	frames    int
	closed    bool
}

func NewFFmpegSink(out io.Writer) *FFmpegSink {
	return &FFmpegSink{Out: out}
}

func (s *FFmpegSink) binary() string {
	if s.Binary != "" {
		return s.Binary
	}
	return system.DefaultFFmpeg
}

func (s *FFmpegSink) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// codecFor resolves the encoder for a container. When probing itself fails
// the software default is tried and Begin reports what ffmpeg says.
func (s *FFmpegSink) codecFor(ctx context.Context, f pan.Format) (string, error) {
	if s.Encoder != "" {
		return s.Encoder, nil
	}
	available, err := system.ListEncoders(ctx, s.binary())
	if err != nil {
		s.logger().Warn("encoder probe failed", "err", err)
		available = nil
	}

	switch f {
	case pan.FormatMP4:
		if available == nil {
			return "libx264", nil
		}
		if name := system.BestH264Encoder(available); name != "" {
			return name, nil
		}
	case pan.FormatWebM:
		if available == nil || available[vp9Encoder] {
			return vp9Encoder, nil
		}
	}
	return "", fmt.Errorf("%w: no encoder for %s", ErrUnsupportedEncoding, f)
}

func buildArgs(p StreamParams, codec string) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"-framerate", strconv.Itoa(p.FPS),
		"-i", "-",
		"-c:v", codec,
		"-pix_fmt", "yuv420p",
		"-b:v", strconv.Itoa(p.BitrateBps),
	}

	switch codec {
	case "libx264":
		args = append(args, "-preset", "medium")
	case vp9Encoder:
		args = append(args, "-deadline", "good", "-row-mt", "1")
	}

	switch p.Format {
	case pan.FormatWebM:
		args = append(args, "-f", "webm")
	default:
		// stdout is not seekable, so the moov atom goes first
		args = append(args, "-movflags", "frag_keyframe+empty_moov", "-f", "mp4")
	}
	return append(args, "pipe:1")
}

func (s *FFmpegSink) Begin(ctx context.Context, p StreamParams) error {
	if s.Out == nil {
		return fmt.Errorf("%w: no output writer", ErrEncoderRejected)
	}
	if p.Width <= 0 || p.Height <= 0 || p.FPS <= 0 || p.BitrateBps <= 0 {
		return fmt.Errorf("%w: %dx%d at %d fps, %d bps", ErrEncoderRejected, p.Width, p.Height, p.FPS, p.BitrateBps)
	}
	codec, err := s.codecFor(ctx, p.Format)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, s.binary(), buildArgs(p, codec)...)
	s.stderr.Reset()
	cmd.Stderr = &s.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("stdin pipe error: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("stdout pipe error: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %v", ErrUnsupportedEncoding, err)
		}
		return fmt.Errorf("%w: ffmpeg start error: %v", ErrEncoderRejected, err)
	}

	drain := new(errgroup.Group)
	drain.Go(func() error {
		_, err := io.Copy(s.Out, stdout)
		return err
	})

	s.params = p
	s.cmd, s.stdin, s.drain, s.cancel = cmd, stdin, drain, cancel
	s.frames = 0
	s.closed = false

	s.logger().Info("ffmpeg started", "codec", codec, "format", p.Format.String(),
		"size", fmt.Sprintf("%dx%d", p.Width, p.Height), "fps", p.FPS, "bitrate", p.BitrateBps)
	return nil
}

func (s *FFmpegSink) WriteFrame(frame *image.RGBA) error {
	if s.cmd == nil || s.closed {
		return errors.New("ffmpeg sink is not running")
	}
	b := frame.Bounds()
	if b.Dx() != s.params.Width || b.Dy() != s.params.Height {
		return fmt.Errorf("frame is %dx%d, stream is %dx%d", b.Dx(), b.Dy(), s.params.Width, s.params.Height)
	}
	if err := writeRawRGBA(s.stdin, frame); err != nil {
		// ffmpeg exiting early closes the pipe; its stderr says why
		_, _ = s.shutdown(false)
		return fmt.Errorf("%w: %v%s", ErrEncoderRejected, err, s.stderrTail())
	}
	s.frames++
	return nil
}

// writeRawRGBA writes tightly packed rows, copying only when the frame
// has padding or an offset origin.
func writeRawRGBA(w io.Writer, frame *image.RGBA) error {
	b := frame.Bounds()
	rowLen := b.Dx() * 4
	if frame.Stride == rowLen && b.Min == (image.Point{}) {
		_, err := w.Write(frame.Pix[:rowLen*b.Dy()])
		return err
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := frame.PixOffset(b.Min.X, y)
		if _, err := w.Write(frame.Pix[off : off+rowLen]); err != nil {
			return err
		}
	}
	return nil
}

func (s *FFmpegSink) Finish() error {
	if s.cmd == nil || s.closed {
		return errors.New("ffmpeg sink is not running")
	}
	copyErr, waitErr := s.shutdown(true)
	if waitErr != nil {
		return fmt.Errorf("%w: ffmpeg wait error: %v%s", ErrEncoderRejected, waitErr, s.stderrTail())
	}
	if copyErr != nil {
		return fmt.Errorf("copy encoded stream: %w", copyErr)
	}
	s.logger().Info("ffmpeg finished", "frames", s.frames)
	return nil
}

func (s *FFmpegSink) Abort() {
	if s.cmd == nil || s.closed {
		return
	}
	_, _ = s.shutdown(false)
	s.logger().Warn("ffmpeg aborted", "frames", s.frames)
}

// shutdown closes stdin and reaps ffmpeg. Without graceful the process is
// killed instead of being allowed to flush. stdout is fully drained before
// Wait, as exec requires.
func (s *FFmpegSink) shutdown(graceful bool) (copyErr, waitErr error) {
	s.closed = true
	defer s.cancel()

	s.stdin.Close()
	if !graceful {
		s.cancel()
	}
	copyErr = s.drain.Wait()
	waitErr = s.cmd.Wait()
	return copyErr, waitErr
}

func (s *FFmpegSink) stderrTail() string {
	msg := strings.TrimSpace(s.stderr.String())
	if msg == "" {
		return ""
	}
	if i := strings.LastIndexByte(msg, '\n'); i >= 0 {
		msg = msg[i+1:]
	}
	return ": " + msg
}
