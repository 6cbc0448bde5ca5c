package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/floostack/transcoder/ffmpeg"
	"github.com/google/uuid"
	"github.com/kkdai/youtube/v2"
	"github.com/mbeckett/TuneVault/pkg/logger"
)

var log = logger.Get("Media")

const mp3Bitrate = "192k"

type (
	Config struct {
		FfmpegBinPath  string
		FfprobeBinPath string

		// CookiesBlob optionally holds a base64-encoded Netscape
		// cookies.txt export used to authenticate downloads.
		CookiesBlob string
	}

	// Artifact is the product of a completed fetch: the transcoded MP3
	// bytes plus the source metadata the rest of the pipeline needs.
	Artifact struct {
		Data         []byte
		Filename     string
		Title        string
		ThumbnailURL string
	}

	fetcher struct {
		config     Config
		httpClient *http.Client
	}
)

func NewFetcher(config Config) (*fetcher, error) {
	httpClient := &http.Client{}
	if config.CookiesBlob != "" {
		jar, err := newCookieJar(config.CookiesBlob)
		if err != nil {
			return nil, err
		}

		httpClient.Jar = jar
	}

	return &fetcher{config: config, httpClient: httpClient}, nil
}

// Fetch downloads the audio stream for the source URL provided and
// transcodes it to MP3. Intermediate files live in the OS temp dir and
// are removed before return, success or not.
func (f *fetcher) Fetch(ctx context.Context, sourceURL string) (*Artifact, error) {
	videoID, err := ExtractVideoID(sourceURL)
	if err != nil {
		return nil, err
	}

	client := youtube.Client{HTTPClient: f.httpClient}
	video, err := client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to get video info: %w", err)
	}

	format, err := selectAudioFormat(video)
	if err != nil {
		return nil, err
	}

	log.Emit(logger.DEBUG, "Downloading %q (itag %d, %dbps)\n", video.Title, format.ItagNo, format.Bitrate)
	rawPath, err := f.downloadStream(ctx, &client, video, format)
	if err != nil {
		return nil, err
	}
	defer os.Remove(rawPath)

	basename := fmt.Sprintf("%s.mp3", uuid.New())
	mp3Path := filepath.Join(os.TempDir(), basename)
	defer os.Remove(mp3Path)

	if err := f.transcodeToMp3(ctx, rawPath, mp3Path); err != nil {
		return nil, fmt.Errorf("failed to transcode %q: %w", video.Title, err)
	}

	data, err := os.ReadFile(mp3Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcode output: %w", err)
	}

	return &Artifact{
		Data:         data,
		Filename:     basename,
		Title:        video.Title,
		ThumbnailURL: selectThumbnailURL(video),
	}, nil
}

func (f *fetcher) downloadStream(ctx context.Context, client *youtube.Client, video *youtube.Video, format *youtube.Format) (string, error) {
	stream, size, err := client.GetStreamContext(ctx, video, format)
	if err != nil {
		return "", fmt.Errorf("failed to get stream: %w", err)
	}
	defer stream.Close()

	out, err := os.CreateTemp("", "tunevault-*.download")
	if err != nil {
		return "", err
	}

	written, err := io.Copy(out, stream)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("failed to save stream: %w", err)
	}

	log.Emit(logger.DEBUG, "Downloaded %d of %d expected bytes to %s\n", written, size, out.Name())
	return out.Name(), nil
}

func (f *fetcher) transcodeToMp3(ctx context.Context, inputPath string, outputPath string) error {
	cmd := NewCmd(inputPath, outputPath, &TranscodeConfig{
		FfmpegBinPath:  f.config.FfmpegBinPath,
		FfprobeBinPath: f.config.FfprobeBinPath,
	})

	outputFormat := "mp3"
	audioCodec := "libmp3lame"
	audioBitrate := mp3Bitrate
	skipVideo := true
	overwrite := true

	updateHandler := func(prog *TranscodeProgress) {
		log.Emit(logger.VERBOSE, "Transcode progress for %s: %v%%\n", outputPath, prog.Progress)
	}

	return cmd.Run(ctx, ffmpeg.Options{
		OutputFormat: &outputFormat,
		AudioCodec:   &audioCodec,
		AudioBitrate: &audioBitrate,
		SkipVideo:    &skipVideo,
		Overwrite:    &overwrite,
	}, updateHandler)
}

// selectAudioFormat picks the highest-bitrate audio-only format; if the
// source carries no audio-only formats, the highest-bitrate format with
// audio channels is used and the video track is stripped during transcode.
func selectAudioFormat(video *youtube.Video) (*youtube.Format, error) {
	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return nil, fmt.Errorf("no formats with audio channels for %q", video.Title)
	}

	sort.SliceStable(formats, func(i, j int) bool {
		return formats[i].Bitrate > formats[j].Bitrate
	})

	for index := range formats {
		if strings.HasPrefix(formats[index].MimeType, "audio/") {
			return &formats[index], nil
		}
	}

	return &formats[0], nil
}

// selectThumbnailURL returns the URL of the largest available thumbnail,
// or an empty string when the source offers none.
func selectThumbnailURL(video *youtube.Video) string {
	bestURL, bestWidth := "", uint(0)
	for _, thumbnail := range video.Thumbnails {
		if thumbnail.URL != "" && thumbnail.Width >= bestWidth {
			bestURL, bestWidth = thumbnail.URL, thumbnail.Width
		}
	}

	return bestURL
}
