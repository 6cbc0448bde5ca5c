package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/floostack/transcoder"
	"github.com/floostack/transcoder/ffmpeg"
	"github.com/mbeckett/TuneVault/pkg/logger"
)

type TranscodeConfig struct {
	FfmpegBinPath  string
	FfprobeBinPath string
}

type TranscodeProgress struct {
	FramesProcessed string
	CurrentTime     string
	CurrentBitrate  string
	Progress        float64
	Speed           string
}

type TranscodeCommand struct {
	inputPath       string
	outputPath      string
	transcodeConfig *TranscodeConfig
}

func NewCmd(input string, output string, config *TranscodeConfig) *TranscodeCommand {
	return &TranscodeCommand{input, output, config}
}

func (cmd *TranscodeCommand) Run(ctx context.Context, ffmpegConfig transcoder.Options, updateHandler func(*TranscodeProgress)) error {
	transcoder := ffmpeg.
		New(&ffmpeg.Config{
			ProgressEnabled: true,
			FfmpegBinPath:   cmd.transcodeConfig.FfmpegBinPath,
			FfprobeBinPath:  cmd.transcodeConfig.FfprobeBinPath,
		}).
		Input(cmd.inputPath).
		Output(cmd.outputPath).
		WithContext(&ctx)

	os.MkdirAll(filepath.Dir(cmd.outputPath), os.ModeDir)

	progressChannel, err := transcoder.Start(ffmpegConfig)
	if err != nil {
		return parseFfmpegError(err)
	}

	for {
		prog, ok := <-progressChannel
		if !ok {
			log.Emit(logger.DEBUG, "FFmpeg command has closed progress channel... transcode complete\n")
			return nil
		}

		updateHandler(&TranscodeProgress{
			FramesProcessed: prog.GetFramesProcessed(),
			CurrentTime:     prog.GetCurrentTime(),
			CurrentBitrate:  prog.GetCurrentBitrate(),
			Progress:        prog.GetProgress(),
			Speed:           prog.GetSpeed(),
		})
	}
}

func parseFfmpegError(err error) error {
	// Try and pick out some relevant information from the HUGE
	// output log from ffmpeg. The error we get contains lots of information
	// about how the binary was compiled... this is useless info, we just
	// want the 'message' JSON that is encoded inside.
	messageMatcher := regexp.MustCompile(`(?s)message: ({.*})`)
	groups := messageMatcher.FindStringSubmatch(err.Error())
	if messageMatcher == nil || len(groups) == 0 {
		return err
	}

	// ffmpeg error is returned as a JSON encoded string. Unmarshal so we can extract the
	// error string..
	var out map[string]interface{}
	jsonErr := json.Unmarshal([]byte(groups[1]), &out)
	if jsonErr != nil {
		// We failed to extract the info.. just use the entire string as our error
		return errors.New(groups[1])
	}

	if message, ok := out["message"]; ok {
		return fmt.Errorf("%v", message)
	}

	return errors.New(groups[1])
}
