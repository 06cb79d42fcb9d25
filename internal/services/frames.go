package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
)

var frameName = regexp.MustCompile(`^\d+\.jpg$`)

// FrameExtractor dumps every frame of a video as <outDir>/<n>.jpg, numbered
// from 0. Used to build the basemap preview images of the map.
type FrameExtractor struct {
	Binary string
	logger *log.Logger
}

func NewFrameExtractor() *FrameExtractor {
	return &FrameExtractor{
		Binary: "ffmpeg",
		logger: log.New(os.Stdout, "[Frames] ", log.LstdFlags),
	}
}

func (f *FrameExtractor) args(videoPath, outDir string) []string {
	return []string{
		"-v", "error",
		"-i", videoPath,
		"-start_number", "0",
		"-q:v", "2",
		filepath.Join(outDir, "%d.jpg"),
	}
}

// Extract writes the frames and returns how many this run produced. ffmpeg
// writes into a hidden staging directory first, so frames left in outDir by
// an earlier, longer video are replaced but never counted.
func (f *FrameExtractor) Extract(ctx context.Context, videoPath, outDir string) (int, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return 0, fmt.Errorf("video not accessible: %w", err)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}
	staging, err := os.MkdirTemp(outDir, ".frames-")
	if err != nil {
		return 0, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	f.logger.Printf("Extracting frames of %s into %s", videoPath, outDir)
	cmd := exec.CommandContext(ctx, f.Binary, f.args(videoPath, staging)...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return 0, fmt.Errorf("error extracting frames: %v, output: %s", err, string(output))
	}

	count, err := moveFrames(staging, outDir)
	if err != nil {
		return 0, err
	}
	f.logger.Printf("Wrote %d frames", count)
	return count, nil
}

// Moves the numbered frames of src into dst, replacing same-named files.
func moveFrames(src, dst string) (int, error) {
	entries, err := os.ReadDir(src)
	if err != nil {
		return 0, fmt.Errorf("error listing files in output directory: %w", err)
	}

	count := 0
	for _, e := range entries {
		if e.IsDir() || !frameName.MatchString(e.Name()) {
			continue
		}
		if err := os.Rename(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return count, fmt.Errorf("move frame %s: %w", e.Name(), err)
		}
		count++
	}
	return count, nil
}
