package services

import (
	"strconv"
	"strings"
	"time"
)

// releaseYear extracts the year from "2006", "2006-03" or "2006-03-21".
func releaseYear(date string) int {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}

func largestImage(images []SpotifyImage) string {
	best, area := "", -1
	for _, img := range images {
		if a := img.Width * img.Height; a > area {
			best, area = img.URL, a
		}
	}
	return best
}

// parseClockDuration parses "3:45" or "1:02:03" into milliseconds.
func parseClockDuration(s string) int64 {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) == 0 || len(parts) > 3 {
		return 0
	}
	var total int64
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + int64(n)
	}
	return total * 1000
}

func secondsOrZero(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
