package usecase

import (
	"fmt"
	"regexp"
	"time"
)

var timestampPattern = regexp.MustCompile(`(\d{8})_(\d{6})`)

func extractTimestamp(filename string) (time.Time, error) {
	matches := timestampPattern.FindStringSubmatch(filename)
	if len(matches) < 3 {
		return time.Time{}, fmt.Errorf("invalid chunk name: no timestamp found")
	}
	return time.Parse("20060102_150405", matches[1]+"_"+matches[2])
}
