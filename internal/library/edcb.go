// Copyright (c) 2025 recviewd authors
// SPDX-License-Identifier: MIT

package library

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrNoProgramInfo indicates the sidecar text carried nothing parseable.
var ErrNoProgramInfo = errors.New("no program info")

// timeLineRe matches the EDCB header line, e.g.
// "2024/04/01(月) 21:00～21:54". The weekday in parentheses is ignored.
var timeLineRe = regexp.MustCompile(`^(\d{4})/(\d{1,2})/(\d{1,2})\([^)]*\)\s*(\d{1,2}):(\d{2})～(\d{1,2}):(\d{2})`)

// ParseProgramText parses an EDCB ".program.txt" recording sidecar: header
// line with air date and time range, then title, then channel, then free-form
// description. Pure function; a malformed sidecar yields whatever fields were
// recognizable and never fails the scan.
func ParseProgramText(text string) (ProgramInfo, error) {
	text = strings.TrimPrefix(text, "\uFEFF") // UTF-8 BOM
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var info ProgramInfo
	var body []string

	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if info.Start.IsZero() && info.Title == "" {
			if m := timeLineRe.FindStringSubmatch(line); m != nil {
				info.Start, info.End = parseTimeRange(m)
				continue
			}
			// Header missing: treat the first line as the title.
			info.Title = line
			continue
		}

		if info.Title == "" {
			info.Title = line
			continue
		}
		if info.Channel == "" {
			info.Channel = line
			continue
		}
		body = append(body, strings.TrimSpace(strings.Join(lines[i:], "\n")))
		break
	}

	if len(body) > 0 {
		info.Description = body[0]
	}

	if info.Title == "" && info.Start.IsZero() {
		return ProgramInfo{}, ErrNoProgramInfo
	}
	return info, nil
}

func parseTimeRange(m []string) (start, end time.Time) {
	atoi := func(s string) int {
		n, _ := strconv.Atoi(s)
		return n
	}

	year, month, day := atoi(m[1]), atoi(m[2]), atoi(m[3])
	start = time.Date(year, time.Month(month), day, atoi(m[4]), atoi(m[5]), 0, 0, time.Local)
	end = time.Date(year, time.Month(month), day, atoi(m[6]), atoi(m[7]), 0, 0, time.Local)
	// Late-night programs cross midnight.
	if end.Before(start) {
		end = end.Add(24 * time.Hour)
	}
	return start, end
}
