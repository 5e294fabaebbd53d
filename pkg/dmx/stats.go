// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ben Rosenfeld

package dmx

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks bus traffic and error rates for monitor tooling.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames   uint64
	DMXFrames     uint64
	RDMFrames     uint64
	ASCFrames     uint64 // alternate start codes
	Overflows     uint64
	FramingErrors uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update counts one received frame.
func (s *Statistics) Update(p Packet) {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	switch {
	case errors.Is(p.Err, ErrOverflow):
		s.Overflows++
	case errors.Is(p.Err, ErrFramingError):
		s.FramingErrors++
	case p.IsRDM:
		s.RDMFrames++
	case p.SC == SCDMX:
		s.DMXFrames++
	default:
		s.ASCFrames++
	}
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.Overflows+s.FramingErrors) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var dmxPercent, rdmPercent, errorPercent float64
	if s.TotalFrames > 0 {
		dmxPercent = float64(s.DMXFrames) * 100.0 / float64(s.TotalFrames)
		rdmPercent = float64(s.RDMFrames) * 100.0 / float64(s.TotalFrames)
		errorPercent = float64(s.Overflows+s.FramingErrors) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("DMX Frames:      %8d (%.1f%%)\n", s.DMXFrames, dmxPercent)
	result += fmt.Sprintf("RDM Frames:      %8d (%.1f%%)\n", s.RDMFrames, rdmPercent)
	if s.ASCFrames > 0 {
		result += fmt.Sprintf("ASC Frames:      %8d\n", s.ASCFrames)
	}
	if s.Overflows > 0 {
		result += fmt.Sprintf("Overflows:       %8d\n", s.Overflows)
	}
	if s.FramingErrors > 0 {
		result += fmt.Sprintf("Framing Errors:  %8d\n", s.FramingErrors)
	}
	if s.Overflows+s.FramingErrors > 0 {
		result += fmt.Sprintf("Error Share:     %7.1f%%\n", errorPercent)
	}
	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
