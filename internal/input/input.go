// Package input loads a capture log and its period index, picking the log loader by
// file extension.
package input

import (
	"Go2NetPeriod/internal/model"
	"Go2NetPeriod/pkg/capture"
	"Go2NetPeriod/pkg/pcap"
	"path/filepath"
	"strings"
)

// IsPacketCapture reports whether path names a pcap or pcapng file.
func IsPacketCapture(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pcap", ".pcapng", ".cap":
		return true
	}
	return false
}

// LoadLog reads a capture log. Packet captures are decoded with gopacket, anything
// else is read as a CSV export.
func LoadLog(path string) (*capture.Log, error) {
	if IsPacketCapture(path) {
		return pcap.Load(path)
	}
	return capture.LoadCSV(path)
}

// Load reads the capture log and then the period index validated against it.
func Load(logPath, indexPath string) (*capture.Log, []model.Period, error) {
	store, err := LoadLog(logPath)
	if err != nil {
		return nil, nil, err
	}
	periods, err := capture.LoadIndex(indexPath, store.Len())
	if err != nil {
		return nil, nil, err
	}
	return store, periods, nil
}
